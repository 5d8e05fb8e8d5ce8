package entity

// ColumnType is the storage type of an index view column.
type ColumnType string

const (
	ColumnEntityID ColumnType = "ENTITYID"
	ColumnString   ColumnType = "STRING"
	ColumnDate     ColumnType = "DATE"
)

// Column describes one column of an index view.
type Column struct {
	Name      string
	Type      ColumnType
	MaxLength int // zero when the type has no length bound
}

// ViewSpec is what is needed to create an index view.
type ViewSpec struct {
	Name      string
	ProjectID string
	Scope     []string // container ids the view indexes
	Kinds     []Kind   // entity kinds that become rows
	Columns   []Column
}

// ViewHandle identifies an existing index view.
type ViewHandle struct {
	ID        string
	Name      string
	ProjectID string
	Columns   []Column
}

// ViewQuery selects rows from an index view. Zero fields do not filter.
type ViewQuery struct {
	// ParentID selects rows whose parentId equals it.
	ParentID string
	// LockedOnly selects rows with a non-empty locker id.
	LockedOnly bool
}

// Row is one index view row. Rows may lag behind the entities they mirror.
type Row struct {
	ID         string
	ParentID   string
	ProjectID  string
	Kind       Kind
	Name       string
	LockerID   string
	LockerName string
	LockedAt   string
}

// Locked reports whether the row shows a lock.
func (r Row) Locked() bool {
	return r.LockerID != ""
}

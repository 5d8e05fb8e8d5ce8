package entity

import (
	"maps"
	"slices"
	"time"
)

// Annotation keys that make up a lock record.
const (
	KeyLockerID   = "_syt_by_id"
	KeyLockerName = "_syt_by_name"
	KeyLockedAt   = "_syt_date"
)

// LockKeys returns the three lock annotation keys in column order.
func LockKeys() []string {
	return []string{KeyLockerID, KeyLockerName, KeyLockedAt}
}

// Annotations is the multi-valued key/value map attached to an entity.
// Values keep their order.
type Annotations map[string][]string

// Get returns the first value for key, or "".
func (a Annotations) Get(key string) string {
	if vs := a[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Has reports whether key is present with at least one value.
func (a Annotations) Has(key string) bool {
	return len(a[key]) > 0
}

// Set replaces the values for key. a must be non-nil; see
// Entity.SetAnnotation.
func (a Annotations) Set(key string, values ...string) {
	a[key] = slices.Clone(values)
}

// Delete removes key.
func (a Annotations) Delete(key string) {
	delete(a, key)
}

// Clone returns a deep copy.
func (a Annotations) Clone() Annotations {
	if a == nil {
		return nil
	}
	out := make(Annotations, len(a))
	for k, vs := range a {
		out[k] = slices.Clone(vs)
	}
	return out
}

// LockRecord identifies who checked an entity out and when.
type LockRecord struct {
	LockerID   string
	LockerName string
	LockedAt   time.Time
}

// DateLayout is how LockedAt is stored in the _syt_date annotation.
const DateLayout = time.RFC3339

// Entity is a node of the repository tree.
type Entity struct {
	ID       string
	ParentID string // empty only for a project root
	Kind     Kind
	// Type is the repository's raw type string, kept for KindOther.
	Type        string
	Name        string
	Version     string // opaque; changes on every store
	Annotations Annotations
}

// TypeName returns the display type of the entity.
func (e *Entity) TypeName() string {
	if e.Kind == KindOther && e.Type != "" {
		return e.Type
	}
	return e.Kind.Title()
}

// IsLocked reports whether the entity carries a lock.
func (e *Entity) IsLocked() bool {
	return e.Annotations.Get(KeyLockerID) != ""
}

// Lock returns the lock record and whether the entity is locked. An
// unparseable date leaves LockedAt zero; the raw value is still available
// through LockedAtRaw.
func (e *Entity) Lock() (LockRecord, bool) {
	if !e.IsLocked() {
		return LockRecord{}, false
	}
	rec := LockRecord{
		LockerID:   e.Annotations.Get(KeyLockerID),
		LockerName: e.Annotations.Get(KeyLockerName),
	}
	if t, err := time.Parse(DateLayout, e.Annotations.Get(KeyLockedAt)); err == nil {
		rec.LockedAt = t
	}
	return rec, true
}

// LockedAtRaw returns the stored _syt_date value verbatim.
func (e *Entity) LockedAtRaw() string {
	return e.Annotations.Get(KeyLockedAt)
}

// IsLockedBy reports whether the entity is locked by the given user id.
func (e *Entity) IsLockedBy(userID string) bool {
	return e.IsLocked() && e.Annotations.Get(KeyLockerID) == userID
}

// SetAnnotation replaces the values for key, allocating the annotation map
// if the entity has none.
func (e *Entity) SetAnnotation(key string, values ...string) {
	if e.Annotations == nil {
		e.Annotations = make(Annotations)
	}
	e.Annotations.Set(key, values...)
}

// ApplyLock writes all three lock keys.
func (e *Entity) ApplyLock(rec LockRecord) {
	e.SetAnnotation(KeyLockerID, rec.LockerID)
	e.SetAnnotation(KeyLockerName, rec.LockerName)
	e.SetAnnotation(KeyLockedAt, rec.LockedAt.UTC().Format(DateLayout))
}

// ClearLock removes all three lock keys.
func (e *Entity) ClearLock() {
	for _, k := range LockKeys() {
		e.Annotations.Delete(k)
	}
}

// Clone returns a deep copy of the entity. The copy always has a non-nil
// annotation map.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	out.Annotations = e.Annotations.Clone()
	if out.Annotations == nil {
		out.Annotations = make(Annotations)
	}
	return &out
}

// Equal reports whether two entities carry the same fields and annotations.
func (e *Entity) Equal(o *Entity) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.ID == o.ID && e.ParentID == o.ParentID && e.Kind == o.Kind &&
		e.Type == o.Type && e.Name == o.Name && e.Version == o.Version &&
		maps.EqualFunc(e.Annotations, o.Annotations, func(a, b []string) bool { return slices.Equal(a, b) })
}

// ChildSummary is one entry of a container's child listing.
type ChildSummary struct {
	ID   string
	Name string
	Kind Kind
}

package repository

import (
	"slices"
	"sort"

	"github.com/syt-tools/syt/internal/entity"
)

// Snapshot is the serialized form of a Memory repository, used by the file
// backend and by test fixtures.
type Snapshot struct {
	CurrentUser string           `yaml:"current_user,omitempty"`
	NextID      int              `yaml:"next_id,omitempty"`
	Users       []SnapshotUser   `yaml:"users,omitempty"`
	Teams       []SnapshotTeam   `yaml:"teams,omitempty"`
	Entities    []SnapshotEntity `yaml:"entities"`
	Views       []SnapshotView   `yaml:"views,omitempty"`
}

// SnapshotUser is a user record.
type SnapshotUser struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	PasswordHash string `yaml:"password_hash,omitempty"`
}

// SnapshotTeam is a team and its member ids.
type SnapshotTeam struct {
	ID      string   `yaml:"id"`
	Members []string `yaml:"members"`
}

// SnapshotEntity is an entity with its ACL and content.
type SnapshotEntity struct {
	ID          string              `yaml:"id"`
	ParentID    string              `yaml:"parent_id,omitempty"`
	Type        string              `yaml:"type"`
	Name        string              `yaml:"name"`
	Version     string              `yaml:"version,omitempty"`
	Annotations map[string][]string `yaml:"annotations,omitempty"`
	ACL         []SnapshotACLEntry  `yaml:"acl,omitempty"`
	Content     string              `yaml:"content,omitempty"`
}

// SnapshotACLEntry grants a principal a set of permissions.
type SnapshotACLEntry struct {
	Principal string              `yaml:"principal"`
	Access    []entity.Permission `yaml:"access"`
}

// SnapshotView is an index view; Rows is only kept in manual refresh mode.
type SnapshotView struct {
	ID        string           `yaml:"id"`
	Name      string           `yaml:"name"`
	ProjectID string           `yaml:"project_id"`
	Kinds     []string         `yaml:"kinds"`
	Scope     []string         `yaml:"scope,omitempty"`
	Columns   []SnapshotColumn `yaml:"columns"`
	Rows      []SnapshotRow    `yaml:"rows,omitempty"`
}

// SnapshotColumn is one view column.
type SnapshotColumn struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	MaxLength int    `yaml:"max_length,omitempty"`
}

// SnapshotRow is one materialized view row.
type SnapshotRow struct {
	ID         string `yaml:"id"`
	ParentID   string `yaml:"parent_id"`
	Type       string `yaml:"type"`
	Name       string `yaml:"name"`
	LockerID   string `yaml:"locker_id,omitempty"`
	LockerName string `yaml:"locker_name,omitempty"`
	LockedAt   string `yaml:"locked_at,omitempty"`
}

// Snapshot captures the repository contents. Entities are listed parents
// first so that loading preserves child order.
func (m *Memory) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{CurrentUser: m.currentID, NextID: m.nextID}

	for _, id := range sortedKeys(m.users) {
		rec := m.users[id]
		s.Users = append(s.Users, SnapshotUser{ID: id, Name: rec.profile.UserName, PasswordHash: rec.passwordHash})
	}
	for _, id := range sortedKeys(m.teams) {
		s.Teams = append(s.Teams, SnapshotTeam{ID: id, Members: slices.Clone(m.teams[id])})
	}

	var roots []string
	for id, e := range m.entities {
		if _, ok := m.entities[e.ParentID]; !ok {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	queue := roots
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		s.Entities = append(s.Entities, m.snapshotEntityLocked(m.entities[id]))
		queue = append(queue, m.children[id]...)
	}

	for _, id := range sortedKeys(m.views) {
		v := m.views[id]
		sv := SnapshotView{
			ID:        v.handle.ID,
			Name:      v.handle.Name,
			ProjectID: v.handle.ProjectID,
			Scope:     slices.Clone(v.scope),
		}
		for _, k := range v.kinds {
			sv.Kinds = append(sv.Kinds, k.String())
		}
		for _, c := range v.handle.Columns {
			sv.Columns = append(sv.Columns, SnapshotColumn{Name: c.Name, Type: string(c.Type), MaxLength: c.MaxLength})
		}
		if m.refresh == RefreshManual {
			for _, r := range v.rows {
				sv.Rows = append(sv.Rows, SnapshotRow{
					ID: r.ID, ParentID: r.ParentID, Type: r.Kind.String(), Name: r.Name,
					LockerID: r.LockerID, LockerName: r.LockerName, LockedAt: r.LockedAt,
				})
			}
		}
		s.Views = append(s.Views, sv)
	}
	return s
}

func (m *Memory) snapshotEntityLocked(e *entity.Entity) SnapshotEntity {
	se := SnapshotEntity{
		ID:          e.ID,
		ParentID:    e.ParentID,
		Type:        e.Type,
		Name:        e.Name,
		Version:     e.Version,
		Annotations: e.Annotations.Clone(),
	}
	if se.Type == "" {
		se.Type = e.Kind.String()
	}
	if acl, ok := m.acls[e.ID]; ok {
		for _, entry := range acl.Entries {
			se.ACL = append(se.ACL, SnapshotACLEntry{Principal: entry.PrincipalID, Access: slices.Clone(entry.AccessTypes)})
		}
	}
	if data, ok := m.content[e.ID]; ok {
		se.Content = string(data)
	}
	return se
}

// LoadSnapshot builds a Memory repository from a snapshot. Versions in the
// snapshot are kept; entities without one get a fresh version.
func LoadSnapshot(s Snapshot, opts ...MemoryOption) *Memory {
	m := NewMemory(opts...)
	m.currentID = s.CurrentUser
	for _, u := range s.Users {
		m.users[u.ID] = userRecord{
			profile:      entity.UserProfile{OwnerID: u.ID, UserName: u.Name},
			passwordHash: u.PasswordHash,
		}
	}
	for _, t := range s.Teams {
		m.teams[t.ID] = slices.Clone(t.Members)
	}
	for _, se := range s.Entities {
		e := &entity.Entity{
			ID:          se.ID,
			ParentID:    se.ParentID,
			Kind:        entity.ParseKind(se.Type),
			Type:        se.Type,
			Name:        se.Name,
			Annotations: entity.Annotations(se.Annotations).Clone(),
		}
		stored := m.putLocked(e)
		if se.Version != "" {
			m.entities[stored.ID].Version = se.Version
		}
		if len(se.ACL) > 0 {
			acl := entity.ACL{EntityID: stored.ID}
			for _, entry := range se.ACL {
				acl.Entries = append(acl.Entries, entity.ACLEntry{PrincipalID: entry.Principal, AccessTypes: slices.Clone(entry.Access)})
			}
			m.acls[stored.ID] = acl
		}
		if se.Content != "" {
			m.content[stored.ID] = []byte(se.Content)
		}
	}
	if s.NextID > m.nextID {
		m.nextID = s.NextID
	}
	for _, sv := range s.Views {
		v := &memoryView{
			handle: entity.ViewHandle{ID: sv.ID, Name: sv.Name, ProjectID: sv.ProjectID},
			scope:  slices.Clone(sv.Scope),
		}
		for _, k := range sv.Kinds {
			v.kinds = append(v.kinds, entity.ParseKind(k))
		}
		for _, c := range sv.Columns {
			v.handle.Columns = append(v.handle.Columns, entity.Column{Name: c.Name, Type: entity.ColumnType(c.Type), MaxLength: c.MaxLength})
		}
		if len(v.scope) == 0 {
			v.scope = []string{sv.ProjectID}
		}
		if m.refresh == RefreshManual && sv.Rows != nil {
			for _, r := range sv.Rows {
				v.rows = append(v.rows, entity.Row{
					ID: r.ID, ParentID: r.ParentID, ProjectID: sv.ProjectID, Kind: entity.ParseKind(r.Type),
					Name: r.Name, LockerID: r.LockerID, LockerName: r.LockerName, LockedAt: r.LockedAt,
				})
			}
		} else {
			v.rows = m.computeRowsLocked(v)
		}
		m.views[v.handle.ID] = v
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package repository

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/syt-tools/syt/internal/entity"
)

// Memory is an in-process Repository. It is safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	entities map[string]*entity.Entity
	children map[string][]string // parent id -> child ids in insertion order
	acls     map[string]entity.ACL
	users    map[string]userRecord
	teams    map[string][]string // team id -> member owner ids
	views    map[string]*memoryView
	content  map[string][]byte
	nextID   int

	currentID string
	username  string
	password  string
	refresh   ViewRefresh

	calls    map[string]int
	failures map[string]error
}

type userRecord struct {
	profile      entity.UserProfile
	passwordHash string
}

type memoryView struct {
	handle entity.ViewHandle
	kinds  []entity.Kind
	scope  []string
	rows   []entity.Row // snapshot used in manual refresh mode
}

// MemoryOption configures a Memory repository.
type MemoryOption func(*Memory)

// WithViewRefresh sets how index views track entity changes.
func WithViewRefresh(mode ViewRefresh) MemoryOption {
	return func(m *Memory) {
		if mode != "" {
			m.refresh = mode
		}
	}
}

// WithCredentials authenticates CurrentUser by user name and password.
func WithCredentials(username, password string) MemoryOption {
	return func(m *Memory) {
		m.username = username
		m.password = password
	}
}

// NewMemory creates an empty in-memory repository.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entities: make(map[string]*entity.Entity),
		children: make(map[string][]string),
		acls:     make(map[string]entity.ACL),
		users:    make(map[string]userRecord),
		teams:    make(map[string][]string),
		views:    make(map[string]*memoryView),
		content:  make(map[string][]byte),
		nextID:   1,
		refresh:  RefreshImmediate,
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// -----------------------------------------------------------------------------
// Seeding and test hooks
// -----------------------------------------------------------------------------

// AddUser registers a user. password may be empty to accept any password; a
// password bcrypt rejects (longer than 72 bytes) leaves the user unable to
// log in.
func (m *Memory) AddUser(ownerID, userName, password string) {
	rec := userRecord{profile: entity.UserProfile{OwnerID: ownerID, UserName: userName}}
	if password != "" {
		hash, err := HashPassword(password)
		if err != nil {
			hash = lockedHash
		}
		rec.passwordHash = hash
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[ownerID] = rec
}

// AddTeam registers a team and its members.
func (m *Memory) AddTeam(teamID string, memberIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[teamID] = slices.Clone(memberIDs)
}

// SetCurrentUser makes ownerID the authenticated user when no credentials
// were supplied.
func (m *Memory) SetCurrentUser(ownerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentID = ownerID
}

// Put inserts or replaces an entity without a version check and returns the
// stored copy. An empty ID is assigned.
func (m *Memory) Put(e *entity.Entity) *entity.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLocked(e.Clone())
}

func (m *Memory) putLocked(e *entity.Entity) *entity.Entity {
	if e.ID == "" {
		e.ID = m.allocID()
	} else {
		m.bumpID(e.ID)
	}
	old, linked := m.entities[e.ID]
	if linked && old.ParentID != e.ParentID {
		m.children[old.ParentID] = slices.DeleteFunc(m.children[old.ParentID], func(id string) bool { return id == e.ID })
		linked = false
	}
	if !linked && e.ParentID != "" {
		m.children[e.ParentID] = append(m.children[e.ParentID], e.ID)
	}
	e.Version = uuid.NewString()
	m.entities[e.ID] = e
	return e.Clone()
}

func (m *Memory) allocID() string {
	for {
		id := "syn" + strconv.Itoa(m.nextID)
		m.nextID++
		if _, taken := m.entities[id]; !taken {
			return id
		}
	}
}

// bumpID keeps allocated ids ahead of explicitly numbered ones.
func (m *Memory) bumpID(id string) {
	digits, ok := strings.CutPrefix(id, "syn")
	if !ok {
		return
	}
	if n, err := strconv.Atoi(digits); err == nil && n >= m.nextID {
		m.nextID = n + 1
	}
}

// SetACL replaces the ACL attached directly to an entity.
func (m *Memory) SetACL(entityID string, entries ...entity.ACLEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acls[entityID] = entity.ACL{EntityID: entityID, Entries: slices.Clone(entries)}
}

// SetContent replaces the content of a file entity.
func (m *Memory) SetContent(fileID string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[fileID] = slices.Clone(data)
}

// RefreshViews re-snapshots every view. It only matters in manual mode.
func (m *Memory) RefreshViews() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.views {
		v.rows = m.computeRowsLocked(v)
	}
}

// CallCount returns how many times an operation (by method name) was invoked.
func (m *Memory) CallCount(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// FailNext makes the next call to op return err.
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// enter records a call and returns an injected failure, if any.
// Caller must hold mu for writing.
func (m *Memory) enter(op string) error {
	m.calls[op]++
	if err, ok := m.failures[op]; ok {
		delete(m.failures, op)
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------
// Repository
// -----------------------------------------------------------------------------

// GetEntity implements Repository.
func (m *Memory) GetEntity(ctx context.Context, id string) (*entity.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetEntity"); err != nil {
		return nil, err
	}
	e, ok := m.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: entity %s", ErrNotFound, id)
	}
	return e.Clone(), nil
}

// Store implements Repository.
func (m *Memory) Store(ctx context.Context, e *entity.Entity) (*entity.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Store"); err != nil {
		return nil, err
	}
	current, ok := m.entities[e.ID]
	if !ok {
		return nil, fmt.Errorf("%w: entity %s", ErrNotFound, e.ID)
	}
	if current.Version != e.Version {
		return nil, fmt.Errorf("%w: entity %s has version %s, got %s", ErrVersionConflict, e.ID, current.Version, e.Version)
	}
	return m.putLocked(e.Clone()), nil
}

// ListChildren implements Repository.
func (m *Memory) ListChildren(ctx context.Context, parentID string, kinds ...entity.Kind) ([]entity.ChildSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListChildren"); err != nil {
		return nil, err
	}
	if _, ok := m.entities[parentID]; !ok {
		return nil, fmt.Errorf("%w: entity %s", ErrNotFound, parentID)
	}
	var out []entity.ChildSummary
	for _, id := range m.children[parentID] {
		child := m.entities[id]
		if len(kinds) > 0 && !slices.Contains(kinds, child.Kind) {
			continue
		}
		out = append(out, entity.ChildSummary{ID: child.ID, Name: child.Name, Kind: child.Kind})
	}
	return out, nil
}

// GetView implements Repository.
func (m *Memory) GetView(ctx context.Context, projectID, name string) (entity.ViewHandle, error) {
	if err := ctx.Err(); err != nil {
		return entity.ViewHandle{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetView"); err != nil {
		return entity.ViewHandle{}, err
	}
	for _, v := range m.views {
		if v.handle.ProjectID == projectID && v.handle.Name == name {
			return v.handle, nil
		}
	}
	return entity.ViewHandle{}, fmt.Errorf("%w: view %q in %s", ErrNotFound, name, projectID)
}

// CreateView implements Repository.
func (m *Memory) CreateView(ctx context.Context, spec entity.ViewSpec) (entity.ViewHandle, error) {
	if err := ctx.Err(); err != nil {
		return entity.ViewHandle{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateView"); err != nil {
		return entity.ViewHandle{}, err
	}
	if _, ok := m.entities[spec.ProjectID]; !ok {
		return entity.ViewHandle{}, fmt.Errorf("%w: project %s", ErrNotFound, spec.ProjectID)
	}
	v := &memoryView{
		handle: entity.ViewHandle{
			ID:        uuid.NewString(),
			Name:      spec.Name,
			ProjectID: spec.ProjectID,
			Columns:   slices.Clone(spec.Columns),
		},
		kinds: slices.Clone(spec.Kinds),
		scope: slices.Clone(spec.Scope),
	}
	if len(v.scope) == 0 {
		v.scope = []string{spec.ProjectID}
	}
	v.rows = m.computeRowsLocked(v)
	m.views[v.handle.ID] = v
	return v.handle, nil
}

// QueryView implements Repository.
func (m *Memory) QueryView(ctx context.Context, viewID string, q entity.ViewQuery) ([]entity.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("QueryView"); err != nil {
		return nil, err
	}
	v, ok := m.views[viewID]
	if !ok {
		return nil, fmt.Errorf("%w: view %s", ErrNotFound, viewID)
	}
	rows := v.rows
	if m.refresh != RefreshManual {
		rows = m.computeRowsLocked(v)
	}
	return filterRows(rows, q), nil
}

// computeRowsLocked walks the view scope breadth first and projects every
// entity of an indexed kind into a row.
func (m *Memory) computeRowsLocked(v *memoryView) []entity.Row {
	var rows []entity.Row
	queue := slices.Clone(v.scope)
	seen := make(map[string]bool)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, childID := range m.children[id] {
			child := m.entities[childID]
			if slices.Contains(v.kinds, child.Kind) {
				rows = append(rows, rowFor(child, v.handle.ProjectID))
			}
			if child.Kind.Container() {
				queue = append(queue, childID)
			}
		}
	}
	return rows
}

func rowFor(e *entity.Entity, projectID string) entity.Row {
	return entity.Row{
		ID:         e.ID,
		ParentID:   e.ParentID,
		ProjectID:  projectID,
		Kind:       e.Kind,
		Name:       e.Name,
		LockerID:   e.Annotations.Get(entity.KeyLockerID),
		LockerName: e.Annotations.Get(entity.KeyLockerName),
		LockedAt:   e.Annotations.Get(entity.KeyLockedAt),
	}
}

func filterRows(rows []entity.Row, q entity.ViewQuery) []entity.Row {
	out := make([]entity.Row, 0, len(rows))
	for _, r := range rows {
		if q.ParentID != "" && r.ParentID != q.ParentID {
			continue
		}
		if q.LockedOnly && !r.Locked() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// GetACL implements Repository. The ACL of the nearest ancestor that has one
// governs an entity.
func (m *Memory) GetACL(ctx context.Context, entityID string) (entity.ACL, error) {
	if err := ctx.Err(); err != nil {
		return entity.ACL{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetACL"); err != nil {
		return entity.ACL{}, err
	}
	return m.benefactorACLLocked(entityID)
}

func (m *Memory) benefactorACLLocked(entityID string) (entity.ACL, error) {
	seen := make(map[string]bool)
	for id := entityID; id != "" && !seen[id]; {
		seen[id] = true
		if acl, ok := m.acls[id]; ok {
			acl.Entries = slices.Clone(acl.Entries)
			return acl, nil
		}
		e, ok := m.entities[id]
		if !ok {
			return entity.ACL{}, fmt.Errorf("%w: entity %s", ErrNotFound, id)
		}
		id = e.ParentID
	}
	return entity.ACL{EntityID: entityID}, nil
}

// GetPermissions implements Repository.
func (m *Memory) GetPermissions(ctx context.Context, entityID string) ([]entity.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetPermissions"); err != nil {
		return nil, err
	}
	user, err := m.currentUserLocked()
	if err != nil {
		return nil, err
	}
	acl, err := m.benefactorACLLocked(entityID)
	if err != nil {
		return nil, err
	}
	return effectivePermissions(acl, user.OwnerID, func(teamID string) bool {
		return slices.Contains(m.teams[teamID], user.OwnerID)
	}), nil
}

// GetUser implements Repository.
func (m *Memory) GetUser(ctx context.Context, principalID string) (entity.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return entity.UserProfile{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetUser"); err != nil {
		return entity.UserProfile{}, err
	}
	rec, ok := m.users[principalID]
	if !ok {
		return entity.UserProfile{}, fmt.Errorf("%w: user %s", ErrNotFound, principalID)
	}
	return rec.profile, nil
}

// GetTeamMembers implements Repository.
func (m *Memory) GetTeamMembers(ctx context.Context, teamID string) ([]entity.TeamMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetTeamMembers"); err != nil {
		return nil, err
	}
	members, ok := m.teams[teamID]
	if !ok {
		return nil, fmt.Errorf("%w: team %s", ErrNotFound, teamID)
	}
	out := make([]entity.TeamMember, 0, len(members))
	for _, id := range members {
		out = append(out, entity.TeamMember{TeamID: teamID, OwnerID: id, UserName: m.users[id].profile.UserName})
	}
	return out, nil
}

// CurrentUser implements Repository.
func (m *Memory) CurrentUser(ctx context.Context) (entity.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return entity.UserProfile{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CurrentUser"); err != nil {
		return entity.UserProfile{}, err
	}
	return m.currentUserLocked()
}

func (m *Memory) currentUserLocked() (entity.UserProfile, error) {
	if m.username != "" {
		for _, rec := range m.users {
			if rec.profile.UserName == m.username || rec.profile.OwnerID == m.username {
				if !checkPassword(rec.passwordHash, m.password) {
					return entity.UserProfile{}, fmt.Errorf("%w: bad password for %s", ErrUnauthenticated, m.username)
				}
				return rec.profile, nil
			}
		}
		return entity.UserProfile{}, fmt.Errorf("%w: unknown user %s", ErrUnauthenticated, m.username)
	}
	if rec, ok := m.users[m.currentID]; ok {
		return rec.profile, nil
	}
	return entity.UserProfile{}, fmt.Errorf("%w: no credentials supplied", ErrUnauthenticated)
}

// Download implements Repository.
func (m *Memory) Download(ctx context.Context, fileID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Download"); err != nil {
		return nil, err
	}
	e, ok := m.entities[fileID]
	if !ok || e.Kind != entity.KindFile {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, fileID)
	}
	return slices.Clone(m.content[fileID]), nil
}

// Upload implements Repository.
func (m *Memory) Upload(ctx context.Context, req UploadRequest) (*entity.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Upload"); err != nil {
		return nil, err
	}

	var e *entity.Entity
	if req.ID != "" {
		current, ok := m.entities[req.ID]
		if !ok || current.Kind != entity.KindFile {
			return nil, fmt.Errorf("%w: file %s", ErrNotFound, req.ID)
		}
		e = current.Clone()
	} else {
		parent, ok := m.entities[req.ParentID]
		if !ok || !parent.Kind.Container() {
			return nil, fmt.Errorf("%w: container %s", ErrNotFound, req.ParentID)
		}
		e = &entity.Entity{ParentID: req.ParentID, Kind: entity.KindFile, Type: entity.KindFile.String(), Name: req.Name}
	}
	stored := m.putLocked(e)
	m.content[stored.ID] = slices.Clone(req.Content)
	return stored, nil
}

// Close implements Repository.
func (m *Memory) Close() error {
	return nil
}

var _ Repository = (*Memory)(nil)

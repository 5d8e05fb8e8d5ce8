package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/syt-tools/syt/internal/entity"
	"github.com/syt-tools/syt/internal/logging"
)

const postgresDefaultTimeout = 5 * time.Second

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// Postgres is a Repository stored in PostgreSQL. Tables are created on first
// use. Index views are computed from the entity table on every query, so they
// never lag.
type Postgres struct {
	dsn      string
	username string
	password string
	timeout  time.Duration
	openDB   sqlOpenFunc
	logger   *logging.Logger

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

// NewPostgres creates a Postgres repository. No connection is made until the
// first call.
func NewPostgres(dsn string, opts Options) (*Postgres, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty postgres dsn", ErrUnsupportedScheme)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = postgresDefaultTimeout
	}
	return &Postgres{
		dsn:      dsn,
		username: opts.Username,
		password: opts.Password,
		timeout:  timeout,
		openDB:   sql.Open,
		logger:   opts.logger(),
	}, nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS syt_entities (
		id TEXT PRIMARY KEY,
		parent_id TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		version TEXT NOT NULL,
		annotations TEXT NOT NULL DEFAULT '{}',
		position BIGSERIAL
	)`,
	`CREATE INDEX IF NOT EXISTS syt_entities_parent_idx ON syt_entities (parent_id)`,
	`CREATE TABLE IF NOT EXISTS syt_users (
		owner_id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS syt_acl (
		entity_id TEXT NOT NULL,
		principal_id TEXT NOT NULL,
		access TEXT[] NOT NULL,
		PRIMARY KEY (entity_id, principal_id)
	)`,
	`CREATE TABLE IF NOT EXISTS syt_teams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS syt_team_members (
		team_id TEXT NOT NULL REFERENCES syt_teams (id),
		owner_id TEXT NOT NULL,
		PRIMARY KEY (team_id, owner_id)
	)`,
	`CREATE TABLE IF NOT EXISTS syt_views (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		project_id TEXT NOT NULL,
		kinds TEXT[] NOT NULL,
		scope TEXT[] NOT NULL,
		columns TEXT NOT NULL,
		UNIQUE (project_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS syt_content (
		entity_id TEXT PRIMARY KEY,
		data BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

func (p *Postgres) ensureReady(ctx context.Context) error {
	p.initOnce.Do(func() {
		db, err := p.openDB("postgres", p.dsn)
		if err != nil {
			p.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		for _, stmt := range postgresSchema {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				_ = db.Close()
				p.initErr = fmt.Errorf("failed to create schema: %w", err)
				return
			}
		}
		p.db = db
	})
	return p.initErr
}

// begin readies the schema and bounds the call by the configured timeout.
func (p *Postgres) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := p.ensureReady(ctx); err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	return ctx, cancel, nil
}

func scanEntity(row interface{ Scan(...any) error }) (*entity.Entity, error) {
	var (
		e           entity.Entity
		annotations string
	)
	if err := row.Scan(&e.ID, &e.ParentID, &e.Type, &e.Name, &e.Version, &annotations); err != nil {
		return nil, err
	}
	e.Kind = entity.ParseKind(e.Type)
	if err := json.Unmarshal([]byte(annotations), &e.Annotations); err != nil {
		return nil, fmt.Errorf("entity %s has malformed annotations: %w", e.ID, err)
	}
	return &e, nil
}

const entityColumns = `id, parent_id, type, name, version, annotations`

// GetEntity implements Repository.
func (p *Postgres) GetEntity(ctx context.Context, id string) (*entity.Entity, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	e, err := scanEntity(p.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM syt_entities WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: entity %s", ErrNotFound, id)
	}
	return e, err
}

// Store implements Repository.
func (p *Postgres) Store(ctx context.Context, e *entity.Entity) (*entity.Entity, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	annotations, err := json.Marshal(e.Annotations)
	if err != nil {
		return nil, err
	}
	if e.Annotations == nil {
		annotations = []byte("{}")
	}
	next := uuid.NewString()
	res, err := p.db.ExecContext(ctx,
		`UPDATE syt_entities SET parent_id = $2, name = $3, annotations = $4, version = $5
		 WHERE id = $1 AND version = $6`,
		e.ID, e.ParentID, e.Name, string(annotations), next, e.Version)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		var exists bool
		if err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM syt_entities WHERE id = $1)`, e.ID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: entity %s", ErrNotFound, e.ID)
		}
		return nil, fmt.Errorf("%w: entity %s", ErrVersionConflict, e.ID)
	}
	stored := e.Clone()
	stored.Version = next
	return stored, nil
}

// Insert adds a new entity and returns it with its version. It is used to
// seed a database; the lock protocol never creates entities.
func (p *Postgres) Insert(ctx context.Context, e *entity.Entity) (*entity.Entity, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return p.insertEntity(ctx, p.db, e)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (p *Postgres) insertEntity(ctx context.Context, db execer, e *entity.Entity) (*entity.Entity, error) {
	stored := e.Clone()
	if stored.ID == "" {
		stored.ID = "syn" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	if stored.Type == "" {
		stored.Type = stored.Kind.String()
	}
	if stored.Annotations == nil {
		stored.Annotations = entity.Annotations{}
	}
	annotations, err := json.Marshal(stored.Annotations)
	if err != nil {
		return nil, err
	}
	stored.Version = uuid.NewString()
	_, err = db.ExecContext(ctx,
		`INSERT INTO syt_entities (id, parent_id, kind, type, name, version, annotations)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		stored.ID, stored.ParentID, stored.Kind.String(), stored.Type, stored.Name, stored.Version, string(annotations))
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListChildren implements Repository.
func (p *Postgres) ListChildren(ctx context.Context, parentID string, kinds ...entity.Kind) ([]entity.ChildSummary, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, kind FROM syt_entities
		 WHERE parent_id = $1 AND (cardinality($2::text[]) = 0 OR kind = ANY($2))
		 ORDER BY position`,
		parentID, pq.Array(kindNames(kinds)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.ChildSummary
	for rows.Next() {
		var (
			c    entity.ChildSummary
			kind string
		)
		if err := rows.Scan(&c.ID, &c.Name, &kind); err != nil {
			return nil, err
		}
		c.Kind = entity.ParseKind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

func kindNames(kinds []entity.Kind) []string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}
	return names
}

// GetView implements Repository.
func (p *Postgres) GetView(ctx context.Context, projectID, name string) (entity.ViewHandle, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return entity.ViewHandle{}, err
	}
	defer cancel()

	var (
		h       entity.ViewHandle
		columns string
	)
	err = p.db.QueryRowContext(ctx,
		`SELECT id, name, project_id, columns FROM syt_views WHERE project_id = $1 AND name = $2`,
		projectID, name).Scan(&h.ID, &h.Name, &h.ProjectID, &columns)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ViewHandle{}, fmt.Errorf("%w: view %q in %s", ErrNotFound, name, projectID)
	}
	if err != nil {
		return entity.ViewHandle{}, err
	}
	if err := json.Unmarshal([]byte(columns), &h.Columns); err != nil {
		return entity.ViewHandle{}, fmt.Errorf("view %s has malformed columns: %w", h.ID, err)
	}
	return h, nil
}

// CreateView implements Repository.
func (p *Postgres) CreateView(ctx context.Context, spec entity.ViewSpec) (entity.ViewHandle, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return entity.ViewHandle{}, err
	}
	defer cancel()

	columns, err := json.Marshal(spec.Columns)
	if err != nil {
		return entity.ViewHandle{}, err
	}
	scope := spec.Scope
	if len(scope) == 0 {
		scope = []string{spec.ProjectID}
	}
	h := entity.ViewHandle{ID: uuid.NewString(), Name: spec.Name, ProjectID: spec.ProjectID, Columns: slices.Clone(spec.Columns)}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO syt_views (id, name, project_id, kinds, scope, columns) VALUES ($1, $2, $3, $4, $5, $6)`,
		h.ID, h.Name, h.ProjectID, pq.Array(kindNames(spec.Kinds)), pq.Array(scope), string(columns))
	if err != nil {
		return entity.ViewHandle{}, err
	}
	return h, nil
}

// QueryView implements Repository.
func (p *Postgres) QueryView(ctx context.Context, viewID string, q entity.ViewQuery) ([]entity.Row, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var (
		projectID string
		kinds     []string
		scope     []string
	)
	err = p.db.QueryRowContext(ctx, `SELECT project_id, kinds, scope FROM syt_views WHERE id = $1`, viewID).
		Scan(&projectID, pq.Array(&kinds), pq.Array(&scope))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: view %s", ErrNotFound, viewID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		WITH RECURSIVE tree AS (
			SELECT id FROM syt_entities WHERE id = ANY($1)
			UNION
			SELECT e.id FROM syt_entities e JOIN tree t ON e.parent_id = t.id
		)
		SELECT `+entityColumns+` FROM syt_entities
		WHERE id IN (SELECT id FROM tree) AND kind = ANY($2) AND ($3 = '' OR parent_id = $3)
		ORDER BY position`,
		pq.Array(scope), pq.Array(kinds), q.ParentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Row
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		r := rowFor(e, projectID)
		if q.LockedOnly && !r.Locked() {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetACL implements Repository. The nearest ancestor with entries governs.
func (p *Postgres) GetACL(ctx context.Context, entityID string) (entity.ACL, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return entity.ACL{}, err
	}
	defer cancel()
	return p.benefactorACL(ctx, entityID)
}

func (p *Postgres) benefactorACL(ctx context.Context, entityID string) (entity.ACL, error) {
	seen := make(map[string]bool)
	for id := entityID; id != "" && !seen[id]; {
		seen[id] = true
		acl, err := p.directACL(ctx, id)
		if err != nil {
			return entity.ACL{}, err
		}
		if len(acl.Entries) > 0 {
			return acl, nil
		}
		var parentID string
		err = p.db.QueryRowContext(ctx, `SELECT parent_id FROM syt_entities WHERE id = $1`, id).Scan(&parentID)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.ACL{}, fmt.Errorf("%w: entity %s", ErrNotFound, id)
		}
		if err != nil {
			return entity.ACL{}, err
		}
		id = parentID
	}
	return entity.ACL{EntityID: entityID}, nil
}

func (p *Postgres) directACL(ctx context.Context, entityID string) (entity.ACL, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT principal_id, access FROM syt_acl WHERE entity_id = $1 ORDER BY principal_id`, entityID)
	if err != nil {
		return entity.ACL{}, err
	}
	defer rows.Close()

	acl := entity.ACL{EntityID: entityID}
	for rows.Next() {
		var (
			entry  entity.ACLEntry
			access []string
		)
		if err := rows.Scan(&entry.PrincipalID, pq.Array(&access)); err != nil {
			return entity.ACL{}, err
		}
		for _, a := range access {
			entry.AccessTypes = append(entry.AccessTypes, entity.Permission(a))
		}
		acl.Entries = append(acl.Entries, entry)
	}
	return acl, rows.Err()
}

// SetACL replaces the ACL attached directly to an entity.
func (p *Postgres) SetACL(ctx context.Context, entityID string, entries ...entity.ACLEntry) error {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM syt_acl WHERE entity_id = $1`, entityID); err != nil {
		return err
	}
	for _, entry := range entries {
		access := make([]string, 0, len(entry.AccessTypes))
		for _, a := range entry.AccessTypes {
			access = append(access, string(a))
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO syt_acl (entity_id, principal_id, access) VALUES ($1, $2, $3)`,
			entityID, entry.PrincipalID, pq.Array(access)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetPermissions implements Repository.
func (p *Postgres) GetPermissions(ctx context.Context, entityID string) ([]entity.Permission, error) {
	user, err := p.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	acl, err := p.benefactorACL(ctx, entityID)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `SELECT team_id FROM syt_team_members WHERE owner_id = $1`, user.OwnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	teams := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		teams[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return effectivePermissions(acl, user.OwnerID, func(teamID string) bool { return teams[teamID] }), nil
}

// GetUser implements Repository.
func (p *Postgres) GetUser(ctx context.Context, principalID string) (entity.UserProfile, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return entity.UserProfile{}, err
	}
	defer cancel()

	var u entity.UserProfile
	err = p.db.QueryRowContext(ctx, `SELECT owner_id, user_name FROM syt_users WHERE owner_id = $1`, principalID).
		Scan(&u.OwnerID, &u.UserName)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.UserProfile{}, fmt.Errorf("%w: user %s", ErrNotFound, principalID)
	}
	return u, err
}

// AddUser registers a user.
func (p *Postgres) AddUser(ctx context.Context, ownerID, userName, password string) error {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	hash := ""
	if password != "" {
		if hash, err = HashPassword(password); err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", userName, err)
		}
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO syt_users (owner_id, user_name, password_hash) VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id) DO UPDATE SET user_name = EXCLUDED.user_name, password_hash = EXCLUDED.password_hash`,
		ownerID, userName, hash)
	return err
}

// AddTeam registers a team and its members.
func (p *Postgres) AddTeam(ctx context.Context, teamID string, memberIDs ...string) error {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO syt_teams (id) VALUES ($1) ON CONFLICT DO NOTHING`, teamID); err != nil {
		return err
	}
	for _, id := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO syt_team_members (team_id, owner_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, teamID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetTeamMembers implements Repository.
func (p *Postgres) GetTeamMembers(ctx context.Context, teamID string) ([]entity.TeamMember, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM syt_teams WHERE id = $1)`, teamID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: team %s", ErrNotFound, teamID)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT m.owner_id, COALESCE(u.user_name, '')
		FROM syt_team_members m LEFT JOIN syt_users u ON u.owner_id = m.owner_id
		WHERE m.team_id = $1 ORDER BY m.owner_id`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.TeamMember
	for rows.Next() {
		m := entity.TeamMember{TeamID: teamID}
		if err := rows.Scan(&m.OwnerID, &m.UserName); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CurrentUser implements Repository.
func (p *Postgres) CurrentUser(ctx context.Context) (entity.UserProfile, error) {
	if p.username == "" {
		return entity.UserProfile{}, fmt.Errorf("%w: no credentials supplied", ErrUnauthenticated)
	}
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return entity.UserProfile{}, err
	}
	defer cancel()

	var (
		u    entity.UserProfile
		hash string
	)
	err = p.db.QueryRowContext(ctx,
		`SELECT owner_id, user_name, password_hash FROM syt_users WHERE user_name = $1 OR owner_id = $1`,
		p.username).Scan(&u.OwnerID, &u.UserName, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.UserProfile{}, fmt.Errorf("%w: unknown user %s", ErrUnauthenticated, p.username)
	}
	if err != nil {
		return entity.UserProfile{}, err
	}
	if !checkPassword(hash, p.password) {
		return entity.UserProfile{}, fmt.Errorf("%w: bad password for %s", ErrUnauthenticated, p.username)
	}
	return u, nil
}

// Download implements Repository.
func (p *Postgres) Download(ctx context.Context, fileID string) ([]byte, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var data []byte
	err = p.db.QueryRowContext(ctx, `
		SELECT COALESCE(c.data, ''::bytea) FROM syt_entities e
		LEFT JOIN syt_content c ON c.entity_id = e.id
		WHERE e.id = $1 AND e.kind = 'file'`, fileID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, fileID)
	}
	return data, err
}

// Upload implements Repository.
func (p *Postgres) Upload(ctx context.Context, req UploadRequest) (*entity.Entity, error) {
	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var stored *entity.Entity
	if req.ID == "" {
		var parentKind string
		err := tx.QueryRowContext(ctx, `SELECT kind FROM syt_entities WHERE id = $1`, req.ParentID).Scan(&parentKind)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !entity.ParseKind(parentKind).Container()) {
			return nil, fmt.Errorf("%w: container %s", ErrNotFound, req.ParentID)
		}
		if err != nil {
			return nil, err
		}
		stored, err = p.insertEntity(ctx, tx, &entity.Entity{ParentID: req.ParentID, Kind: entity.KindFile, Name: req.Name})
		if err != nil {
			return nil, err
		}
	} else {
		stored, err = scanEntity(tx.QueryRowContext(ctx,
			`UPDATE syt_entities SET version = $2 WHERE id = $1 AND kind = 'file' RETURNING `+entityColumns,
			req.ID, uuid.NewString()))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: file %s", ErrNotFound, req.ID)
		}
		if err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO syt_content (entity_id, data, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (entity_id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		stored.ID, req.Content); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	p.logger.Debug("uploaded file", "entity_id", stored.ID, "bytes", len(req.Content))
	return stored, nil
}

// Close implements Repository.
func (p *Postgres) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

var _ Repository = (*Postgres)(nil)

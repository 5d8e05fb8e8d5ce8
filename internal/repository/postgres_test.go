package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/syt-tools/syt/internal/entity"
)

// newTestPostgres connects to SYT_TEST_POSTGRES_DSN. Each test gets fresh
// tables.
func newTestPostgres(t *testing.T, opts Options) *Postgres {
	t.Helper()
	dsn := os.Getenv("SYT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SYT_TEST_POSTGRES_DSN not set")
	}
	p, err := NewPostgres(dsn, opts)
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	ctx := context.Background()
	if err := p.ensureReady(ctx); err != nil {
		t.Fatalf("ensureReady() error = %v", err)
	}
	if _, err := p.db.ExecContext(ctx, `TRUNCATE syt_entities, syt_acl, syt_users, syt_team_members, syt_teams, syt_views, syt_content`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewPostgres_EmptyDSN(t *testing.T) {
	if _, err := NewPostgres(" ", Options{}); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("NewPostgres() error = %v, want ErrUnsupportedScheme", err)
	}
}

func TestPostgres_LockRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestPostgres(t, Options{Username: "alice", Password: "pw"})

	mustInsert := func(e *entity.Entity) *entity.Entity {
		t.Helper()
		stored, err := p.Insert(ctx, e)
		if err != nil {
			t.Fatalf("Insert(%s) error = %v", e.Name, err)
		}
		return stored
	}
	proj := mustInsert(&entity.Entity{ID: "syn1", Kind: entity.KindProject, Name: "P"})
	mustInsert(&entity.Entity{ID: "syn2", ParentID: proj.ID, Kind: entity.KindFolder, Name: "A"})
	mustInsert(&entity.Entity{ID: "syn3", ParentID: "syn2", Kind: entity.KindFile, Name: "F"})

	if err := p.AddUser(ctx, "1", "alice", "pw"); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	if err := p.AddTeam(ctx, "100", "1"); err != nil {
		t.Fatalf("AddTeam() error = %v", err)
	}
	if err := p.SetACL(ctx, "syn1", entity.ACLEntry{PrincipalID: "100", AccessTypes: entity.AdminPermissions()}); err != nil {
		t.Fatalf("SetACL() error = %v", err)
	}

	perms, err := p.GetPermissions(ctx, "syn3")
	if err != nil {
		t.Fatalf("GetPermissions() error = %v", err)
	}
	if !entity.IsAdminSet(perms) {
		t.Errorf("GetPermissions() = %v, want admin set", perms)
	}

	h, err := p.CreateView(ctx, entity.ViewSpec{Name: "syt", ProjectID: "syn1", Kinds: []entity.Kind{entity.KindFolder, entity.KindFile}})
	if err != nil {
		t.Fatalf("CreateView() error = %v", err)
	}

	e, err := p.GetEntity(ctx, "syn3")
	if err != nil {
		t.Fatalf("GetEntity() error = %v", err)
	}
	stale := e.Clone()
	e.ApplyLock(entity.LockRecord{LockerID: "1", LockerName: "alice"})
	if _, err := p.Store(ctx, e); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if _, err := p.Store(ctx, stale); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("Store(stale) error = %v, want ErrVersionConflict", err)
	}

	rows, err := p.QueryView(ctx, h.ID, entity.ViewQuery{LockedOnly: true})
	if err != nil {
		t.Fatalf("QueryView() error = %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "syn3" || rows[0].LockerName != "alice" {
		t.Errorf("QueryView() = %+v", rows)
	}

	members, err := p.GetTeamMembers(ctx, "100")
	if err != nil || len(members) != 1 || members[0].UserName != "alice" {
		t.Errorf("GetTeamMembers() = %+v, %v", members, err)
	}
	if _, err := p.GetUser(ctx, "100"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(team) error = %v, want ErrNotFound", err)
	}

	if _, err := p.Upload(ctx, UploadRequest{ID: "syn3", Content: []byte("data")}); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	data, err := p.Download(ctx, "syn3")
	if err != nil || string(data) != "data" {
		t.Errorf("Download() = %q, %v", data, err)
	}
}

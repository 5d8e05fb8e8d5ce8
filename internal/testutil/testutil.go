// Package testutil provides repository fixtures for syt tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/syt-tools/syt/internal/entity"
	"github.com/syt-tools/syt/internal/repository"
	"github.com/syt-tools/syt/internal/session"
)

// Fixture users. Alice administers the project; Bob can only edit.
var (
	Alice = entity.UserProfile{OwnerID: "1", UserName: "alice"}
	Bob   = entity.UserProfile{OwnerID: "7", UserName: "bob"}
)

// Passwords accepted for the fixture users.
const (
	AlicePassword = "alice-pw"
	BobPassword   = "bob-pw"
)

// Entity ids of the fixture tree.
const (
	ProjectID = "syn1" // P
	FolderA   = "syn2" // P/A
	FolderB   = "syn3" // P/A/B
	FileG     = "syn4" // P/A/G
	FileF     = "syn5" // P/A/B/F
	TableT    = "syn6" // P/T, not lockable
)

// NewTree builds the fixture repository:
//
//	P (syn1)
//	├── A (syn2)
//	│   ├── B (syn3)
//	│   │   └── F (syn5)
//	│   └── G (syn4)
//	└── T (syn6, table)
//
// Alice holds the administrator set on P and is the current user.
func NewTree(t *testing.T, opts ...repository.MemoryOption) *repository.Memory {
	t.Helper()

	m := repository.NewMemory(opts...)
	m.AddUser(Alice.OwnerID, Alice.UserName, AlicePassword)
	m.AddUser(Bob.OwnerID, Bob.UserName, BobPassword)
	m.SetCurrentUser(Alice.OwnerID)

	m.Put(&entity.Entity{ID: ProjectID, Kind: entity.KindProject, Name: "P"})
	m.Put(&entity.Entity{ID: FolderA, ParentID: ProjectID, Kind: entity.KindFolder, Name: "A"})
	m.Put(&entity.Entity{ID: FolderB, ParentID: FolderA, Kind: entity.KindFolder, Name: "B"})
	m.Put(&entity.Entity{ID: FileG, ParentID: FolderA, Kind: entity.KindFile, Name: "G"})
	m.Put(&entity.Entity{ID: FileF, ParentID: FolderB, Kind: entity.KindFile, Name: "F"})
	m.Put(&entity.Entity{ID: TableT, ParentID: ProjectID, Kind: entity.KindOther, Type: "table", Name: "T"})

	m.SetContent(FileG, []byte("g contents\n"))
	m.SetContent(FileF, []byte("f contents\n"))

	m.SetACL(ProjectID,
		entity.ACLEntry{PrincipalID: Alice.OwnerID, AccessTypes: entity.AdminPermissions()},
		entity.ACLEntry{PrincipalID: Bob.OwnerID, AccessTypes: []entity.Permission{entity.PermRead, entity.PermUpdate, entity.PermDownload}},
	)
	return m
}

// OpenSession makes user the current user of m and opens a session for them.
func OpenSession(t *testing.T, m *repository.Memory, user entity.UserProfile) *session.Session {
	t.Helper()

	m.SetCurrentUser(user.OwnerID)
	sess, err := session.Open(context.Background(), m, nil)
	if err != nil {
		t.Fatalf("failed to open session for %s: %v", user.UserName, err)
	}
	return sess
}

// Lock writes lock annotations for user on id directly, bypassing the
// protocol.
func Lock(t *testing.T, m *repository.Memory, id string, user entity.UserProfile) {
	t.Helper()

	e, err := m.GetEntity(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to get %s: %v", id, err)
	}
	e.ApplyLock(entity.LockRecord{LockerID: user.OwnerID, LockerName: user.UserName})
	if _, err := m.Store(context.Background(), e); err != nil {
		t.Fatalf("failed to lock %s: %v", id, err)
	}
}

// Versions returns the current version of every fixture entity.
func Versions(t *testing.T, m *repository.Memory) map[string]string {
	t.Helper()

	out := make(map[string]string)
	for _, id := range []string{ProjectID, FolderA, FolderB, FileG, FileF, TableT} {
		e, err := m.GetEntity(context.Background(), id)
		if err != nil {
			t.Fatalf("failed to get %s: %v", id, err)
		}
		out[id] = e.Version
	}
	return out
}

// WriteFileRepo writes m as a snapshot in a temp dir and returns a file://
// DSN for it.
func WriteFileRepo(t *testing.T, m *repository.Memory) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "repo.yaml")
	if err := repository.WriteSnapshot(path, m.Snapshot()); err != nil {
		t.Fatalf("failed to write repository snapshot: %v", err)
	}
	return "file://" + path
}

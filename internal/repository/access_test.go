package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "secret" || !strings.HasPrefix(hash, "$2") {
		t.Errorf("HashPassword() = %q, want a bcrypt hash", hash)
	}
	again, _ := HashPassword("secret")
	if again == hash {
		t.Error("HashPassword() should salt each hash")
	}

	tests := []struct {
		name     string
		hash     string
		password string
		want     bool
	}{
		{"match", hash, "secret", true},
		{"mismatch", hash, "Secret", false},
		{"no hash accepts anything", "", "whatever", true},
		{"locked hash", lockedHash, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkPassword(tt.hash, tt.password); got != tt.want {
				t.Errorf("checkPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemory_AddUserUnhashablePassword(t *testing.T) {
	long := strings.Repeat("x", 80)
	if _, err := HashPassword(long); err == nil {
		t.Fatal("HashPassword() should reject passwords over 72 bytes")
	}

	m := NewMemory(WithCredentials("alice", long))
	m.AddUser("1", "alice", long)
	if _, err := m.CurrentUser(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("CurrentUser() error = %v, want ErrUnauthenticated", err)
	}
}

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "syt.log")

		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer func() { _ = rw.Close() }()

		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", path)
		}
	})

	t.Run("appends to existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "syt.log")
		if err := os.WriteFile(path, []byte("initial\n"), 0644); err != nil {
			t.Fatalf("failed to seed log file: %v", err)
		}

		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		if rw.Size() != int64(len("initial\n")) {
			t.Errorf("Size() = %d, want %d", rw.Size(), len("initial\n"))
		}
		if _, err := rw.Write([]byte("appended\n")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		_ = rw.Close()

		content, _ := os.ReadFile(path)
		if string(content) != "initial\nappended\n" {
			t.Errorf("content = %q", content)
		}
	})
}

func TestRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syt.log")
	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = rw.Close() }()

	chunk := []byte(strings.Repeat("x", 700*1024) + "\n")
	for range 3 {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	for _, p := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("expected no third backup, stat err = %v", err)
	}
	if rw.Size() != int64(len(chunk)) {
		t.Errorf("Size() after rotation = %d, want %d", rw.Size(), len(chunk))
	}
}

func TestRotationWithoutBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syt.log")
	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = rw.Close() }()

	chunk := []byte(strings.Repeat("y", 700*1024))
	_, _ = rw.Write(chunk)
	_, _ = rw.Write(chunk)

	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Errorf("expected no backup file, stat err = %v", err)
	}
	if rw.Size() != int64(len(chunk)) {
		t.Errorf("Size() = %d, want %d", rw.Size(), len(chunk))
	}
}

func TestWriteAfterClose(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "syt.log"), RotationConfig{})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	_ = rw.Close()
	if _, err := rw.Write([]byte("late")); err == nil {
		t.Error("expected error writing to closed writer")
	}
}

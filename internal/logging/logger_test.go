package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func decodeLines(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for i, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", i, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "syt.log")

		logger, err := NewLogger(path, LevelDebug, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", path)
		}
	})

	t.Run("writes to stderr when path is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo, RotationConfig{})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger.closer != nil {
			t.Error("expected no closer when logging to stderr")
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close() = %v", err)
		}
	})
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelDebug)

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")

	entries := decodeLines(t, buf.String())
	if len(entries) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(entries))
	}

	wantLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	for i, entry := range entries {
		if entry["level"] != wantLevels[i] {
			t.Errorf("line %d: level = %v, want %s", i, entry["level"], wantLevels[i])
		}
		if entry["key"] != "value" {
			t.Errorf("line %d: key = %v, want value", i, entry["key"])
		}
	}
}

func TestDefaultLevelIsWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "bogus")

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	entries := decodeLines(t, buf.String())
	if len(entries) != 1 {
		t.Fatalf("expected only the WARN line, got %d: %s", len(entries), buf.String())
	}
	if logger.Enabled(LevelInfo) {
		t.Error("Enabled(INFO) = true at WARN level")
	}
}

func TestPersistentAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLogger(&buf, LevelDebug)

	child := base.WithCommand("checkout").WithProject("syn1").WithEntity("syn2").With("attempt", 2)
	child.Info("entity stored")
	base.Info("no attrs")

	entries := decodeLines(t, buf.String())
	if len(entries) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(entries))
	}

	want := map[string]any{
		"command":    "checkout",
		"project_id": "syn1",
		"entity_id":  "syn2",
		"attempt":    float64(2),
	}
	for k, v := range want {
		if entries[0][k] != v {
			t.Errorf("%s = %v, want %v", k, entries[0][k], v)
		}
	}
	if _, ok := entries[1]["command"]; ok {
		t.Error("parent logger picked up child attributes")
	}
}

func TestWithSkipsNonStringKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelDebug).With(42, "ignored", "kept", true)
	logger.Info("msg")

	entries := decodeLines(t, buf.String())
	if entries[0]["kept"] != true {
		t.Errorf("kept = %v, want true", entries[0]["kept"])
	}
	if len(logger.attrs) != 1 {
		t.Errorf("attrs = %d, want 1", len(logger.attrs))
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Error("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"", LevelWarn},
		{"verbose", LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidLevels(t *testing.T) {
	levels := ValidLevels()
	if len(levels) != 4 {
		t.Fatalf("expected 4 levels, got %d", len(levels))
	}
	for _, l := range levels {
		if ParseLevel(l) != l {
			t.Errorf("ParseLevel(%q) did not round-trip", l)
		}
	}
}

func TestClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syt.log")
	logger, err := NewLogger(path, LevelInfo, RotationConfig{})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.WithCommand("show").Warn("before close")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "before close") {
		t.Errorf("log file missing record: %s", content)
	}
}

func TestConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syt.log")
	logger, err := NewLogger(path, LevelInfo, RotationConfig{})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 20 {
				logger.With("worker", n).Info("write", "seq", j)
			}
		}(i)
	}
	wg.Wait()
	_ = logger.Close()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if got := len(decodeLines(t, string(content))); got != 200 {
		t.Errorf("expected 200 lines, got %d", got)
	}
}

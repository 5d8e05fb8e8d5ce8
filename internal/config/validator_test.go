package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("Default().Validate() = %v, want no errors", errs)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"empty url", func(c *Config) { c.Repository.URL = "" }, "repository.url"},
		{"unknown scheme", func(c *Config) { c.Repository.URL = "s3://bucket" }, "repository.url"},
		{"zero timeout", func(c *Config) { c.Repository.TimeoutSeconds = 0 }, "repository.timeout_seconds"},
		{"too many retries", func(c *Config) { c.Repository.MaxRetries = 11 }, "repository.max_retries"},
		{"negative retries", func(c *Config) { c.Repository.MaxRetries = -1 }, "repository.max_retries"},
		{"blank id prefix", func(c *Config) { c.Repository.IDPrefix = " " }, "repository.id_prefix"},
		{"bad view refresh", func(c *Config) { c.Repository.ViewRefresh = "lazy" }, "repository.view_refresh"},
		{"empty view name", func(c *Config) { c.Protocol.ViewName = "" }, "protocol.view_name"},
		{"pointer with dir", func(c *Config) { c.Protocol.PointerFile = "a/.syt" }, "protocol.pointer_file"},
		{"empty manifest", func(c *Config) { c.Protocol.ManifestFile = "" }, "protocol.manifest_file"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"negative log size", func(c *Config) { c.Logging.MaxSizeMB = -1 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -2 }, "logging.max_backups"},
		{"bad color", func(c *Config) { c.Output.Color = "sometimes" }, "output.color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("Validate() = %v, want exactly one error", errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Validate() field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestConfig_Validate_AcceptsAllSchemes(t *testing.T) {
	for _, u := range []string{
		"memory://",
		"file:///tmp/repo.yaml",
		"postgres://user:pw@localhost/syt?sslmode=disable",
		"https://repo.example.com/api",
	} {
		t.Run(u, func(t *testing.T) {
			cfg := Default()
			cfg.Repository.URL = u
			if errs := cfg.Validate(); len(errs) != 0 {
				t.Errorf("Validate() = %v", errs)
			}
		})
	}
}

func TestConfig_Validate_UppercaseLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "DEBUG"
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v, want uppercase level accepted", errs)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Repository.IDPrefix != "syn" {
		t.Errorf("Repository.IDPrefix = %q, want %q", cfg.Repository.IDPrefix, "syn")
	}
	if cfg.Repository.TimeoutSeconds != 30 {
		t.Errorf("Repository.TimeoutSeconds = %d, want 30", cfg.Repository.TimeoutSeconds)
	}
	if cfg.Repository.ViewRefresh != "immediate" {
		t.Errorf("Repository.ViewRefresh = %q, want immediate", cfg.Repository.ViewRefresh)
	}
	if cfg.Protocol.ViewName != "syt" {
		t.Errorf("Protocol.ViewName = %q, want syt", cfg.Protocol.ViewName)
	}
	if cfg.Protocol.PointerFile != ".syt" {
		t.Errorf("Protocol.PointerFile = %q, want .syt", cfg.Protocol.PointerFile)
	}
	if cfg.Protocol.ManifestFile != "SYNAPSE_METADATA_MANIFEST.tsv" {
		t.Errorf("Protocol.ManifestFile = %q", cfg.Protocol.ManifestFile)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Output.Color != "auto" {
		t.Errorf("Output.Color = %q, want auto", cfg.Output.Color)
	}
}

func TestRepositoryConfig_Timeout(t *testing.T) {
	rc := RepositoryConfig{TimeoutSeconds: 12}
	if got := rc.Timeout().Seconds(); got != 12 {
		t.Errorf("Timeout() = %vs, want 12s", got)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got, want := ConfigDir(), "/custom/config/syt"; got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		if got, want := ConfigDir(), filepath.Join(home, ".config", "syt"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := ConfigFile(), "/custom/config/syt/config.yaml"; got != want {
		t.Errorf("ConfigFile() = %q, want %q", got, want)
	}
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Protocol.ViewName != "syt" {
		t.Errorf("Protocol.ViewName = %q, want syt", cfg.Protocol.ViewName)
	}
	if cfg.Repository.MaxRetries != 3 {
		t.Errorf("Repository.MaxRetries = %d, want 3", cfg.Repository.MaxRetries)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	v := viper.New()
	for k, val := range map[string]any{
		"repository.url":             "ftp://example.com",
		"repository.timeout_seconds": 30,
		"repository.id_prefix":       "syn",
		"protocol.view_name":         "syt",
		"protocol.pointer_file":      ".syt",
		"protocol.manifest_file":     "m.tsv",
	} {
		v.Set(k, val)
	}

	_, err := LoadFrom(v)
	if err == nil {
		t.Fatal("LoadFrom() expected error for ftp scheme")
	}
	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("LoadFrom() error type = %T, want ValidationErrors", err)
	}
	if len(errs) != 1 || errs[0].Field != "repository.url" {
		t.Errorf("LoadFrom() errors = %v", errs)
	}
}

func TestBindLegacyEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantUser string
		wantPass string
	}{
		{
			name:     "legacy variables",
			env:      map[string]string{"SYNAPSE_USER": "alice", "SYNAPSE_PASSWORD": "pw"},
			wantUser: "alice",
			wantPass: "pw",
		},
		{
			name: "prefixed variables win",
			env: map[string]string{
				"SYT_AUTH_USERNAME": "bob",
				"SYNAPSE_USER":      "alice",
			},
			wantUser: "bob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"SYT_AUTH_USERNAME", "SYT_AUTH_PASSWORD", "SYNAPSE_USER", "SYNAPSE_PASSWORD"} {
				t.Setenv(k, "")
			}
			for k, val := range tt.env {
				t.Setenv(k, val)
			}

			v := viper.New()
			if err := BindLegacyEnv(v); err != nil {
				t.Fatalf("BindLegacyEnv() error = %v", err)
			}
			if got := v.GetString("auth.username"); got != tt.wantUser {
				t.Errorf("auth.username = %q, want %q", got, tt.wantUser)
			}
			if got := v.GetString("auth.password"); got != tt.wantPass {
				t.Errorf("auth.password = %q, want %q", got, tt.wantPass)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Auth.Username = "alice"
	cfg.Auth.Password = "secret"

	red := cfg.Redacted()
	if red.Auth.Password == "secret" {
		t.Error("Redacted() kept the password")
	}
	if red.Auth.Token != "" {
		t.Errorf("Redacted() token = %q, want empty", red.Auth.Token)
	}
	if red.Auth.Username != "alice" {
		t.Errorf("Redacted() username = %q, want alice", red.Auth.Username)
	}
	if cfg.Auth.Password != "secret" {
		t.Error("Redacted() mutated the original")
	}
}

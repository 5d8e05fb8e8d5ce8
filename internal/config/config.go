package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete syt configuration
type Config struct {
	Repository RepositoryConfig `mapstructure:"repository" yaml:"repository"`
	Auth       AuthConfig       `mapstructure:"auth" yaml:"auth"`
	Protocol   ProtocolConfig   `mapstructure:"protocol" yaml:"protocol"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
}

// RepositoryConfig selects and tunes the remote entity repository
type RepositoryConfig struct {
	// URL is the repository DSN: memory://, file://<path>, postgres://..., or http(s)://...
	URL string `mapstructure:"url" yaml:"url"`
	// TimeoutSeconds bounds each repository request (default: 30)
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	// MaxRetries is how many times a transient HTTP failure is retried (default: 3)
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// IDPrefix marks an argument as an entity id rather than a path (default: "syn")
	IDPrefix string `mapstructure:"id_prefix" yaml:"id_prefix"`
	// ViewRefresh is how local repositories maintain index views: "immediate" or "manual"
	ViewRefresh string `mapstructure:"view_refresh" yaml:"view_refresh"`
}

// AuthConfig holds credentials for the repository
type AuthConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	// Token is sent as a bearer token to HTTP repositories instead of basic auth
	Token string `mapstructure:"token" yaml:"token"`
}

// ProtocolConfig names the artifacts the lock protocol reads and writes
type ProtocolConfig struct {
	// ViewName is the per-project index view name (default: "syt")
	ViewName string `mapstructure:"view_name" yaml:"view_name"`
	// PointerFile is written into a checkout directory and holds the entity id (default: ".syt")
	PointerFile string `mapstructure:"pointer_file" yaml:"pointer_file"`
	// ManifestFile lists the files materialized by a sync (default: "SYNAPSE_METADATA_MANIFEST.tsv")
	ManifestFile string `mapstructure:"manifest_file" yaml:"manifest_file"`
}

// LoggingConfig controls diagnostic logging
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "warn")
	Level string `mapstructure:"level" yaml:"level"`
	// File receives JSON log records; empty means stderr
	File string `mapstructure:"file" yaml:"file"`
	// MaxSizeMB is the log file size that triggers rotation (default: 5)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated log files to keep (default: 2)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// OutputConfig controls terminal rendering
type OutputConfig struct {
	// Color is "auto", "always", or "never" (default: "auto")
	Color string `mapstructure:"color" yaml:"color"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Repository: RepositoryConfig{
			URL:            "file://" + filepath.Join(ConfigDir(), "repository.yaml"),
			TimeoutSeconds: 30,
			MaxRetries:     3,
			IDPrefix:       "syn",
			ViewRefresh:    "immediate",
		},
		Protocol: ProtocolConfig{
			ViewName:     "syt",
			PointerFile:  ".syt",
			ManifestFile: "SYNAPSE_METADATA_MANIFEST.tsv",
		},
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSizeMB:  5,
			MaxBackups: 2,
		},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}

// Timeout returns the per-request repository timeout as a time.Duration
func (c *RepositoryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SetDefaults registers default values with the global viper instance
func SetDefaults() {
	ApplyDefaults(viper.GetViper())
}

// ApplyDefaults registers default values with v
func ApplyDefaults(v *viper.Viper) {
	defaults := Default()

	// Repository defaults
	v.SetDefault("repository.url", defaults.Repository.URL)
	v.SetDefault("repository.timeout_seconds", defaults.Repository.TimeoutSeconds)
	v.SetDefault("repository.max_retries", defaults.Repository.MaxRetries)
	v.SetDefault("repository.id_prefix", defaults.Repository.IDPrefix)
	v.SetDefault("repository.view_refresh", defaults.Repository.ViewRefresh)

	// Auth defaults (empty, but registered so env bindings are visible to Unmarshal)
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.token", "")

	// Protocol defaults
	v.SetDefault("protocol.view_name", defaults.Protocol.ViewName)
	v.SetDefault("protocol.pointer_file", defaults.Protocol.PointerFile)
	v.SetDefault("protocol.manifest_file", defaults.Protocol.ManifestFile)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Output defaults
	v.SetDefault("output.color", defaults.Output.Color)
}

// BindLegacyEnv binds SYNAPSE_USER and SYNAPSE_PASSWORD as fallbacks for
// the SYT_ prefixed credential variables.
func BindLegacyEnv(v *viper.Viper) error {
	if err := v.BindEnv("auth.username", "SYT_AUTH_USERNAME", "SYNAPSE_USER"); err != nil {
		return err
	}
	return v.BindEnv("auth.password", "SYT_AUTH_PASSWORD", "SYNAPSE_PASSWORD")
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against an explicit viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Redacted returns a copy of the config with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Auth.Password != "" {
		out.Auth.Password = "********"
	}
	if out.Auth.Token != "" {
		out.Auth.Token = "********"
	}
	return &out
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "syt")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".syt-config"
	}
	return filepath.Join(home, ".config", "syt")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

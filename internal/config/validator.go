package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "repository.timeout_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidColorModes returns the list of valid output.color values
func ValidColorModes() []string {
	return []string{"auto", "always", "never"}
}

// ValidViewRefreshModes returns the list of valid repository.view_refresh values
func ValidViewRefreshModes() []string {
	return []string{"immediate", "manual"}
}

// ValidRepositorySchemes returns the DSN schemes repository.url may use
func ValidRepositorySchemes() []string {
	return []string{"memory", "file", "postgres", "postgresql", "http", "https"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateRepository()...)
	errors = append(errors, c.validateProtocol()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateOutput()...)

	return errors
}

func (c *Config) validateRepository() []ValidationError {
	var errors []ValidationError
	r := c.Repository

	if r.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "repository.url",
			Value:   r.URL,
			Message: "must not be empty",
		})
	} else if u, err := url.Parse(r.URL); err != nil || !slices.Contains(ValidRepositorySchemes(), strings.ToLower(u.Scheme)) {
		errors = append(errors, ValidationError{
			Field:   "repository.url",
			Value:   r.URL,
			Message: fmt.Sprintf("scheme must be one of: %s", strings.Join(ValidRepositorySchemes(), ", ")),
		})
	}

	if r.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "repository.timeout_seconds",
			Value:   r.TimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	if r.MaxRetries < 0 || r.MaxRetries > 10 {
		errors = append(errors, ValidationError{
			Field:   "repository.max_retries",
			Value:   r.MaxRetries,
			Message: "must be between 0 and 10",
		})
	}

	if strings.TrimSpace(r.IDPrefix) == "" {
		errors = append(errors, ValidationError{
			Field:   "repository.id_prefix",
			Value:   r.IDPrefix,
			Message: "must not be empty",
		})
	}

	if r.ViewRefresh != "" && !slices.Contains(ValidViewRefreshModes(), r.ViewRefresh) {
		errors = append(errors, ValidationError{
			Field:   "repository.view_refresh",
			Value:   r.ViewRefresh,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidViewRefreshModes(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateProtocol() []ValidationError {
	var errors []ValidationError
	p := c.Protocol

	if p.ViewName == "" {
		errors = append(errors, ValidationError{
			Field:   "protocol.view_name",
			Value:   p.ViewName,
			Message: "must not be empty",
		})
	}

	for field, name := range map[string]string{
		"protocol.pointer_file":  p.PointerFile,
		"protocol.manifest_file": p.ManifestFile,
	} {
		if name == "" {
			errors = append(errors, ValidationError{Field: field, Value: name, Message: "must not be empty"})
			continue
		}
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   name,
				Message: "must be a bare file name without directory components",
			})
		}
	}

	// Stable order for callers that print the errors.
	slices.SortStableFunc(errors, func(a, b ValidationError) int {
		return strings.Compare(a.Field, b.Field)
	})

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError
	l := c.Logging

	if l.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(l.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   l.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if l.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   l.MaxSizeMB,
			Message: "must not be negative",
		})
	}

	if l.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   l.MaxBackups,
			Message: "must not be negative",
		})
	}

	return errors
}

func (c *Config) validateOutput() []ValidationError {
	if c.Output.Color == "" || slices.Contains(ValidColorModes(), c.Output.Color) {
		return nil
	}
	return []ValidationError{{
		Field:   "output.color",
		Value:   c.Output.Color,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidColorModes(), ", ")),
	}}
}

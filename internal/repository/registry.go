package repository

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Factory builds a Repository from a DSN.
type Factory func(dsn string, opts Options) (Repository, error)

var factoryRegistry = struct {
	mu        sync.RWMutex
	factories map[string]Factory
}{
	factories: map[string]Factory{},
}

// Register installs a factory for a DSN scheme, overriding the built-in one.
func Register(scheme string, factory Factory) {
	scheme = normalizeScheme(scheme)
	if scheme == "" || factory == nil {
		return
	}
	factoryRegistry.mu.Lock()
	defer factoryRegistry.mu.Unlock()
	factoryRegistry.factories[scheme] = factory
}

func lookupFactory(scheme string) (Factory, bool) {
	factoryRegistry.mu.RLock()
	defer factoryRegistry.mu.RUnlock()
	factory, ok := factoryRegistry.factories[normalizeScheme(scheme)]
	return factory, ok
}

func normalizeScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}

// Open selects a backend by the DSN scheme.
func Open(dsn string, opts Options) (Repository, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty repository url", ErrUnsupportedScheme)
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid repository url: %w", err)
	}
	scheme := normalizeScheme(parsed.Scheme)
	if factory, ok := lookupFactory(scheme); ok {
		return factory(dsn, opts)
	}
	switch scheme {
	case "memory", "mem":
		return NewMemory(WithViewRefresh(opts.ViewRefresh), WithCredentials(opts.Username, opts.Password)), nil
	case "file":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return OpenFile(path, opts)
	case "postgres", "postgresql":
		return NewPostgres(dsn, opts)
	case "http", "https":
		return NewHTTPClient(dsn, opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

// dsnPath extracts the filesystem path from a file:// DSN, accepting both
// file:///abs/path and file://relative/path.
func dsnPath(parsed *url.URL, dsn string) (string, error) {
	path := parsed.Path
	if parsed.Host != "" {
		path = parsed.Host + parsed.Path
	}
	if path == "" {
		path = strings.TrimPrefix(dsn, "file://")
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("file repository url has no path: %s", dsn)
	}
	return path, nil
}

// Package logging provides structured diagnostic logging for syt.
//
// It wraps log/slog with a JSON handler and persistent attributes so that
// every record emitted while checking an entity out or in carries the
// command, project, and entity it concerns. Diagnostic logs go to stderr or
// to a size-rotated file; user-facing progress lines are printed by the
// commands themselves and never pass through this package.
//
// # Levels
//
// The default level is WARN. The --verbose flag lowers it to DEBUG, which
// traces every repository round trip made by the index, walk, and
// permission components.
//
// # Usage
//
//	logger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level, logging.RotationConfig{})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithCommand("checkout").WithEntity("syn12")
//	log.Debug("loaded entity", "kind", "folder")
//
// Tests that do not care about diagnostics use [NopLogger].
package logging

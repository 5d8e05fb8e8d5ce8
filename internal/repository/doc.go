// Package repository is the boundary to the remote entity repository that
// stores the tree syt locks. The lock protocol only ever talks to the
// [Repository] interface; this package also ships the concrete backends
// selected by DSN scheme through [Open]:
//
//	memory://            in-process tree, used by tests
//	file:///path.yaml    YAML snapshot of an in-process tree, rewritten after each mutation
//	postgres://...       tables in PostgreSQL via lib/pq
//	http(s)://...        REST client with retries
//
// Every backend enforces the version token on [Repository.Store]: storing an
// entity whose Version is not the current one fails with [ErrVersionConflict].
//
// Index views in the local backends follow a [ViewRefresh] mode. In
// [RefreshImmediate] mode queries always reflect the current entities; in
// [RefreshManual] mode rows are a snapshot taken at creation and on
// RefreshViews, which reproduces the lag of a real repository's index.
package repository

// Package sqlite implements the sounding archive on SQLite.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. An archive is a single database file holding the sites
// table and one row of raw sounding text per model run.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Open applies pending migrations; Connect opens an
// existing archive as-is.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Each connection runs in WAL
// mode with a busy timeout so concurrent loaders do not fail on locks.
package sqlite

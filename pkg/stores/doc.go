// Package stores persists run history for the engine.
// It provides a SQLite-backed store with WAL mode, connection pooling,
// and embedded schema migrations. The store records runs, their step
// records, and telemetry events, and serves the queries behind the
// history command.
package stores

// Package config provides PostgreSQL database configuration for store testing.
//
// It contains factory functions for the three supported connection types (pgx.Pool, sql.DB, sqlx.DB).
// All of them read the DSN from LIBRARY_TEST_DATABASE_URL and fall back to a local test database.
// Unlike the production factories they ping eagerly, so tests can skip when no database is reachable.
package config

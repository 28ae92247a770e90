// Package config loads the service configuration and builds the infrastructure it describes.
//
// Configuration is layered: built-in defaults, then an optional YAML file, then an optional
// .env file, then LIBRARY_* environment variables. The factory functions create the PostgreSQL
// connections for the three supported adapters (pgx.Pool, sql.DB, sqlx.DB), the configured
// catalog store, and the OpenTelemetry providers.
package config

// Package postgreswrapper creates PostgreSQL backed stores for tests, one adapter type per run.
//
// The adapter is selected with the ADAPTER_TYPE environment variable (pgx.pool, sql.db, sqlx.db; default pgx.pool).
// Every wrapper works on its own freshly migrated pair of tables which are dropped on cleanup,
// so test packages can run in parallel against the same database.
// Tests are skipped when the database is not reachable.
package postgreswrapper

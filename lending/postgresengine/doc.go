// Package postgresengine provides a PostgreSQL implementation of the catalog store and lending ledger.
//
// Books and ledger entries live in two tables. Every mutation of a book row increments its
// version, and every mutation is conditional on the version the caller read before deciding
// (optimistic compare-and-set). A borrow or return flips the book's borrow flag and inserts or
// closes the ledger entry inside one transaction, so the flag and the set of open entries never
// diverge. A partial unique index additionally guarantees at most one open entry per book.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Per-book compare-and-set with concurrency conflict detection
//   - Replica routing for eventually consistent reads (PGX only)
//   - Configurable table names, logging, metrics and tracing
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewStoreFromPGXPool(db)
//	_ = store.Migrate(ctx)
//
//	store, _ := postgresengine.NewStoreFromSQLDB(
//		sqlDB,
//		postgresengine.WithBooksTableName("library_books"),
//		postgresengine.WithLogger(slog.Default()),
//	)
package postgresengine

package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// schemaStatements returns the DDL for the books and ledger tables.
// The partial unique index on open ledger entries backs the one-open-loan-per-book rule in the database itself.
func (s *Store) schemaStatements() []string {
	books := pq.QuoteIdentifier(s.booksTable)
	ledger := pq.QuoteIdentifier(s.ledgerTable)

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id               uuid        PRIMARY KEY,
	title            text        NOT NULL CHECK (title <> ''),
	author           text        NOT NULL CHECK (author <> ''),
	genre            text        NOT NULL CHECK (genre <> ''),
	publication_year integer     NOT NULL CHECK (publication_year >= %d),
	image_ref        text        NOT NULL DEFAULT '',
	is_borrowed      boolean     NOT NULL DEFAULT false,
	version          bigint      NOT NULL DEFAULT 0,
	created_at       timestamptz NOT NULL,
	updated_at       timestamptz NOT NULL
)`, books, lending.MinPublicationYear),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (author, genre, publication_year)`,
			pq.QuoteIdentifier(s.booksTable+"_filter_idx"), books),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          uuid        PRIMARY KEY,
	book_id     uuid        NOT NULL,
	user_id     uuid        NOT NULL,
	borrowed_at timestamptz NOT NULL,
	returned_at timestamptz NULL,
	returned_by uuid        NULL,
	CHECK (returned_at IS NULL OR returned_at >= borrowed_at),
	CHECK ((returned_at IS NULL) = (returned_by IS NULL))
)`, ledger),

		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (book_id) WHERE returned_at IS NULL`,
			pq.QuoteIdentifier(s.ledgerTable+"_one_open_per_book"), ledger),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (book_id, borrowed_at)`,
			pq.QuoteIdentifier(s.ledgerTable+"_book_idx"), ledger),
	}
}

// Migrate creates the tables and indexes if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	observer, ctx := s.observe(ctx, operationMigrate, "")

	for _, statement := range s.schemaStatements() {
		start := time.Now()

		if _, err := s.db.Exec(ctx, statement); err != nil {
			s.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, statement)
			observer.failure(errorTypeDatabaseExec)

			return errors.Join(lending.ErrExecutingFailed, err)
		}

		s.logQueryWithDuration(ctx, statement, operationMigrate, time.Since(start))
	}

	observer.success()
	s.logOperation(ctx, operationMigrate, logAttrOperation, operationMigrate)

	return nil
}

package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
	"github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/config"
)

// Adapter type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"

	setupTimeout = 5 * time.Second
)

// Wrapper abstracts over the different connection types.
type Wrapper interface {
	GetStore() *postgresengine.Store
	BooksTable() string
	LedgerTable() string
	Exec(ctx context.Context, statement string) error
	Close()
}

type base struct {
	store       *postgresengine.Store
	booksTable  string
	ledgerTable string
}

func (b *base) GetStore() *postgresengine.Store {
	return b.store
}

func (b *base) BooksTable() string {
	return b.booksTable
}

func (b *base) LedgerTable() string {
	return b.ledgerTable
}

// PGXPoolWrapper wraps pgxpool-based testing
type PGXPoolWrapper struct {
	base
	pool *pgxpool.Pool
}

func (w *PGXPoolWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.pool.Exec(ctx, statement)
	return err
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing
type SQLDBWrapper struct {
	base
	db *sql.DB
}

func (w *SQLDBWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.db.ExecContext(ctx, statement)
	return err
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing
type SQLXWrapper struct {
	base
	db *sqlx.DB
}

func (w *SQLXWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.db.ExecContext(ctx, statement)
	return err
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the wrapper selected by ADAPTER_TYPE with private, migrated tables.
// The tables are dropped and the connection is closed when the test finishes.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	booksTable := "books_" + suffix
	ledgerTable := "ledger_" + suffix

	options = append(
		[]postgresengine.Option{
			postgresengine.WithBooksTableName(booksTable),
			postgresengine.WithLedgerTableName(ledgerTable),
		},
		options...,
	)

	tables := base{booksTable: booksTable, ledgerTable: ledgerTable}

	var wrapper Wrapper

	switch adapterType := strings.ToLower(os.Getenv("ADAPTER_TYPE")); adapterType {
	case typePGXPool, "":
		pool, err := config.PostgresPGXPoolTestConfig(ctx)
		skipIfUnreachable(t, err)

		store, err := postgresengine.NewStoreFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating the store")

		tables.store = store
		wrapper = &PGXPoolWrapper{base: tables, pool: pool}

	case typeSQLDB:
		db, err := config.PostgresSQLDBTestConfig(ctx)
		skipIfUnreachable(t, err)

		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		require.NoError(t, err, "error creating the store")

		tables.store = store
		wrapper = &SQLDBWrapper{base: tables, db: db}

	case typeSQLXDB:
		db, err := config.PostgresSQLXTestConfig(ctx)
		skipIfUnreachable(t, err)

		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		require.NoError(t, err, "error creating the store")

		tables.store = store
		wrapper = &SQLXWrapper{base: tables, db: db}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterType))
	}

	require.NoError(t, wrapper.GetStore().Migrate(ctx), "error migrating the test tables")

	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), setupTimeout)
		defer dropCancel()

		_ = wrapper.Exec(dropCtx, "DROP TABLE IF EXISTS "+pq.QuoteIdentifier(ledgerTable))
		_ = wrapper.Exec(dropCtx, "DROP TABLE IF EXISTS "+pq.QuoteIdentifier(booksTable))
		wrapper.Close()
	})

	return wrapper
}

// TryCreateStoreWithTableNames creates a store with the given table names and returns the error,
// for testing option validation. It needs no reachable database.
func TryCreateStoreWithTableNames(booksTable string, ledgerTable string) error {
	db, err := sql.Open("postgres", config.PostgresTestDSN())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, err = postgresengine.NewStoreFromSQLDB(
		db,
		postgresengine.WithBooksTableName(booksTable),
		postgresengine.WithLedgerTableName(ledgerTable),
	)

	return err
}

func skipIfUnreachable(t testing.TB, err error) {
	t.Helper()

	if err != nil {
		t.Skipf("postgres test database not reachable: %v", err)
	}
}

package postgresengine_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
	"github.com/AntonStoeckl/library-lending-go/testutil/helper"
	"github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/postgreswrapper"
)

func Test_NewStore_Rejects_EmptyTableNames(t *testing.T) {
	assert.ErrorIs(t, postgreswrapper.TryCreateStoreWithTableNames("", "ledger"), lending.ErrEmptyTableNameSupplied)
	assert.ErrorIs(t, postgreswrapper.TryCreateStoreWithTableNames("books", ""), lending.ErrEmptyTableNameSupplied)
	assert.NoError(t, postgreswrapper.TryCreateStoreWithTableNames("books", "ledger"))
}

func Test_NewStore_Rejects_NilConnections(t *testing.T) {
	_, err := postgresengine.NewStoreFromPGXPool(nil)
	assert.ErrorIs(t, err, lending.ErrNilDatabaseConnection)

	_, err = postgresengine.NewStoreFromSQLDB(nil)
	assert.ErrorIs(t, err, lending.ErrNilDatabaseConnection)

	_, err = postgresengine.NewStoreFromSQLX(nil)
	assert.ErrorIs(t, err, lending.ErrNilDatabaseConnection)

	_, err = postgresengine.NewStoreFromPGXPoolAndReplica(nil, nil)
	assert.ErrorIs(t, err, lending.ErrNilDatabaseConnection)
}

func Test_InsertBook_Then_GetBook(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := postgreswrapper.CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	book := helper.FixtureNineteenEightyFour(t, helper.FakeClock())

	// act
	insertErr := store.InsertBook(ctx, book)
	loaded, getErr := store.GetBook(ctx, book.ID)

	// assert
	require.NoError(t, insertErr)
	require.NoError(t, getErr)
	assert.Equal(t, book, loaded)
}

func Test_InsertBook_Twice_Fails_With_AlreadyExists(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := postgreswrapper.CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	book := helper.FixtureNineteenEightyFour(t, helper.FakeClock())
	require.NoError(t, store.InsertBook(ctx, book))

	// act
	err := store.InsertBook(ctx, book)

	// assert
	assert.ErrorIs(t, err, lending.ErrBookAlreadyExists)
}

func Test_GetBook_Unknown_Fails_With_NotFound(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := postgreswrapper.CreateWrapperWithTestConfig(t).GetStore()

	// act
	_, err := store.GetBook(ctx, helper.GivenUniqueID(t))

	// assert
	assert.ErrorIs(t, err, lending.ErrBookNotFound)
}

func Test_Ping_Reports_Reachability(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := postgreswrapper.CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()

	// act
	pingErr := store.Ping(ctx)
	canceledErr := store.Ping(canceledCtx)

	// assert
	assert.NoError(t, pingErr)
	assert.ErrorIs(t, canceledErr, lending.ErrQueryingFailed)
}

func Test_ListBooks_Combines_Filters_With_AND(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := postgreswrapper.CreateWrapperWithTestConfig(t).GetStore()
	now := helper.FakeClock()

	// arrange
	orwellDystopia := helper.FixtureBook(t, "1984", "Orwell", "Dystopia", 1949, now)
	orwellSatire := helper.FixtureBook(t, "Animal Farm", "Orwell", "Satire", 1945, now.Add(time.Second))
	huxleyDystopia := helper.FixtureBook(t, "Brave New World", "Huxley", "Dystopia", 1932, now.Add(2*time.Second))

	for _, book := range []lending.Book{orwellDystopia, orwellSatire, huxleyDystopia} {
		require.NoError(t, store.InsertBook(ctx, book))
	}

	// act
	both, errBoth := store.ListBooks(ctx, lending.BuildBookFilter().WithAuthor("Orwell").WithGenre("Dystopia").Finalize())
	byYear, errYear := store.ListBooks(ctx, lending.BuildBookFilter().WithPublicationYear(1932).Finalize())
	all, errAll := store.ListBooks(ctx, lending.BuildBookFilter().Finalize())

	// assert
	require.NoError(t, errBoth)
	require.NoError(t, errYear)
	require.NoError(t, errAll)
	assert.ElementsMatch(t, []lending.Book{orwellDystopia}, both)
	assert.ElementsMatch(t, []lending.Book{huxleyDystopia}, byYear)
	assert.Equal(t, []lending.Book{orwellDystopia, orwellSatire, huxleyDystopia}, all)
}

func Test_UpdateBook_Uses_CompareAndSet_On_Version(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := postgreswrapper.CreateWrapperWithTestConfig(t).GetStore()
	now := helper.FakeClock()

	// arrange
	book := helper.FixtureNineteenEightyFour(t, now)
	require.NoError(t, store.InsertBook(ctx, book))

	changed := book
	changed.Title = "Nineteen Eighty-Four"
	changed.ImageRef = "cover.png"
	changed.IsBorrowed = true // ignored, the ledger owns this flag
	changed.UpdatedAt = now.Add(time.Minute)

	// act
	updated, updateErr := store.UpdateBook(ctx, changed, book.Version)
	_, staleErr := store.UpdateBook(ctx, changed, book.Version)
	_, missingErr := store.UpdateBook(ctx, helper.FixtureNineteenEightyFour(t, now), 0)

	// assert
	require.NoError(t, updateErr)
	assert.Equal(t, "Nineteen Eighty-Four", updated.Title)
	assert.Equal(t, "cover.png", updated.ImageRef)
	assert.False(t, updated.IsBorrowed)
	assert.Equal(t, book.Version+1, updated.Version)
	assert.Equal(t, now.Add(time.Minute), updated.UpdatedAt)
	assert.ErrorIs(t, staleErr, lending.ErrConcurrencyConflict)
	assert.ErrorIs(t, missingErr, lending.ErrBookNotFound)
}

func Test_Borrow_Then_Return_Keeps_Flag_And_Ledger_In_Sync(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := postgreswrapper.CreateWrapperWithTestConfig(t).GetStore()
	now := helper.FakeClock()

	// arrange
	book := helper.FixtureNineteenEightyFour(t, now)
	require.NoError(t, store.InsertBook(ctx, book))
	userSeven := helper.GivenUniqueID(t)
	entry := lending.BuildLedgerEntry(helper.GivenUniqueID(t), book.ID, userSeven, now.Add(time.Minute))

	// act
	borrowed, borrowErr := store.ApplyLoanChange(ctx, lending.BorrowChange(book, entry))
	stateAfterBorrow, loadErr := store.LoadLoanState(ctx, book.ID)

	require.NoError(t, borrowErr)
	require.NoError(t, loadErr)

	returned, returnErr := store.ApplyLoanChange(
		ctx,
		lending.ReturnChange(borrowed, stateAfterBorrow.OpenEntries[0], userSeven, now.Add(time.Hour)),
	)
	stateAfterReturn, reloadErr := store.LoadLoanState(ctx, book.ID)
	entries, entriesErr := store.LedgerEntries(ctx, book.ID)

	// assert
	assert.True(t, borrowed.IsBorrowed)
	assert.True(t, stateAfterBorrow.BookExists)
	require.Len(t, stateAfterBorrow.OpenEntries, 1)
	assert.Equal(t, userSeven, stateAfterBorrow.OpenEntries[0].UserID)

	require.NoError(t, returnErr)
	require.NoError(t, reloadErr)
	require.NoError(t, entriesErr)
	assert.False(t, returned.IsBorrowed)
	assert.Equal(t, book.Version+2, returned.Version)
	assert.Empty(t, stateAfterReturn.OpenEntries)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].ReturnedAt)
	require.NotNil(t, entries[0].ReturnedBy)
	assert.False(t, entries[0].ReturnedAt.Before(entries[0].BorrowedAt))
	assert.Equal(t, userSeven, *entries[0].ReturnedBy)
}

func Test_LoadLoanState_For_Unknown_Book(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := postgreswrapper.CreateWrapperWithTestConfig(t).GetStore()

	// act
	state, err := store.LoadLoanState(ctx, helper.GivenUniqueID(t))

	// assert
	require.NoError(t, err)
	assert.False(t, state.BookExists)
	assert.Empty(t, state.OpenEntries)
}

func Test_ApplyLoanChange_Concurrent_Borrows_Only_One_Succeeds(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := postgreswrapper.CreateWrapperWithTestConfig(t).GetStore()
	now := helper.FakeClock()

	// arrange
	book := helper.FixtureNineteenEightyFour(t, now)
	require.NoError(t, store.InsertBook(ctx, book))

	const attempts = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)

	// act
	for i := 0; i < attempts; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			entry := lending.BuildLedgerEntry(uuid.New(), book.ID, uuid.New(), now.Add(time.Minute))
			_, err := store.ApplyLoanChange(ctx, lending.BorrowChange(book, entry))

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, lending.ErrConcurrencyConflict):
				conflicts++
			}
		}()
	}

	wg.Wait()

	entries, err := store.LedgerEntries(ctx, book.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
	assert.Len(t, entries, 1)
}

func Test_ApplyLoanChange_Second_Open_Entry_Is_An_IntegrityFault(t *testing.T) {
	// setup
	ctx := testContext(t)
	logHandler := helper.NewLogHandlerSpy(false)
	metrics := helper.NewMetricsCollectorSpy(true)
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(
		t,
		postgresengine.WithLogger(slog.New(logHandler)),
		postgresengine.WithMetrics(metrics),
	)
	store := wrapper.GetStore()
	now := helper.FakeClock()

	// arrange
	book := helper.FixtureNineteenEightyFour(t, now)
	require.NoError(t, store.InsertBook(ctx, book))
	givenOpenEntryWasWrittenBehindTheStoresBack(t, ctx, wrapper, book.ID, now)

	entry := lending.BuildLedgerEntry(helper.GivenUniqueID(t), book.ID, helper.GivenUniqueID(t), now.Add(time.Minute))

	// act
	_, err := store.ApplyLoanChange(ctx, lending.BorrowChange(book, entry))
	reloaded, getErr := store.GetBook(ctx, book.ID)

	// assert
	assert.ErrorIs(t, err, lending.ErrIntegrityFault)
	require.NoError(t, getErr)
	assert.False(t, reloaded.IsBorrowed, "the flag update must be rolled back")
	assert.Equal(t, book.Version, reloaded.Version)
	assert.True(t, logHandler.HasErrorLogWithMessage("lending integrity fault detected").WithAttr("book_id").Assert())
	assert.True(t, metrics.HasCounterRecordForMetric("librarystore_integrity_faults_total").
		WithOperation("apply_loan_change").Assert())
}

func Test_ApplyLoanChange_Closing_Unknown_Entry_Is_An_IntegrityFault(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := postgreswrapper.CreateWrapperWithTestConfig(t).GetStore()
	now := helper.FakeClock()

	// arrange
	book := helper.FixtureNineteenEightyFour(t, now)
	require.NoError(t, store.InsertBook(ctx, book))
	borrower := helper.GivenUniqueID(t)
	ghost := lending.BuildLedgerEntry(helper.GivenUniqueID(t), book.ID, borrower, now)

	// act
	_, err := store.ApplyLoanChange(ctx, lending.ReturnChange(book, ghost, borrower, now.Add(time.Minute)))

	// assert
	assert.ErrorIs(t, err, lending.ErrIntegrityFault)
}

func Test_ApplyLoanChange_With_Stale_Version_Is_A_Conflict(t *testing.T) {
	// setup
	ctx := testContext(t)
	metrics := helper.NewMetricsCollectorSpy(true)
	store := postgreswrapper.CreateWrapperWithTestConfig(t, postgresengine.WithMetrics(metrics)).GetStore()
	now := helper.FakeClock()

	// arrange
	book := helper.FixtureNineteenEightyFour(t, now)
	require.NoError(t, store.InsertBook(ctx, book))
	stale := book
	stale.Version = 42

	entry := lending.BuildLedgerEntry(helper.GivenUniqueID(t), book.ID, helper.GivenUniqueID(t), now)

	// act
	_, err := store.ApplyLoanChange(ctx, lending.BorrowChange(stale, entry))

	// assert
	assert.ErrorIs(t, err, lending.ErrConcurrencyConflict)
	assert.Equal(t, 1, metrics.CountCounterRecordsForMetric("librarystore_concurrency_conflicts_total"))
}

func Test_DeleteBook_Keeps_Ledger_Entries(t *testing.T) {
	// setup
	ctx := testContext(t)
	store := postgreswrapper.CreateWrapperWithTestConfig(t).GetStore()
	now := helper.FakeClock()

	// arrange
	book := helper.FixtureNineteenEightyFour(t, now)
	require.NoError(t, store.InsertBook(ctx, book))
	entry := lending.BuildLedgerEntry(helper.GivenUniqueID(t), book.ID, helper.GivenUniqueID(t), now)
	borrowed, err := store.ApplyLoanChange(ctx, lending.BorrowChange(book, entry))
	require.NoError(t, err)

	// act
	staleErr := store.DeleteBook(ctx, book.ID, book.Version)
	deleteErr := store.DeleteBook(ctx, book.ID, borrowed.Version)
	missingErr := store.DeleteBook(ctx, book.ID, borrowed.Version)
	entries, entriesErr := store.LedgerEntries(ctx, book.ID)

	// assert
	assert.ErrorIs(t, staleErr, lending.ErrConcurrencyConflict)
	assert.NoError(t, deleteErr)
	assert.ErrorIs(t, missingErr, lending.ErrBookNotFound)
	require.NoError(t, entriesErr)
	assert.Len(t, entries, 1)
}

func Test_Store_Records_Debug_Logs_And_Spans(t *testing.T) {
	// setup
	ctx := testContext(t)
	logHandler := helper.NewLogHandlerSpy(false)
	tracing := helper.NewTracingCollectorSpy(true)
	store := postgreswrapper.CreateWrapperWithTestConfig(
		t,
		postgresengine.WithLogger(slog.New(logHandler)),
		postgresengine.WithTracing(tracing),
	).GetStore()

	// act
	_, err := store.ListBooks(ctx, lending.BuildBookFilter().Finalize())

	// assert
	require.NoError(t, err)
	assert.True(t, logHandler.HasDebugLogWithMessage("executed sql for: list_books").WithDurationMS().Assert())
	assert.True(t, logHandler.HasInfoLogWithMessage("library store operation: list_books").WithAttr("book_count").Assert())
	assert.True(t, tracing.HasFinishedSpan("librarystore.list_books", "success"))
}

func givenOpenEntryWasWrittenBehindTheStoresBack(
	t *testing.T,
	ctx context.Context,
	wrapper postgreswrapper.Wrapper,
	bookID uuid.UUID,
	borrowedAt time.Time,
) {
	t.Helper()

	statement := fmt.Sprintf(
		"INSERT INTO %s (id, book_id, user_id, borrowed_at) VALUES ('%s', '%s', '%s', '%s')",
		pq.QuoteIdentifier(wrapper.LedgerTable()),
		uuid.NewString(),
		bookID.String(),
		uuid.NewString(),
		borrowedAt.Format(time.RFC3339Nano),
	)

	require.NoError(t, wrapper.Exec(ctx, statement), "error in arranging test data")
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return ctx
}

package memengine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/memengine"
)

func Test_Store_InsertAndGetBook(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := memengine.NewStore()
	book := givenBook("1984", "Orwell", "Dystopia", 1949)

	// act
	insertErr := store.InsertBook(ctx, book)
	duplicateErr := store.InsertBook(ctx, book)
	loaded, getErr := store.GetBook(ctx, book.ID)
	_, missingErr := store.GetBook(ctx, uuid.New())

	// assert
	assert.NoError(t, insertErr)
	assert.ErrorIs(t, duplicateErr, lending.ErrBookAlreadyExists)
	assert.NoError(t, getErr)
	assert.Equal(t, book, loaded)
	assert.ErrorIs(t, missingErr, lending.ErrBookNotFound)
}

func Test_Store_ListBooks_FiltersWithAnd(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := memengine.NewStore()
	nineteenEightyFour := givenBook("1984", "Orwell", "Dystopia", 1949)
	animalFarm := givenBook("Animal Farm", "Orwell", "Satire", 1945)
	braveNewWorld := givenBook("Brave New World", "Huxley", "Dystopia", 1932)

	for _, book := range []lending.Book{nineteenEightyFour, animalFarm, braveNewWorld} {
		require.NoError(t, store.InsertBook(ctx, book))
	}

	// act
	all, allErr := store.ListBooks(ctx, lending.BuildBookFilter().Finalize())
	matching, matchingErr := store.ListBooks(ctx, lending.BuildBookFilter().WithAuthor("Orwell").WithGenre("Dystopia").Finalize())

	// assert
	assert.NoError(t, allErr)
	assert.Len(t, all, 3)
	assert.NoError(t, matchingErr)
	assert.ElementsMatch(t, []lending.Book{nineteenEightyFour}, matching)
}

func Test_Store_UpdateBook_ComparesVersion(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := memengine.NewStore()
	book := givenBook("1984", "Orwell", "Dystopia", 1949)
	require.NoError(t, store.InsertBook(ctx, book))

	changed := book
	changed.Title = "Nineteen Eighty-Four"
	changed.IsBorrowed = true // must be ignored

	// act
	updated, updateErr := store.UpdateBook(ctx, changed, book.Version)
	_, staleErr := store.UpdateBook(ctx, changed, book.Version)

	// assert
	assert.NoError(t, updateErr)
	assert.Equal(t, "Nineteen Eighty-Four", updated.Title)
	assert.False(t, updated.IsBorrowed)
	assert.Equal(t, book.Version+1, updated.Version)
	assert.ErrorIs(t, staleErr, lending.ErrConcurrencyConflict)
}

func Test_Store_BorrowAndReturn_KeepsFlagAndLedgerInSync(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := memengine.NewStore()
	book := givenBook("1984", "Orwell", "Dystopia", 1949)
	require.NoError(t, store.InsertBook(ctx, book))
	borrower := uuid.New()
	borrowedAt := time.Now().UTC()

	// act
	borrowed, borrowErr := store.ApplyLoanChange(ctx, lending.BorrowChange(book, lending.BuildLedgerEntry(uuid.New(), book.ID, borrower, borrowedAt)))
	stateWhileBorrowed, _ := store.LoadLoanState(ctx, book.ID)
	returned, returnErr := store.ApplyLoanChange(ctx, lending.ReturnChange(borrowed, stateWhileBorrowed.OpenEntries[0], borrower, borrowedAt.Add(time.Hour)))
	stateAfterReturn, _ := store.LoadLoanState(ctx, book.ID)
	entries, entriesErr := store.LedgerEntries(ctx, book.ID)

	// assert
	assert.NoError(t, borrowErr)
	assert.True(t, borrowed.IsBorrowed)
	assert.True(t, stateWhileBorrowed.Book.IsBorrowed)
	assert.Len(t, stateWhileBorrowed.OpenEntries, 1)
	assert.Equal(t, borrower, stateWhileBorrowed.OpenEntries[0].UserID)

	assert.NoError(t, returnErr)
	assert.False(t, returned.IsBorrowed)
	assert.Equal(t, book.Version+2, returned.Version)
	assert.Empty(t, stateAfterReturn.OpenEntries)

	assert.NoError(t, entriesErr)
	assert.Len(t, entries, 1)
	assert.NotNil(t, entries[0].ReturnedAt)
	assert.False(t, entries[0].ReturnedAt.Before(entries[0].BorrowedAt))
}

func Test_Store_ApplyLoanChange_ConcurrentBorrowsOnSameVersion_OnlyOneWins(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := memengine.NewStore()
	book := givenBook("1984", "Orwell", "Dystopia", 1949)
	require.NoError(t, store.InsertBook(ctx, book))

	const attempts = 32
	errs := make([]error, attempts)
	var wg sync.WaitGroup

	// act
	for i := 0; i < attempts; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			entry := lending.BuildLedgerEntry(uuid.New(), book.ID, uuid.New(), time.Now())
			_, errs[i] = store.ApplyLoanChange(ctx, lending.BorrowChange(book, entry))
		}(i)
	}

	wg.Wait()

	// assert
	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}

		assert.ErrorIs(t, err, lending.ErrConcurrencyConflict)
	}

	entries, _ := store.LedgerEntries(ctx, book.ID)
	assert.Equal(t, 1, successes)
	assert.Len(t, entries, 1)
}

func Test_Store_ApplyLoanChange_ClosingUnknownEntryIsIntegrityFault(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := memengine.NewStore()
	book := givenBook("1984", "Orwell", "Dystopia", 1949)
	require.NoError(t, store.InsertBook(ctx, book))
	phantom := lending.BuildLedgerEntry(uuid.New(), book.ID, uuid.New(), time.Now())

	// act
	_, err := store.ApplyLoanChange(ctx, lending.ReturnChange(book, phantom, uuid.New(), time.Now()))

	// assert
	assert.ErrorIs(t, err, lending.ErrIntegrityFault)
}

func Test_Store_DeleteBook_KeepsLedgerEntries(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := memengine.NewStore()
	book := givenBook("1984", "Orwell", "Dystopia", 1949)
	require.NoError(t, store.InsertBook(ctx, book))
	borrowed, err := store.ApplyLoanChange(ctx, lending.BorrowChange(book, lending.BuildLedgerEntry(uuid.New(), book.ID, uuid.New(), time.Now())))
	require.NoError(t, err)

	// act
	staleErr := store.DeleteBook(ctx, book.ID, book.Version)
	deleteErr := store.DeleteBook(ctx, book.ID, borrowed.Version)
	_, getErr := store.GetBook(ctx, book.ID)
	state, stateErr := store.LoadLoanState(ctx, book.ID)
	entries, _ := store.LedgerEntries(ctx, book.ID)

	// assert
	assert.ErrorIs(t, staleErr, lending.ErrConcurrencyConflict)
	assert.NoError(t, deleteErr)
	assert.ErrorIs(t, getErr, lending.ErrBookNotFound)
	assert.NoError(t, stateErr)
	assert.False(t, state.BookExists)
	assert.Len(t, entries, 1)
}

func Test_Store_HonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := memengine.NewStore().GetBook(ctx, uuid.New())

	assert.ErrorIs(t, err, context.Canceled)
}

func givenBook(title, author, genre string, year int) lending.Book {
	return lending.BuildBook(
		uuid.New(),
		lending.BookFields{Title: title, Author: author, Genre: genre, PublicationYear: year},
		"",
		time.Now().UTC(),
	)
}

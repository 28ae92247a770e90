package returnbook_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/app/features/command/returnbook"
	"github.com/AntonStoeckl/library-lending-go/lending"
	. "github.com/AntonStoeckl/library-lending-go/testutil/helper" //nolint:revive
)

func Test_Decide_Success_ClosesTheOpenEntry(t *testing.T) {
	// arrange
	now := FakeClock()
	borrowerID := GivenUniqueID(t)
	callerID := GivenUniqueID(t)
	book, open := givenBorrowedBook(t, borrowerID, now.Add(-time.Hour))
	state := lending.LoanState{BookExists: true, Book: book, OpenEntries: []lending.LedgerEntry{open}}

	// act
	result := returnbook.Decide(state, returnbook.BuildCommand(book.ID, callerID, now), returnbook.Policy{})

	// assert
	require.True(t, result.HasEffect())
	assert.Equal(t, lending.LoanChangeReturn, result.Effect.Kind)
	assert.Equal(t, open.ID, result.Effect.Entry.ID)
	assert.Equal(t, borrowerID, result.Effect.Entry.UserID)
	require.NotNil(t, result.Effect.Entry.ReturnedAt)
	assert.Equal(t, now, *result.Effect.Entry.ReturnedAt)
	require.NotNil(t, result.Effect.Entry.ReturnedBy)
	assert.Equal(t, callerID, *result.Effect.Entry.ReturnedBy)
	assert.Equal(t, book.Version, result.Effect.ExpectedVersion)
}

func Test_Decide_Success_ReturnedAtNeverPrecedesBorrowedAt(t *testing.T) {
	// arrange
	now := FakeClock()
	book, open := givenBorrowedBook(t, GivenUniqueID(t), now)
	state := lending.LoanState{BookExists: true, Book: book, OpenEntries: []lending.LedgerEntry{open}}

	// act
	result := returnbook.Decide(state, returnbook.BuildCommand(book.ID, GivenUniqueID(t), now.Add(-time.Second)), returnbook.Policy{})

	// assert
	require.True(t, result.HasEffect())
	assert.Equal(t, open.BorrowedAt, *result.Effect.Entry.ReturnedAt)
}

func Test_Decide_BorrowerPolicy(t *testing.T) {
	now := FakeClock()
	borrowerID := GivenUniqueID(t)
	book, open := givenBorrowedBook(t, borrowerID, now.Add(-time.Hour))
	state := lending.LoanState{BookExists: true, Book: book, OpenEntries: []lending.LedgerEntry{open}}
	strict := returnbook.Policy{OnlyBorrowerMayReturn: true}

	// act
	byOther := returnbook.Decide(state, returnbook.BuildCommand(book.ID, GivenUniqueID(t), now), strict)
	byBorrower := returnbook.Decide(state, returnbook.BuildCommand(book.ID, borrowerID, now), strict)

	// assert
	assert.ErrorIs(t, byOther.HasError(), lending.ErrNotTheBorrower)
	assert.True(t, byBorrower.HasEffect())
}

func Test_Decide_BusinessErrors(t *testing.T) {
	now := FakeClock()
	book, open := givenBorrowedBook(t, GivenUniqueID(t), now.Add(-time.Hour))
	secondOpen := lending.BuildLedgerEntry(GivenUniqueID(t), book.ID, GivenUniqueID(t), now.Add(-time.Minute))
	available := book
	available.IsBorrowed = false

	testCases := []struct {
		name        string
		state       lending.LoanState
		expectedErr error
	}{
		{
			name:        "book does not exist",
			state:       lending.LoanState{},
			expectedErr: lending.ErrBookNotFound,
		},
		{
			name:        "book is not borrowed",
			state:       lending.LoanState{BookExists: true, Book: available},
			expectedErr: lending.ErrBookNotBorrowed,
		},
		{
			name:        "book is available but has an open entry",
			state:       lending.LoanState{BookExists: true, Book: available, OpenEntries: []lending.LedgerEntry{open}},
			expectedErr: lending.ErrIntegrityFault,
		},
		{
			name:        "book is borrowed without an open entry",
			state:       lending.LoanState{BookExists: true, Book: book},
			expectedErr: lending.ErrIntegrityFault,
		},
		{
			name:        "book is borrowed with two open entries",
			state:       lending.LoanState{BookExists: true, Book: book, OpenEntries: []lending.LedgerEntry{open, secondOpen}},
			expectedErr: lending.ErrIntegrityFault,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			result := returnbook.Decide(tc.state, returnbook.BuildCommand(book.ID, GivenUniqueID(t), now), returnbook.Policy{})

			// assert
			assert.False(t, result.HasEffect())
			assert.ErrorIs(t, result.HasError(), tc.expectedErr)
		})
	}
}

func givenBorrowedBook(t *testing.T, borrowerID uuid.UUID, borrowedAt time.Time) (lending.Book, lending.LedgerEntry) {
	t.Helper()

	book := FixtureNineteenEightyFour(t, borrowedAt.Add(-24*time.Hour))
	book.IsBorrowed = true
	book.Version = 1

	return book, lending.BuildLedgerEntry(GivenUniqueID(t), book.ID, borrowerID, borrowedAt)
}

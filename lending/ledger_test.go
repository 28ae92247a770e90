package lending_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

func Test_ReturnChange_NeverReturnsBeforeBorrowed(t *testing.T) {
	// arrange
	book := givenBook("1984", "Orwell", "Dystopia", 1949)
	borrowedAt := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)
	entry := lending.BuildLedgerEntry(uuid.New(), book.ID, uuid.New(), borrowedAt)
	caller := uuid.New()

	// act
	change := lending.ReturnChange(book, entry, caller, borrowedAt.Add(-time.Minute))

	// assert
	assert.Equal(t, lending.LoanChangeReturn, change.Kind)
	assert.NotNil(t, change.Entry.ReturnedAt)
	assert.Equal(t, borrowedAt, *change.Entry.ReturnedAt)
	assert.Equal(t, caller, *change.Entry.ReturnedBy)
	assert.True(t, entry.IsOpen(), "the original entry must stay untouched")
	assert.False(t, change.BorrowedFlag())
	assert.NoError(t, change.Validate())
}

func Test_BorrowChange_CarriesExpectedVersion(t *testing.T) {
	// arrange
	book := givenBook("1984", "Orwell", "Dystopia", 1949)
	book.Version = 7
	entry := lending.BuildLedgerEntry(uuid.New(), book.ID, uuid.New(), time.Now())

	// act
	change := lending.BorrowChange(book, entry)

	// assert
	assert.Equal(t, lending.VersionUint(7), change.ExpectedVersion)
	assert.True(t, change.BorrowedFlag())
	assert.NoError(t, change.Validate())
}

func Test_LoanChange_Validate_RejectsInconsistentChanges(t *testing.T) {
	book := givenBook("1984", "Orwell", "Dystopia", 1949)
	open := lending.BuildLedgerEntry(uuid.New(), book.ID, uuid.New(), time.Now())
	closed := lending.ReturnChange(book, open, uuid.New(), time.Now()).Entry
	foreign := lending.BuildLedgerEntry(uuid.New(), uuid.New(), uuid.New(), time.Now())

	testCases := []struct {
		description string
		change      lending.LoanChange
	}{
		{description: "borrow with closed entry", change: lending.LoanChange{Kind: lending.LoanChangeBorrow, BookID: book.ID, Entry: closed}},
		{description: "return with open entry", change: lending.LoanChange{Kind: lending.LoanChangeReturn, BookID: book.ID, Entry: open}},
		{description: "entry of another book", change: lending.BorrowChange(book, foreign)},
		{description: "unknown kind", change: lending.LoanChange{Kind: "lost", BookID: book.ID, Entry: open}},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.ErrorIs(t, tc.change.Validate(), lending.ErrInvalidLoanChange)
		})
	}
}

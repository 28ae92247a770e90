package lending

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry records one loan of a book. An entry with a nil ReturnedAt is open.
type LedgerEntry struct {
	ID         uuid.UUID
	BookID     uuid.UUID
	UserID     uuid.UUID
	BorrowedAt time.Time
	ReturnedAt *time.Time
	ReturnedBy *uuid.UUID
}

// BuildLedgerEntry creates a new open entry.
func BuildLedgerEntry(id uuid.UUID, bookID uuid.UUID, userID uuid.UUID, borrowedAt time.Time) LedgerEntry {
	return LedgerEntry{
		ID:         id,
		BookID:     bookID,
		UserID:     userID,
		BorrowedAt: borrowedAt,
	}
}

// IsOpen reports whether the loan has not been returned yet.
func (e LedgerEntry) IsOpen() bool {
	return e.ReturnedAt == nil
}

// LoanState is a consistent snapshot of a book and its open ledger entries.
// BookExists is false if no book with the requested id exists; Book is the zero value then.
type LoanState struct {
	BookExists  bool
	Book        Book
	OpenEntries []LedgerEntry
}

// LoanChangeKind discriminates the two effects the lending engine can decide on.
type LoanChangeKind string

const (
	LoanChangeBorrow LoanChangeKind = "borrow"
	LoanChangeReturn LoanChangeKind = "return"
)

// LoanChange is the effect of a successful borrow or return decision.
// Stores apply it atomically and only if the book still has ExpectedVersion.
//
// For a borrow, Entry is the new open entry.
// For a return, Entry identifies the open entry to close, with ReturnedAt and ReturnedBy set.
type LoanChange struct {
	Kind            LoanChangeKind
	BookID          uuid.UUID
	ExpectedVersion VersionUint
	Entry           LedgerEntry
	OccurredAt      time.Time
}

// BorrowChange builds the change that flags the book as borrowed and opens the entry.
func BorrowChange(book Book, entry LedgerEntry) LoanChange {
	return LoanChange{
		Kind:            LoanChangeBorrow,
		BookID:          book.ID,
		ExpectedVersion: book.Version,
		Entry:           entry,
		OccurredAt:      entry.BorrowedAt,
	}
}

// ReturnChange builds the change that flags the book as available and closes the open entry.
// The returned-at timestamp never precedes the borrowed-at timestamp of the entry.
func ReturnChange(book Book, open LedgerEntry, returnedBy uuid.UUID, returnedAt time.Time) LoanChange {
	if returnedAt.Before(open.BorrowedAt) {
		returnedAt = open.BorrowedAt
	}

	closed := open
	closed.ReturnedAt = &returnedAt
	closed.ReturnedBy = &returnedBy

	return LoanChange{
		Kind:            LoanChangeReturn,
		BookID:          book.ID,
		ExpectedVersion: book.Version,
		Entry:           closed,
		OccurredAt:      returnedAt,
	}
}

// Validate checks the internal consistency of a change before a store applies it.
func (c LoanChange) Validate() error {
	if c.Entry.BookID != c.BookID {
		return ErrInvalidLoanChange
	}

	switch c.Kind {
	case LoanChangeBorrow:
		if !c.Entry.IsOpen() {
			return ErrInvalidLoanChange
		}
	case LoanChangeReturn:
		if c.Entry.IsOpen() || c.Entry.ReturnedBy == nil {
			return ErrInvalidLoanChange
		}
	default:
		return ErrInvalidLoanChange
	}

	return nil
}

// BorrowedFlag is the value of Book.IsBorrowed after the change is applied.
func (c LoanChange) BorrowedFlag() bool {
	return c.Kind == LoanChangeBorrow
}

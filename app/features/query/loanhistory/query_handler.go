package loanhistory

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Store defines the interface needed by the QueryHandler.
type Store interface {
	GetBook(ctx context.Context, bookID uuid.UUID) (lending.Book, error)
	LedgerEntries(ctx context.Context, bookID uuid.UUID) ([]lending.LedgerEntry, error)
}

// QueryHandler reads the loan history of a book.
type QueryHandler struct {
	store Store
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(store Store) QueryHandler {
	return QueryHandler{store: store}
}

// Handle returns the ledger entries of the book.
// It fails with lending.ErrBookNotFound only if the book neither exists nor has any history.
func (h QueryHandler) Handle(ctx context.Context, query Query) (LoanHistory, error) {
	ctx = lending.WithEventualConsistency(ctx)

	bookExists := true

	if _, err := h.store.GetBook(ctx, query.BookID); err != nil {
		if !errors.Is(err, lending.ErrBookNotFound) {
			return LoanHistory{}, err
		}

		bookExists = false
	}

	entries, err := h.store.LedgerEntries(ctx, query.BookID)
	if err != nil {
		return LoanHistory{}, err
	}

	if !bookExists && len(entries) == 0 {
		return LoanHistory{}, lending.ErrBookNotFound
	}

	return LoanHistory{
		BookID:     query.BookID,
		BookExists: bookExists,
		Entries:    entries,
		Count:      len(entries),
	}, nil
}

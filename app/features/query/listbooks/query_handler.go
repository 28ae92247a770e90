package listbooks

import (
	"context"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Store defines the interface needed by the QueryHandler.
type Store interface {
	ListBooks(ctx context.Context, filter lending.BookFilter) ([]lending.Book, error)
}

// QueryHandler lists books.
type QueryHandler struct {
	store Store
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(store Store) QueryHandler {
	return QueryHandler{store: store}
}

// Handle returns all books matching the filter of the query.
func (h QueryHandler) Handle(ctx context.Context, query Query) (Books, error) {
	books, err := h.store.ListBooks(lending.WithEventualConsistency(ctx), query.Filter)
	if err != nil {
		return Books{}, err
	}

	return Books{Books: books, Count: len(books)}, nil
}

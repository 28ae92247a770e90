package getbook

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Store defines the interface needed by the QueryHandler.
type Store interface {
	GetBook(ctx context.Context, bookID uuid.UUID) (lending.Book, error)
}

// QueryHandler reads a single book.
type QueryHandler struct {
	store Store
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(store Store) QueryHandler {
	return QueryHandler{store: store}
}

// Handle returns the book or lending.ErrBookNotFound.
func (h QueryHandler) Handle(ctx context.Context, query Query) (lending.Book, error) {
	return h.store.GetBook(lending.WithEventualConsistency(ctx), query.BookID)
}

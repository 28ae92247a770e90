package loanhistory

import (
	"github.com/google/uuid"
)

const (
	queryType = "LoanHistory"
)

// Query represents the intent to read the loan history of a book.
type Query struct {
	BookID uuid.UUID
}

// BuildQuery creates a new Query with the provided book ID.
func BuildQuery(bookID uuid.UUID) Query {
	return Query{
		BookID: bookID,
	}
}

// QueryType returns the query type.
func (q Query) QueryType() string {
	return queryType
}

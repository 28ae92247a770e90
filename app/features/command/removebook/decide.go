package removebook

import (
	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Policy holds the optional tightening of when a book may be removed.
type Policy struct {
	RejectWhileBorrowed bool
}

// Decide returns the book to delete, or lending.ErrBookIsBorrowed under the strict policy.
func Decide(book lending.Book, policy Policy) core.DecisionResult[lending.Book] {
	if policy.RejectWhileBorrowed && book.IsBorrowed {
		return core.ErrorDecision[lending.Book](lending.ErrBookIsBorrowed)
	}

	return core.SuccessDecision(book)
}

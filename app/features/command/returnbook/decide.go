package returnbook

import (
	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Policy holds the optional tightening of who may return a book.
type Policy struct {
	OnlyBorrowerMayReturn bool
}

// Decide implements the business logic to return a book.
func Decide(state lending.LoanState, command Command, policy Policy) core.DecisionResult[lending.LoanChange] {
	if !state.BookExists {
		return core.ErrorDecision[lending.LoanChange](lending.ErrBookNotFound)
	}

	if !state.Book.IsBorrowed {
		if len(state.OpenEntries) > 0 {
			return core.ErrorDecision[lending.LoanChange](lending.ErrIntegrityFault)
		}

		return core.ErrorDecision[lending.LoanChange](lending.ErrBookNotBorrowed)
	}

	if len(state.OpenEntries) != 1 {
		return core.ErrorDecision[lending.LoanChange](lending.ErrIntegrityFault)
	}

	open := state.OpenEntries[0]

	if policy.OnlyBorrowerMayReturn && open.UserID != command.UserID {
		return core.ErrorDecision[lending.LoanChange](lending.ErrNotTheBorrower)
	}

	return core.SuccessDecision(lending.ReturnChange(state.Book, open, command.UserID, command.OccurredAt))
}

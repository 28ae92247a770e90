package borrowbook

import (
	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Decide implements the business logic to borrow a book.
// It is a pure function over the loaded LoanState.
func Decide(state lending.LoanState, command Command) core.DecisionResult[lending.LoanChange] {
	if !state.BookExists {
		return core.ErrorDecision[lending.LoanChange](lending.ErrBookNotFound)
	}

	if state.Book.IsBorrowed {
		return core.ErrorDecision[lending.LoanChange](lending.ErrBookAlreadyBorrowed)
	}

	if len(state.OpenEntries) > 0 {
		// available according to the flag but someone still holds it according to the ledger
		return core.ErrorDecision[lending.LoanChange](lending.ErrIntegrityFault)
	}

	entry := lending.BuildLedgerEntry(command.EntryID, command.BookID, command.UserID, command.OccurredAt)

	return core.SuccessDecision(lending.BorrowChange(state.Book, entry))
}

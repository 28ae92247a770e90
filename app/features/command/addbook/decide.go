package addbook

import (
	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Decide validates the fields and builds the book to insert.
// The publication year must not lie after the year the command occurred in.
func Decide(command Command) core.DecisionResult[lending.Book] {
	if err := lending.ValidateBookFields(command.Fields, command.OccurredAt); err != nil {
		return core.ErrorDecision[lending.Book](err)
	}

	return core.SuccessDecision(lending.BuildBook(command.BookID, command.Fields, command.ImageRef, command.OccurredAt))
}

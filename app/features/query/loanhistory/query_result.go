package loanhistory

import (
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// LoanHistory is the query result.
// BookExists is false for a removed book that still has history.
type LoanHistory struct {
	BookID     uuid.UUID
	BookExists bool
	Entries    []lending.LedgerEntry
	Count      int
}

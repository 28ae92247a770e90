// Package loanhistory implements the Loan History query: all ledger entries of a book,
// ordered by the time it was borrowed. The history survives the removal of the book.
package loanhistory

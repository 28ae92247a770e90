// Package borrowbook implements the Borrow Book use case.
//
// A caller borrows an available book. The decision is made on a strongly consistent
// LoanState snapshot and applied with a compare-and-set on the book version, together
// with the new open ledger entry. Losing a race surfaces as a concurrency conflict,
// which restarts the whole load-decide-apply cycle; on the next cycle the loser sees
// the book as borrowed and fails with lending.ErrBookAlreadyBorrowed.
//
// Borrowing is not idempotent: borrowing an already borrowed book always fails,
// also for the user who currently holds it.
package borrowbook

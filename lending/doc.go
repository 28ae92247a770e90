// Package lending provides the core abstractions and types for a library catalog
// with a borrow/return ledger.
//
// This package defines the types shared by the store implementations and the
// application features: books, ledger entries, the loan state snapshot a lending
// decision is made on, the loan change such a decision produces, catalog filters,
// validation errors and the common error definitions.
//
// Store implementations (see the postgresengine and memengine sub-packages) guarantee
// that a LoanChange is applied atomically and only if the book's version is still the
// one the decision was based on. This optimistic compare-and-set makes borrow and
// return linearizable per book without a global lock.
//
// Common usage pattern:
//
//	state, err := store.LoadLoanState(lending.WithStrongConsistency(ctx), bookID)
//	if err != nil {
//		// handle error
//	}
//
//	change := lending.BorrowChange(state.Book, lending.BuildLedgerEntry(uuid.New(), bookID, userID, now))
//	book, err := store.ApplyLoanChange(ctx, change)
//	if errors.Is(err, lending.ErrConcurrencyConflict) {
//		// reload and decide again
//	}
package lending

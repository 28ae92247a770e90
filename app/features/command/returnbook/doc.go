// Package returnbook implements the Return Book use case.
//
// Returning flags the book as available and closes its single open ledger entry,
// stamping the caller as the one who returned it. By default anybody may return a
// borrowed book; WithOnlyBorrowerMayReturn restricts returns to the borrower.
//
// A borrowed book with zero or several open entries, or an available book with open
// entries, is an integrity fault. Those are reported and never retried.
package returnbook

// Package removebook implements the Remove Book use case.
//
// The book row is deleted with a compare-and-set on its version; its ledger entries are
// kept as history. A borrowed book may be removed unless the handler is configured with
// WithRejectWhileBorrowed. The image of the removed book is released after the commit.
package removebook

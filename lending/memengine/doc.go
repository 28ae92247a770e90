// Package memengine provides an in-process implementation of the catalog store and lending ledger.
//
// Every book lives in its own slot guarded by its own mutex, so operations on different books
// never contend and operations on the same book are linearizable. Slots are kept in a sync.Map
// and are never removed: removing a book clears the slot's book but keeps its ledger entries,
// because the ledger is an append-mostly audit trail.
//
// The store honors the same optimistic compare-and-set contract as the postgresengine, which
// makes it suitable for unit tests of the command handlers and for running the service without
// a database.
package memengine

package main

const (
	logMsgTelemetryShutdownFailed = "telemetry: shutdown failed"
	logMsgListening               = "http: listening"
	logMsgShuttingDown            = "http: shutting down"
	logMsgMemoryStore             = "store: running in memory, data is lost on shutdown"
	logMsgMigrated                = "migrate: done"
	logMsgLoadgenStarting         = "loadgen: starting"
	logMsgLoadgenProgress         = "loadgen: progress"
	logMsgLoadgenFinished         = "loadgen: finished"
	logMsgLoadgenRequestFailed    = "loadgen: request failed"
	logMsgLoadgenViolation        = "loadgen: loan bookkeeping violated"
	logMsgLoadgenConsistent       = "loadgen: loan bookkeeping consistent"

	logAttrError       = "error"
	logAttrAddr        = "addr"
	logAttrStoreMode   = "store_mode"
	logAttrIdentityDB  = "identity_db"
	logAttrRate        = "rate"
	logAttrDuration    = "duration"
	logAttrBooks       = "books"
	logAttrBookID      = "book_id"
	logAttrIsBorrowed  = "is_borrowed"
	logAttrOpenEntries = "open_entries"
	logAttrRequests    = "requests"
	logAttrBorrowed    = "borrowed"
	logAttrReturned    = "returned"
	logAttrRejected    = "rejected"
	logAttrFailed      = "failed"
)

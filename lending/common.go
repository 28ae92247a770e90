package lending

import (
	"errors"
)

// Domain errors returned by stores and command handlers.
var (
	ErrBookNotFound        = errors.New("book not found")
	ErrBookAlreadyBorrowed = errors.New("book already borrowed")
	ErrBookNotBorrowed     = errors.New("book is not borrowed")
	ErrBookIsBorrowed      = errors.New("book is currently borrowed")
	ErrNotTheBorrower      = errors.New("book was borrowed by another user")
	ErrBookAlreadyExists   = errors.New("book with this id already exists")

	// ErrIntegrityFault signals that the at-most-one-open-entry invariant was found violated.
	// It must never occur under correct concurrency control and is not retried.
	ErrIntegrityFault = errors.New("lending integrity fault")

	// ErrConcurrencyConflict is returned when a compare-and-set on the book version affected no rows.
	ErrConcurrencyConflict = errors.New("concurrency error, no rows were affected")
)

// Infrastructure errors, usually joined with the underlying cause.
var (
	ErrEmptyTableNameSupplied    = errors.New("empty table name supplied")
	ErrNilDatabaseConnection     = errors.New("database connection must not be nil")
	ErrBuildingQueryFailed       = errors.New("building query failed")
	ErrQueryingFailed            = errors.New("querying the database failed")
	ErrScanningDBRowFailed       = errors.New("scanning db row failed")
	ErrExecutingFailed           = errors.New("executing statement failed")
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")
	ErrBeginningTxFailed         = errors.New("beginning transaction failed")
	ErrCommittingTxFailed        = errors.New("committing transaction failed")
	ErrInvalidLoanChange         = errors.New("invalid loan change")
)

// VersionUint is the optimistic concurrency token of a book row.
type VersionUint = uint

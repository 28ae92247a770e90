package postgresengine

import (
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Logger interface for SQL query logging, operational information, warnings, and error reporting.
type Logger = lending.Logger

// ContextualLogger interface for context-aware logging with automatic trace correlation.
type ContextualLogger = lending.ContextualLogger

// MetricsCollector interface for collecting store performance and operational metrics.
type MetricsCollector = lending.MetricsCollector

// TracingCollector interface for collecting distributed tracing information from store operations.
type TracingCollector = lending.TracingCollector

// SpanContext represents an active tracing span.
type SpanContext = lending.SpanContext

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithBooksTableName sets the table name for books.
func WithBooksTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return lending.ErrEmptyTableNameSupplied
		}

		s.booksTable = tableName

		return nil
	}
}

// WithLedgerTableName sets the table name for ledger entries.
func WithLedgerTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return lending.ErrEmptyTableNameSupplied
		}

		s.ledgerTable = tableName

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: operation summaries and concurrency conflicts (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: failures that cause the operation to fail, including integrity faults.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store.
// When set it is preferred over the basic logger.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store.
func WithTracing(collector TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector
		return nil
	}
}

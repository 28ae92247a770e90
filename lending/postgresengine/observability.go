package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	logMsgBuildQueryFailed    = "failed to build sql statement"
	logMsgDBQueryFailed       = "database query execution failed"
	logMsgDBExecFailed        = "database statement execution failed"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgScanRowFailed       = "failed to scan database row"
	logMsgRowsAffectedFailed  = "failed to get rows affected count"
	logMsgBeginTxFailed       = "failed to begin transaction"
	logMsgCommitFailed        = "failed to commit transaction"
	logMsgRollbackFailed      = "failed to roll back transaction"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgIntegrityFault      = "lending integrity fault detected"
	logMsgSQLExecuted         = "executed sql for: "
	logMsgOperation           = "library store operation: "

	logAttrError           = "error"
	logAttrQuery           = "query"
	logAttrDurationMS      = "duration_ms"
	logAttrOperation       = "operation"
	logAttrBookID          = "book_id"
	logAttrEntryID         = "entry_id"
	logAttrExpectedVersion = "expected_version"
	logAttrChangeKind      = "change_kind"
	logAttrBookCount       = "book_count"
	logAttrOpenEntries     = "open_entries"

	operationInsertBook      = "insert_book"
	operationGetBook         = "get_book"
	operationListBooks       = "list_books"
	operationUpdateBook      = "update_book"
	operationDeleteBook      = "delete_book"
	operationLoadLoanState   = "load_loan_state"
	operationApplyLoanChange = "apply_loan_change"
	operationLedgerEntries   = "ledger_entries"
	operationMigrate         = "migrate"

	metricOperationDuration    = "librarystore_operation_duration_seconds"
	metricDatabaseErrors       = "librarystore_database_errors_total"
	metricConcurrencyConflicts = "librarystore_concurrency_conflicts_total"
	metricIntegrityFaults      = "librarystore_integrity_faults_total"

	spanNamePrefix    = "librarystore."
	spanAttrOperation = "operation"
	spanAttrErrorType = "error_type"
	spanAttrBookID    = "book_id"
	spanAttrDuration  = "duration_ms"

	statusSuccess = "success"
	statusError   = "error"

	errorTypeBuildQuery          = "build_query_failed"
	errorTypeDatabaseQuery       = "database_query_failed"
	errorTypeDatabaseExec        = "database_exec_failed"
	errorTypeRowScan             = "row_scan_failed"
	errorTypeRowsAffected        = "rows_affected_failed"
	errorTypeTransaction         = "transaction_failed"
	errorTypeConcurrencyConflict = "concurrency_conflict"
	errorTypeIntegrityFault      = "integrity_fault"
	errorTypeNotFound            = "not_found"
)

// operationObserver tracks one store operation for tracing and metrics.
type operationObserver struct {
	store     *Store
	ctx       context.Context
	operation string
	span      SpanContext
	start     time.Time
}

func (s *Store) observe(ctx context.Context, operation string, bookID string) (*operationObserver, context.Context) {
	attrs := map[string]string{spanAttrOperation: operation}
	if bookID != "" {
		attrs[spanAttrBookID] = bookID
	}

	newCtx, span := s.startTraceSpan(ctx, spanNamePrefix+operation, attrs)

	return &operationObserver{
		store:     s,
		ctx:       newCtx,
		operation: operation,
		span:      span,
		start:     time.Now(),
	}, newCtx
}

func (o *operationObserver) success() {
	duration := time.Since(o.start)
	o.store.recordDurationMetrics(o.ctx, duration, o.operation, statusSuccess)
	o.store.finishTraceSpan(o.span, statusSuccess, map[string]string{spanAttrDuration: formatMillis(duration)})
}

func (o *operationObserver) failure(errorType string) {
	duration := time.Since(o.start)
	o.store.recordDurationMetrics(o.ctx, duration, o.operation, statusError)

	switch errorType {
	case errorTypeConcurrencyConflict:
		o.store.incrementCounter(o.ctx, metricConcurrencyConflicts, map[string]string{spanAttrOperation: o.operation})
	case errorTypeIntegrityFault:
		o.store.incrementCounter(o.ctx, metricIntegrityFaults, map[string]string{spanAttrOperation: o.operation})
	case errorTypeNotFound:
		// a business outcome, not a database error
	default:
		o.store.incrementCounter(o.ctx, metricDatabaseErrors, map[string]string{
			spanAttrOperation: o.operation,
			spanAttrErrorType: errorType,
		})
	}

	o.store.finishTraceSpan(o.span, statusError, map[string]string{
		spanAttrErrorType: errorType,
		spanAttrDuration:  formatMillis(duration),
	})
}

// finish records success or the error type derived from err.
func (o *operationObserver) finish(err error) {
	if err == nil {
		o.success()
		return
	}

	o.failure(errorTypeOf(err))
}

func errorTypeOf(err error) string {
	switch {
	case errors.Is(err, lending.ErrConcurrencyConflict):
		return errorTypeConcurrencyConflict
	case errors.Is(err, lending.ErrIntegrityFault):
		return errorTypeIntegrityFault
	case errors.Is(err, lending.ErrBookNotFound):
		return errorTypeNotFound
	case errors.Is(err, lending.ErrBuildingQueryFailed):
		return errorTypeBuildQuery
	case errors.Is(err, lending.ErrQueryingFailed):
		return errorTypeDatabaseQuery
	case errors.Is(err, lending.ErrExecutingFailed):
		return errorTypeDatabaseExec
	case errors.Is(err, lending.ErrScanningDBRowFailed):
		return errorTypeRowScan
	case errors.Is(err, lending.ErrGettingRowsAffectedFailed):
		return errorTypeRowsAffected
	default:
		return errorTypeTransaction
	}
}

func (s *Store) startTraceSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext) {
	if s.tracingCollector != nil {
		return s.tracingCollector.StartSpan(ctx, name, attrs)
	}

	return ctx, nil
}

func (s *Store) finishTraceSpan(span SpanContext, status string, attrs map[string]string) {
	if s.tracingCollector != nil && span != nil {
		s.tracingCollector.FinishSpan(span, status, attrs)
	}
}

func (s *Store) recordDurationMetrics(ctx context.Context, duration time.Duration, operation, status string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{spanAttrOperation: operation, "status": status}

	if contextual, ok := s.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metricOperationDuration, duration, labels)
		return
	}

	s.metricsCollector.RecordDuration(metricOperationDuration, duration, labels)
}

func (s *Store) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextual, ok := s.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metric, labels)
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s *Store) logQueryWithDuration(ctx context.Context, sqlQuery sqlQueryString, action string, duration time.Duration) {
	s.logDebug(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
}

func (s *Store) logOperation(ctx context.Context, action string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}
}

func (s *Store) logDebug(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Store) logInfo(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Store) logWarn(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *Store) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if s.logger != nil {
		s.logger.Error(msg, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func formatMillis(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Nanoseconds())/1e6)
}

package shell

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/testutil/helper"
)

func Test_RetryWithExponentialBackoff_Success_NoRetries(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return nil
	}

	meta, err := RetryWithExponentialBackoff(ctx, fn)

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, 1, meta.Attempts)
	assert.Equal(t, time.Duration(0), meta.TotalDelay)
	assert.Equal(t, ErrorTypeNone, meta.LastErrorType)
	assert.False(t, meta.RetriesExhausted)
}

func Test_RetryWithExponentialBackoff_RetryOnConcurrencyConflict(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		if callCount < 3 {
			return lending.ErrConcurrencyConflict
		}

		return nil
	}

	meta, err := RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(time.Millisecond))

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, 3, meta.Attempts)
	assert.Greater(t, meta.TotalDelay, time.Duration(0))
	assert.Equal(t, ErrorTypeNone, meta.LastErrorType)
}

func Test_RetryWithExponentialBackoff_Exhausts_On_Persistent_Conflict(t *testing.T) {
	ctx := context.Background()
	metricsSpy := helper.NewMetricsCollectorSpy(true)
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return errors.Join(lending.ErrConcurrencyConflict, errors.New("version moved on"))
	}

	meta, err := RetryWithExponentialBackoff(ctx, fn,
		WithMaxAttempts(3),
		WithBaseDelay(time.Millisecond),
		WithJitterFactor(0),
		WithMetrics(metricsSpy, "BorrowBook"),
	)

	assert.ErrorIs(t, err, lending.ErrConcurrencyConflict)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, 3, meta.Attempts)
	assert.True(t, meta.RetriesExhausted)
	assert.Equal(t, ErrorTypeConcurrencyConflict, meta.LastErrorType)
	assert.Equal(t, 3*time.Millisecond, meta.TotalDelay)
	assert.True(t, metricsSpy.HasCounterRecordForMetric(CommandHandlerMaxRetriesReachedMetric).
		WithLabel(LogAttrCommandType, "BorrowBook").
		WithLabel(LogAttrFinalErrorType, ErrorTypeConcurrencyConflict).
		Assert())
	assert.Equal(t, 2, metricsSpy.CountCounterRecordsForMetric(CommandHandlerRetriesMetric))
	assert.True(t, metricsSpy.HasDurationRecordForMetric(CommandHandlerRetryDelayMetric).
		WithLabel(LogAttrAttemptNumber, "2").
		Assert())
}

func Test_RetryWithExponentialBackoff_Does_Not_Retry_Integrity_Faults(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return errors.Join(lending.ErrIntegrityFault, lending.ErrConcurrencyConflict)
	}

	meta, err := RetryWithExponentialBackoff(ctx, fn)

	assert.ErrorIs(t, err, lending.ErrIntegrityFault)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, ErrorTypeIntegrityFault, meta.LastErrorType)
	assert.False(t, meta.RetriesExhausted)
}

func Test_RetryWithExponentialBackoff_Fails_Fast_On_Domain_Errors(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return lending.ErrBookAlreadyBorrowed
	}

	meta, err := RetryWithExponentialBackoff(ctx, fn)

	assert.ErrorIs(t, err, lending.ErrBookAlreadyBorrowed)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, ErrorTypeOther, meta.LastErrorType)
}

func Test_RetryWithExponentialBackoff_WithRetryIf(t *testing.T) {
	ctx := context.Background()
	ioErr := errors.New("disk busy")
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		if callCount < 2 {
			return ioErr
		}

		return nil
	}

	meta, err := RetryWithExponentialBackoff(ctx, fn,
		WithBaseDelay(time.Millisecond),
		WithRetryIf(func(err error) bool { return errors.Is(err, ioErr) }),
	)

	assert.NoError(t, err)
	assert.Equal(t, 2, meta.Attempts)
}

func Test_RetryWithExponentialBackoff_Stops_When_Context_Is_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		cancel()

		return lending.ErrConcurrencyConflict
	}

	meta, err := RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(time.Second))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, ErrorTypeContextCanceled, meta.LastErrorType)
}

func Test_RetryWithExponentialBackoff_InvalidOptions(t *testing.T) {
	ctx := context.Background()
	fn := func(_ context.Context) error { return nil }

	_, err := RetryWithExponentialBackoff(ctx, fn, WithMaxAttempts(0))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	_, err = RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(-1*time.Second))
	assert.ErrorIs(t, err, ErrNegativeBaseDelay)

	_, err = RetryWithExponentialBackoff(ctx, fn, WithJitterFactor(1.5))
	assert.ErrorIs(t, err, ErrInvalidJitterFactor)

	_, err = RetryWithExponentialBackoff(ctx, fn, WithRetryIf(nil))
	assert.ErrorIs(t, err, ErrNilRetryPredicate)

	_, err = RetryWithExponentialBackoff(ctx, fn, WithMetrics(nil, "BorrowBook"))
	assert.ErrorIs(t, err, ErrNilMetricsCollector)

	_, err = RetryWithExponentialBackoff(ctx, fn, WithMetrics(helper.NewMetricsCollectorSpy(false), ""))
	assert.ErrorIs(t, err, ErrEmptyCommandType)
}

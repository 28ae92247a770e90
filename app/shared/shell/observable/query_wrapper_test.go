package observable_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/observable"
	"github.com/AntonStoeckl/library-lending-go/lending"
	. "github.com/AntonStoeckl/library-lending-go/testutil/helper" //nolint:revive
)

func Test_QueryWrapper_Handle_Success(t *testing.T) {
	// arrange
	handler := mockQueryHandler{result: []string{"1984", "Animal Farm"}}
	metricsCollector := NewMetricsCollectorSpy(true)
	tracingCollector := NewTracingCollectorSpy(true)
	logSpy := NewLogHandlerSpy(false)

	wrapper, err := observable.NewQueryWrapper[mockQuery, []string](
		handler,
		observable.WithQueryMetrics[mockQuery, []string](metricsCollector),
		observable.WithQueryTracing[mockQuery, []string](tracingCollector),
		observable.WithQueryContextualLogging[mockQuery, []string](slog.New(logSpy)),
	)
	assert.NoError(t, err)

	// act
	result, err := wrapper.Handle(context.Background(), mockQuery{})

	// assert
	assert.NoError(t, err)
	assert.Equal(t, []string{"1984", "Animal Farm"}, result)
	assert.True(t, metricsCollector.HasDurationRecordForMetric(shell.QueryHandlerDurationMetric).
		WithLabel(shell.LogAttrQueryType, "TestQuery").
		WithStatus(shell.StatusSuccess).
		Assert())
	assert.True(t, tracingCollector.HasFinishedSpan(shell.SpanNameQueryHandle, shell.StatusSuccess))
	assert.True(t, logSpy.HasInfoLogWithMessage(shell.LogMsgQueryStarted).Assert())
	assert.True(t, logSpy.HasInfoLogWithMessage(shell.LogMsgQueryCompleted).WithDurationMS().Assert())
}

func Test_QueryWrapper_Handle_Error(t *testing.T) {
	// arrange
	handler := mockQueryHandler{err: lending.ErrBookNotFound}
	metricsCollector := NewMetricsCollectorSpy(true)
	logSpy := NewLogHandlerSpy(false)

	wrapper, err := observable.NewQueryWrapper[mockQuery, []string](
		handler,
		observable.WithQueryMetrics[mockQuery, []string](metricsCollector),
		observable.WithQueryLogging[mockQuery, []string](slog.New(logSpy)),
	)
	assert.NoError(t, err)

	// act
	_, err = wrapper.Handle(context.Background(), mockQuery{})

	// assert
	assert.ErrorIs(t, err, lending.ErrBookNotFound)
	assert.True(t, metricsCollector.HasCounterRecordForMetric(shell.QueryHandlerCallsMetric).
		WithStatus(shell.StatusError).
		Assert())
	assert.True(t, logSpy.HasErrorLogWithMessage(shell.LogMsgQueryFailed).
		WithAttrValue(shell.LogAttrQueryType, "TestQuery").
		Assert())
}

func Test_QueryWrapper_Handle_Timeout(t *testing.T) {
	// arrange
	handler := mockQueryHandler{err: context.DeadlineExceeded}
	metricsCollector := NewMetricsCollectorSpy(true)

	wrapper, err := observable.NewQueryWrapper[mockQuery, []string](
		handler,
		observable.WithQueryMetrics[mockQuery, []string](metricsCollector),
	)
	assert.NoError(t, err)

	// act
	_, err = wrapper.Handle(context.Background(), mockQuery{})

	// assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, metricsCollector.HasCounterRecordForMetric(shell.QueryHandlerTimeoutMetric).Assert())
}

/*** Test Helpers ***/

type mockQuery struct{}

func (q mockQuery) QueryType() string {
	return "TestQuery"
}

type mockQueryHandler struct {
	result []string
	err    error
}

func (h mockQueryHandler) Handle(_ context.Context, _ mockQuery) ([]string, error) {
	return h.result, h.err
}

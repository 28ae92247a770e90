package oteladapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/library-lending-go/lending/oteladapters"
)

func Test_MetricsCollector_RecordDuration_InSeconds(t *testing.T) {
	// setup
	reader := sdkmetric.NewManualReader()
	collector := oteladapters.NewMetricsCollector(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))

	// act
	collector.RecordDuration(
		"commandhandler_handle_duration_seconds",
		150*time.Millisecond,
		map[string]string{"command_type": "BorrowBook", "status": "success"},
	)

	// assert
	histogram := findHistogramMetric(t, collect(t, reader), "commandhandler_handle_duration_seconds")
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.15, histogram.DataPoints[0].Sum, 0.001)

	expectedAttrs := attribute.NewSet(
		attribute.String("command_type", "BorrowBook"),
		attribute.String("status", "success"),
	)
	assert.True(t, histogram.DataPoints[0].Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_IncrementCounter_SeparatesLabelSets(t *testing.T) {
	// setup
	reader := sdkmetric.NewManualReader()
	collector := oteladapters.NewMetricsCollector(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))

	// act
	collector.IncrementCounter("commandhandler_success_total", map[string]string{"command_type": "BorrowBook"})
	collector.IncrementCounter("commandhandler_success_total", map[string]string{"command_type": "BorrowBook"})
	collector.IncrementCounterContext(
		context.Background(),
		"commandhandler_success_total",
		map[string]string{"command_type": "ReturnBook"},
	)

	// assert
	counter := findCounterMetric(t, collect(t, reader), "commandhandler_success_total")
	require.Len(t, counter.DataPoints, 2)

	totals := map[string]int64{}
	for _, dp := range counter.DataPoints {
		commandType, _ := dp.Attributes.Value("command_type")
		totals[commandType.AsString()] = dp.Value
	}

	assert.Equal(t, int64(2), totals["BorrowBook"])
	assert.Equal(t, int64(1), totals["ReturnBook"])
}

func Test_MetricsCollector_RecordValue_KeepsLastValue(t *testing.T) {
	// setup
	reader := sdkmetric.NewManualReader()
	collector := oteladapters.NewMetricsCollector(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))

	// act
	collector.RecordValue("blobstore_pending_releases", 3, nil)
	collector.RecordValueContext(context.Background(), "blobstore_pending_releases", 1, nil)

	// assert
	gauge := findGaugeMetric(t, collect(t, reader), "blobstore_pending_releases")
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 1.0, gauge.DataPoints[0].Value, 0.0001)
}

func Test_MetricsCollector_IsSafeForConcurrentUse(t *testing.T) {
	// setup
	reader := sdkmetric.NewManualReader()
	collector := oteladapters.NewMetricsCollector(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))

	// act
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter("queryhandler_success_total", nil)
			collector.RecordDuration("queryhandler_handle_duration_seconds", time.Millisecond, nil)
		}()
	}
	wg.Wait()

	// assert
	counter := findCounterMetric(t, collect(t, reader), "queryhandler_success_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(20), counter.DataPoints[0].Value)
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	return resourceMetrics
}

func findHistogramMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Histogram[float64] {
	t.Helper()

	data, ok := findMetricData(rm, name).(metricdata.Histogram[float64])
	require.True(t, ok, "histogram metric %s not found", name)

	return data
}

func findCounterMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()

	data, ok := findMetricData(rm, name).(metricdata.Sum[int64])
	require.True(t, ok, "counter metric %s not found", name)

	return data
}

func findGaugeMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Gauge[float64] {
	t.Helper()

	data, ok := findMetricData(rm, name).(metricdata.Gauge[float64])
	require.True(t, ok, "gauge metric %s not found", name)

	return data
}

func findMetricData(rm metricdata.ResourceMetrics, name string) metricdata.Aggregation {
	for _, scopeMetrics := range rm.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}

	return nil
}

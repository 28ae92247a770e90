// Package helper provides test doubles and fixtures shared by the store, handler and HTTP tests.
//
// The spies record calls made through the lending.Logger (via slog), lending.MetricsCollector
// and lending.TracingCollector interfaces, so observability can be asserted without a backend.
package helper

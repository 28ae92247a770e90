// Package oteladapters connects the lending observability interfaces to OpenTelemetry.
//
// The command and query handlers, the postgres engine and the HTTP layer only know the small
// Logger, MetricsCollector and TracingCollector interfaces of package lending. The types in this
// package implement them on top of the OpenTelemetry APIs, so the service binary can plug in
// whichever providers it configured:
//
//	tracer := otel.Tracer("librarysvc")
//	meter := otel.Meter("librarysvc")
//
//	tracing := oteladapters.NewTracingCollector(tracer)
//	metrics := oteladapters.NewMetricsCollector(meter)
//	logger := oteladapters.NewSlogBridgeLogger("librarysvc")
package oteladapters

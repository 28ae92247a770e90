// Package observable provides wrappers that instrument command and query handlers with
// metrics, tracing, and logging while the handlers themselves stay free of those concerns.
//
// The wrappers are applied externally at wiring time:
//
//	coreHandler := borrowbook.NewCommandHandler(store)
//
//	handler, err := observable.NewCommandWrapper[borrowbook.Command, lending.Book](
//		coreHandler,
//		observable.WithCommandMetrics[borrowbook.Command, lending.Book](metricsCollector),
//		observable.WithCommandTracing[borrowbook.Command, lending.Book](tracingCollector),
//		observable.WithCommandContextualLogging[borrowbook.Command, lending.Book](contextualLogger),
//	)
//
// For unit tests focused on business logic, use the handlers without wrapping.
package observable

package main

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/AntonStoeckl/library-lending-go/app/blobstore"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/addbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/borrowbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/removebook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/returnbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/updatebook"
	"github.com/AntonStoeckl/library-lending-go/app/features/query/getbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/query/listbooks"
	"github.com/AntonStoeckl/library-lending-go/app/features/query/loanhistory"
	"github.com/AntonStoeckl/library-lending-go/app/httpapi"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/config"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/observable"
	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/memengine"
	"github.com/AntonStoeckl/library-lending-go/lending/oteladapters"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
)

// catalogStore is what all feature handlers together need from a store.
type catalogStore interface {
	addbook.Store
	updatebook.Store
	removebook.Store
	borrowbook.Store
	returnbook.Store
	getbook.Store
	listbooks.Store
	loanhistory.Store
}

// observability bundles the logging, metrics and tracing sinks handed to every component.
// metrics and tracing are nil when no OTLP endpoint is configured.
type observability struct {
	logger           *slog.Logger
	contextualLogger lending.ContextualLogger
	metrics          lending.MetricsCollector
	tracing          lending.TracingCollector
}

func newObservability(logger *slog.Logger, providers *config.ObservabilityProviders, serviceName string) observability {
	obs := observability{
		logger:           logger,
		contextualLogger: logger,
	}

	if providers == nil {
		return obs
	}

	// contextual records go trace-correlated to the OTLP log pipeline instead of stderr
	obs.contextualLogger = oteladapters.NewSlogBridgeLogger(serviceName)
	obs.metrics = oteladapters.NewMetricsCollector(otel.Meter(serviceName))
	obs.tracing = oteladapters.NewTracingCollector(otel.Tracer(serviceName))

	return obs
}

func openStore(
	ctx context.Context,
	cfg *config.Config,
	obs observability,
	migrate bool,
) (catalogStore, func(), []httpapi.HealthCheck, error) {
	if cfg.Store.Mode == config.StoreModeMemory {
		obs.logger.Warn(logMsgMemoryStore)

		return memengine.NewStore(memengine.WithLogger(obs.logger)), func() {}, nil, nil
	}

	options := []postgresengine.Option{
		postgresengine.WithLogger(obs.logger),
		postgresengine.WithContextualLogger(obs.contextualLogger),
	}

	if obs.metrics != nil {
		options = append(options, postgresengine.WithMetrics(obs.metrics))
	}

	if obs.tracing != nil {
		options = append(options, postgresengine.WithTracing(obs.tracing))
	}

	store, closeStore, err := config.OpenPostgresStore(ctx, cfg.Store, options...)
	if err != nil {
		return nil, nil, nil, err
	}

	if migrate {
		if err = store.Migrate(ctx); err != nil {
			closeStore()
			return nil, nil, nil, err
		}
	}

	return store, closeStore, []httpapi.HealthCheck{store.Ping}, nil
}

func commandOptions[C shell.Command](obs observability) []observable.CommandOption[C, lending.Book] {
	opts := []observable.CommandOption[C, lending.Book]{
		observable.WithCommandContextualLogging[C, lending.Book](obs.contextualLogger),
	}

	if obs.metrics != nil {
		opts = append(opts, observable.WithCommandMetrics[C, lending.Book](obs.metrics))
	}

	if obs.tracing != nil {
		opts = append(opts, observable.WithCommandTracing[C, lending.Book](obs.tracing))
	}

	return opts
}

func queryOptions[Q shell.Query, R any](obs observability) []observable.QueryOption[Q, R] {
	opts := []observable.QueryOption[Q, R]{
		observable.WithQueryContextualLogging[Q, R](obs.contextualLogger),
	}

	if obs.metrics != nil {
		opts = append(opts, observable.WithQueryMetrics[Q, R](obs.metrics))
	}

	if obs.tracing != nil {
		opts = append(opts, observable.WithQueryTracing[Q, R](obs.tracing))
	}

	return opts
}

func retryOptions(cfg *config.Config, obs observability, commandType string) []shell.RetryOption {
	opts := []shell.RetryOption{shell.WithMaxAttempts(cfg.Policy.RetryMaxAttempts)}

	if obs.metrics != nil {
		opts = append(opts, shell.WithMetrics(obs.metrics, commandType))
	}

	return opts
}

// buildHandlers creates the feature handlers and wraps each of them for observability.
func buildHandlers(
	cfg *config.Config,
	store catalogStore,
	publisher shell.NotificationPublisher,
	releaser *blobstore.Releaser,
	obs observability,
) (httpapi.Handlers, error) {
	var (
		handlers httpapi.Handlers
		err      error
	)

	handlers.AddBook, err = observable.NewCommandWrapper[addbook.Command, lending.Book](
		addbook.NewCommandHandler(store,
			addbook.WithNotificationPublisher(publisher),
			addbook.WithBlobReleaser(releaser),
		),
		commandOptions[addbook.Command](obs)...,
	)
	if err != nil {
		return httpapi.Handlers{}, err
	}

	handlers.UpdateBook, err = observable.NewCommandWrapper[updatebook.Command, lending.Book](
		updatebook.NewCommandHandler(store,
			updatebook.WithRetryOptions(retryOptions(cfg, obs, updatebook.Command{}.CommandType())...),
			updatebook.WithNotificationPublisher(publisher),
			updatebook.WithBlobReleaser(releaser),
		),
		commandOptions[updatebook.Command](obs)...,
	)
	if err != nil {
		return httpapi.Handlers{}, err
	}

	handlers.RemoveBook, err = observable.NewCommandWrapper[removebook.Command, lending.Book](
		removebook.NewCommandHandler(store,
			removebook.WithRetryOptions(retryOptions(cfg, obs, removebook.Command{}.CommandType())...),
			removebook.WithRejectWhileBorrowed(cfg.Policy.RejectRemoveBorrowed),
			removebook.WithNotificationPublisher(publisher),
			removebook.WithBlobReleaser(releaser),
		),
		commandOptions[removebook.Command](obs)...,
	)
	if err != nil {
		return httpapi.Handlers{}, err
	}

	handlers.BorrowBook, err = observable.NewCommandWrapper[borrowbook.Command, lending.Book](
		borrowbook.NewCommandHandler(store,
			borrowbook.WithRetryOptions(retryOptions(cfg, obs, borrowbook.Command{}.CommandType())...),
			borrowbook.WithNotificationPublisher(publisher),
		),
		commandOptions[borrowbook.Command](obs)...,
	)
	if err != nil {
		return httpapi.Handlers{}, err
	}

	handlers.ReturnBook, err = observable.NewCommandWrapper[returnbook.Command, lending.Book](
		returnbook.NewCommandHandler(store,
			returnbook.WithRetryOptions(retryOptions(cfg, obs, returnbook.Command{}.CommandType())...),
			returnbook.WithOnlyBorrowerMayReturn(cfg.Policy.OnlyBorrowerMayReturn),
			returnbook.WithNotificationPublisher(publisher),
		),
		commandOptions[returnbook.Command](obs)...,
	)
	if err != nil {
		return httpapi.Handlers{}, err
	}

	handlers.GetBook, err = observable.NewQueryWrapper[getbook.Query, lending.Book](
		getbook.NewQueryHandler(store),
		queryOptions[getbook.Query, lending.Book](obs)...,
	)
	if err != nil {
		return httpapi.Handlers{}, err
	}

	handlers.ListBooks, err = observable.NewQueryWrapper[listbooks.Query, listbooks.Books](
		listbooks.NewQueryHandler(store),
		queryOptions[listbooks.Query, listbooks.Books](obs)...,
	)
	if err != nil {
		return httpapi.Handlers{}, err
	}

	handlers.LoanHistory, err = observable.NewQueryWrapper[loanhistory.Query, loanhistory.LoanHistory](
		loanhistory.NewQueryHandler(store),
		queryOptions[loanhistory.Query, loanhistory.LoanHistory](obs)...,
	)
	if err != nil {
		return httpapi.Handlers{}, err
	}

	return handlers, nil
}

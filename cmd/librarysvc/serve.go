package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/library-lending-go/app/blobstore"
	"github.com/AntonStoeckl/library-lending-go/app/httpapi"
	"github.com/AntonStoeckl/library-lending-go/app/identity"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/config"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/messaging"
)

var skipMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not create missing tables on startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := config.NewLogger(os.Stderr, cfg.Observability)

	providers, err := config.NewObservabilityProviders(ctx, cfg.Observability, version)
	if err != nil {
		return err
	}

	defer func() {
		if shutdownErr := providers.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			logger.Warn(logMsgTelemetryShutdownFailed, logAttrError, shutdownErr.Error())
		}
	}()

	obs := newObservability(logger, providers, cfg.Observability.ServiceName)

	store, closeStore, healthChecks, err := openStore(ctx, cfg, obs, !skipMigrate)
	if err != nil {
		return err
	}
	defer closeStore()

	accounts, err := identity.Open(ctx, cfg.Identity.DatabasePath,
		identity.WithTokenTTL(cfg.GetTokenTTL()),
		identity.WithResolveCache(cfg.Identity.CacheSize, cfg.GetCacheTTL()),
		identity.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer func() { _ = accounts.Close() }()

	images, err := blobstore.NewFileStore(cfg.Blobs.Dir, blobstore.WithFileStoreLogger(logger))
	if err != nil {
		return err
	}

	releaserOpts := []blobstore.ReleaserOption{
		blobstore.WithQueueSize(cfg.Blobs.ReleaseQueueSize),
		blobstore.WithWorkers(cfg.Blobs.ReleaseWorkers),
		blobstore.WithReleaserLogger(logger),
	}
	if obs.metrics != nil {
		releaserOpts = append(releaserOpts, blobstore.WithReleaserMetrics(obs.metrics))
	}

	releaser := blobstore.NewReleaser(images, releaserOpts...)

	publisher, closePublisher, err := openPublisher(cfg, obs)
	if err != nil {
		return err
	}
	defer closePublisher()

	handlers, err := buildHandlers(cfg, store, publisher, releaser, obs)
	if err != nil {
		return err
	}

	serverOpts := []httpapi.Option{
		httpapi.WithLogger(logger),
		httpapi.WithContextualLogger(obs.contextualLogger),
		httpapi.WithCORSOrigins(cfg.HTTP.CORSOrigins...),
		httpapi.WithMaxUploadBytes(cfg.GetMaxUploadBytes()),
		httpapi.WithHealthCheck(accounts.Ping),
	}
	for _, check := range healthChecks {
		serverOpts = append(serverOpts, httpapi.WithHealthCheck(check))
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpapi.NewServer(handlers, accounts, images, serverOpts...).Handler(),
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	return serveUntilDone(ctx, cfg, httpServer, releaser, logger)
}

// serveUntilDone runs the HTTP server and the image release workers until ctx is canceled or the server fails.
// The workers stop after the server has drained, so releases triggered by in-flight requests are not lost.
func serveUntilDone(
	ctx context.Context,
	cfg *config.Config,
	httpServer *http.Server,
	releaser *blobstore.Releaser,
	logger shell.Logger,
) error {
	g, gctx := errgroup.WithContext(ctx)

	releaserCtx, stopReleaser := context.WithCancel(context.WithoutCancel(ctx))
	defer stopReleaser()

	g.Go(func() error {
		return releaser.Run(releaserCtx)
	})

	g.Go(func() error {
		logger.Info(logMsgListening, logAttrAddr, httpServer.Addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		defer stopReleaser()

		logger.Info(logMsgShuttingDown)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.GetShutdownTimeout())
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openPublisher(cfg *config.Config, obs observability) (shell.NotificationPublisher, func(), error) {
	if cfg.Messaging.AMQPURL == "" {
		return shell.NewLogPublisher(obs.logger, obs.contextualLogger), func() {}, nil
	}

	publisher, err := messaging.Dial(cfg.Messaging.AMQPURL, cfg.Messaging.Exchange,
		messaging.WithLogger(obs.logger),
		messaging.WithContextualLogger(obs.contextualLogger),
	)
	if err != nil {
		return nil, nil, err
	}

	return publisher, func() { _ = publisher.Close() }, nil
}

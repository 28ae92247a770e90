package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-lending-go/app/blobstore"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/addbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/borrowbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/returnbook"
	"github.com/AntonStoeckl/library-lending-go/app/httpapi"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/config"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	loadgenOperationTimeout = 5 * time.Second
	loadgenReportInterval   = 10 * time.Second
)

var loadgenSettings = loadgenConfig{
	Rate:     200,
	Duration: 30 * time.Second,
	Books:    20,
	Users:    50,
}

var loadgenCmd = &cobra.Command{
	Use:   "loadgen",
	Short: "Fire concurrent borrow and return requests at a few books and verify the loan bookkeeping afterwards",
	RunE:  runLoadgen,
}

func init() {
	loadgenCmd.Flags().IntVar(&loadgenSettings.Rate, "rate", loadgenSettings.Rate, "requests per second")
	loadgenCmd.Flags().DurationVar(&loadgenSettings.Duration, "duration", loadgenSettings.Duration, "how long to generate load")
	loadgenCmd.Flags().IntVar(&loadgenSettings.Books, "books", loadgenSettings.Books, "number of books to contend on")
	loadgenCmd.Flags().IntVar(&loadgenSettings.Users, "users", loadgenSettings.Users, "number of distinct borrowers")
}

type loadgenConfig struct {
	Rate     int
	Duration time.Duration
	Books    int
	Users    int
}

var errInvalidLoadgenConfig = errors.New("invalid loadgen settings")

// validate rejects settings the generator cannot run with. The tick interval must stay at least one nanosecond.
func (c loadgenConfig) validate() error {
	switch {
	case c.Rate <= 0 || c.Rate > int(time.Second):
		return fmt.Errorf("%w: rate must be between 1 and %d", errInvalidLoadgenConfig, int(time.Second))
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", errInvalidLoadgenConfig)
	case c.Books <= 0:
		return fmt.Errorf("%w: books must be positive", errInvalidLoadgenConfig)
	case c.Users <= 0:
		return fmt.Errorf("%w: users must be positive", errInvalidLoadgenConfig)
	}

	return nil
}

// loadgenStats counts outcomes. Rejected requests are expected under contention and are not errors.
type loadgenStats struct {
	requests atomic.Int64
	borrowed atomic.Int64
	returned atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
}

type loadGenerator struct {
	cfg      loadgenConfig
	store    catalogStore
	handlers httpapi.Handlers
	logger   shell.Logger
	bookIDs  []uuid.UUID
	userIDs  []uuid.UUID
	stats    loadgenStats
}

func runLoadgen(cmd *cobra.Command, _ []string) error {
	if err := loadgenSettings.validate(); err != nil {
		return err
	}

	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := config.NewLogger(cmd.ErrOrStderr(), cfg.Observability)
	obs := newObservability(logger, nil, cfg.Observability.ServiceName)

	store, closeStore, _, err := openStore(ctx, cfg, obs, true)
	if err != nil {
		return err
	}
	defer closeStore()

	// no images are involved, so the releaser never has work and is not started
	images, err := blobstore.NewFileStore(cfg.Blobs.Dir)
	if err != nil {
		return err
	}

	handlers, err := buildHandlers(cfg, store, shell.NewLogPublisher(nil, nil), blobstore.NewReleaser(images), obs)
	if err != nil {
		return err
	}

	lg, err := newLoadGenerator(loadgenSettings, store, handlers, logger)
	if err != nil {
		return err
	}

	if err = lg.seed(ctx); err != nil {
		return err
	}

	if err = lg.run(ctx); err != nil {
		return err
	}

	lg.logStats(logMsgLoadgenFinished)

	return lg.verify(ctx)
}

func newLoadGenerator(
	cfg loadgenConfig,
	store catalogStore,
	handlers httpapi.Handlers,
	logger shell.Logger,
) (*loadGenerator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	userIDs := make([]uuid.UUID, cfg.Users)
	for i := range userIDs {
		userIDs[i] = uuid.New()
	}

	return &loadGenerator{
		cfg:      cfg,
		store:    store,
		handlers: handlers,
		logger:   logger,
		userIDs:  userIDs,
	}, nil
}

// seed adds the books all requests contend on.
func (lg *loadGenerator) seed(ctx context.Context) error {
	lg.bookIDs = make([]uuid.UUID, 0, lg.cfg.Books)

	for i := range lg.cfg.Books {
		fields := lending.BookFields{
			Title:           fmt.Sprintf("Load Test Book %d", i+1),
			Author:          "Load Generator",
			Genre:           "Test",
			PublicationYear: 2000,
		}

		book, _, err := lg.handlers.AddBook.Handle(ctx, addbook.BuildCommand(fields, "", lg.userIDs[0], time.Now()))
		if err != nil {
			return fmt.Errorf("seeding books: %w", err)
		}

		lg.bookIDs = append(lg.bookIDs, book.ID)
	}

	return nil
}

// run fires one request per tick until the configured duration elapsed or ctx is done,
// then waits for the requests in flight.
func (lg *loadGenerator) run(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, lg.cfg.Duration)
	defer cancel()

	ticker := time.NewTicker(time.Second / time.Duration(lg.cfg.Rate))
	defer ticker.Stop()

	report := time.NewTicker(loadgenReportInterval)
	defer report.Stop()

	lg.logger.Info(logMsgLoadgenStarting,
		logAttrRate, lg.cfg.Rate, logAttrDuration, lg.cfg.Duration.String(), logAttrBooks, len(lg.bookIDs))

	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	for {
		select {
		case <-runCtx.Done():
			return nil

		case <-report.C:
			lg.logStats(logMsgLoadgenProgress)

		case <-ticker.C:
			inFlight.Add(1)
			go func() {
				defer inFlight.Done()
				lg.fire(context.WithoutCancel(runCtx))
			}()
		}
	}
}

// fire borrows or returns a random book for a random user.
func (lg *loadGenerator) fire(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, loadgenOperationTimeout)
	defer cancel()

	bookID := lg.bookIDs[rand.IntN(len(lg.bookIDs))] //nolint:gosec // load distribution only
	userID := lg.userIDs[rand.IntN(len(lg.userIDs))] //nolint:gosec // load distribution only

	lg.stats.requests.Add(1)

	var err error
	if rand.IntN(2) == 0 { //nolint:gosec // load distribution only
		_, _, err = lg.handlers.BorrowBook.Handle(opCtx, borrowbook.BuildCommand(bookID, userID, time.Now()))
		if err == nil {
			lg.stats.borrowed.Add(1)
		}
	} else {
		_, _, err = lg.handlers.ReturnBook.Handle(opCtx, returnbook.BuildCommand(bookID, userID, time.Now()))
		if err == nil {
			lg.stats.returned.Add(1)
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, lending.ErrBookAlreadyBorrowed),
		errors.Is(err, lending.ErrBookNotBorrowed),
		errors.Is(err, lending.ErrNotTheBorrower):
		lg.stats.rejected.Add(1)
	default:
		lg.stats.failed.Add(1)
		lg.logger.Warn(logMsgLoadgenRequestFailed, logAttrBookID, bookID.String(), logAttrError, err.Error())
	}
}

// verify checks that every book is flagged as borrowed exactly when it has one open ledger entry.
func (lg *loadGenerator) verify(ctx context.Context) error {
	var violations int

	for _, bookID := range lg.bookIDs {
		state, err := lg.store.LoadLoanState(ctx, bookID)
		if err != nil {
			return err
		}

		open := len(state.OpenEntries)
		if (state.Book.IsBorrowed && open != 1) || (!state.Book.IsBorrowed && open != 0) {
			violations++
			lg.logger.Error(logMsgLoadgenViolation,
				logAttrBookID, bookID.String(), logAttrIsBorrowed, state.Book.IsBorrowed, logAttrOpenEntries, open)
		}
	}

	if violations > 0 {
		return fmt.Errorf("%d of %d books have inconsistent loan bookkeeping", violations, len(lg.bookIDs))
	}

	lg.logger.Info(logMsgLoadgenConsistent, logAttrBooks, len(lg.bookIDs))

	return nil
}

func (lg *loadGenerator) logStats(msg string) {
	lg.logger.Info(msg,
		logAttrRequests, lg.stats.requests.Load(),
		logAttrBorrowed, lg.stats.borrowed.Load(),
		logAttrReturned, lg.stats.returned.Load(),
		logAttrRejected, lg.stats.rejected.Load(),
		logAttrFailed, lg.stats.failed.Load(),
	)
}

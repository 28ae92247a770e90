package blobstore

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	defaultQueueSize      = 256
	defaultWorkers        = 1
	defaultReleaseTimeout = 10 * time.Second

	metricPendingReleases = "blobstore_pending_releases"
	metricReleasesTotal   = "blobstore_releases_total"
	metricLabelStatus     = "status"

	releaseStatusDeleted = "deleted"
	releaseStatusGone    = "already_gone"
	releaseStatusFailed  = "failed"
	releaseStatusDropped = "dropped"

	logMsgReleaseDropped = "blobstore: release queue full, image is leaked"
	logMsgReleased       = "blobstore: image released"
	logMsgReleaseGone    = "blobstore: image to release was already gone"
	logMsgReleaseFailed  = "blobstore: releasing image failed"
	logAttrAttempts      = "attempts"
	logAttrError         = "error"
)

// Deleter deletes a blob by ref. FileStore implements it.
type Deleter interface {
	Delete(ref string) error
}

// Releaser deletes released blobs asynchronously. Release never blocks.
// Run must be running for queued refs to be processed.
type Releaser struct {
	deleter      Deleter
	queue        chan string
	workers      int
	timeout      time.Duration
	retryOptions []shell.RetryOption
	logger       lending.Logger
	metrics      lending.MetricsCollector
}

// ReleaserOption configures a Releaser.
type ReleaserOption func(*Releaser)

// WithQueueSize sets how many refs may wait before Release starts dropping.
func WithQueueSize(size int) ReleaserOption {
	return func(r *Releaser) {
		if size > 0 {
			r.queue = make(chan string, size)
		}
	}
}

// WithWorkers sets the number of concurrent deleting workers.
func WithWorkers(workers int) ReleaserOption {
	return func(r *Releaser) {
		if workers > 0 {
			r.workers = workers
		}
	}
}

// WithRetryOptions overrides the delete retry policy.
func WithRetryOptions(opts ...shell.RetryOption) ReleaserOption {
	return func(r *Releaser) {
		r.retryOptions = opts
	}
}

// WithReleaserLogger sets the logger.
func WithReleaserLogger(logger lending.Logger) ReleaserOption {
	return func(r *Releaser) {
		r.logger = logger
	}
}

// WithReleaserMetrics sets the metrics collector.
func WithReleaserMetrics(collector lending.MetricsCollector) ReleaserOption {
	return func(r *Releaser) {
		r.metrics = collector
	}
}

// NewReleaser creates a Releaser deleting through deleter.
func NewReleaser(deleter Deleter, opts ...ReleaserOption) *Releaser {
	r := &Releaser{
		deleter: deleter,
		queue:   make(chan string, defaultQueueSize),
		workers: defaultWorkers,
		timeout: defaultReleaseTimeout,
		retryOptions: []shell.RetryOption{
			shell.WithMaxAttempts(4),
			shell.WithBaseDelay(50 * time.Millisecond),
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	// a missing or foreign ref will not appear by retrying
	r.retryOptions = append(r.retryOptions, shell.WithRetryIf(isTransient))

	return r
}

// Release queues the ref for deletion. A full queue drops the ref with a warning.
func (r *Releaser) Release(ref string) {
	if ref == "" {
		return
	}

	select {
	case r.queue <- ref:
		r.recordPending()
	default:
		r.countRelease(releaseStatusDropped)

		if r.logger != nil {
			r.logger.Warn(logMsgReleaseDropped, logAttrRef, ref)
		}
	}
}

// Run processes queued refs until ctx is done, then works off what is still queued and returns.
func (r *Releaser) Run(ctx context.Context) error {
	g := new(errgroup.Group)

	for range r.workers {
		g.Go(func() error {
			r.work(ctx)
			return nil
		})
	}

	return g.Wait()
}

func (r *Releaser) work(ctx context.Context) {
	for {
		select {
		case ref := <-r.queue:
			r.release(ctx, ref)
		case <-ctx.Done():
			r.drain()
			return
		}
	}
}

// drain deletes the refs left at shutdown with a single attempt each.
func (r *Releaser) drain() {
	for {
		select {
		case ref := <-r.queue:
			r.handleResult(ref, 1, r.deleter.Delete(ref))
		default:
			return
		}
	}
}

func (r *Releaser) release(ctx context.Context, ref string) {
	r.recordPending()

	releaseCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	metrics, err := shell.RetryWithExponentialBackoff(
		releaseCtx,
		func(context.Context) error { return r.deleter.Delete(ref) },
		r.retryOptions...,
	)

	r.handleResult(ref, metrics.Attempts, err)
}

func (r *Releaser) handleResult(ref string, attempts int, err error) {
	switch {
	case err == nil:
		r.countRelease(releaseStatusDeleted)
		r.log(logMsgReleased, ref, attempts, nil)
	case errors.Is(err, ErrBlobNotFound):
		r.countRelease(releaseStatusGone)
		r.log(logMsgReleaseGone, ref, attempts, nil)
	default:
		r.countRelease(releaseStatusFailed)
		r.log(logMsgReleaseFailed, ref, attempts, err)
	}
}

func (r *Releaser) log(msg string, ref string, attempts int, err error) {
	if r.logger == nil {
		return
	}

	if err != nil {
		r.logger.Warn(msg, logAttrRef, ref, logAttrAttempts, attempts, logAttrError, err.Error())
		return
	}

	r.logger.Debug(msg, logAttrRef, ref, logAttrAttempts, attempts)
}

func (r *Releaser) recordPending() {
	if r.metrics != nil {
		r.metrics.RecordValue(metricPendingReleases, float64(len(r.queue)), nil)
	}
}

func (r *Releaser) countRelease(status string) {
	if r.metrics != nil {
		r.metrics.IncrementCounter(metricReleasesTotal, map[string]string{metricLabelStatus: status})
	}
}

func isTransient(err error) bool {
	return !errors.Is(err, ErrBlobNotFound) && !errors.Is(err, ErrInvalidRef) &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

var _ shell.BlobReleaser = (*Releaser)(nil)

package blobstore_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/app/blobstore"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	. "github.com/AntonStoeckl/library-lending-go/testutil/helper" //nolint:revive
)

func Test_Releaser_DeletesReleasedImages(t *testing.T) {
	// setup
	store := givenFileStore(t)
	releaser := blobstore.NewReleaser(store, blobstore.WithWorkers(2))
	stop := runReleaser(t, releaser)

	// arrange
	ref, err := store.Save(context.Background(), strings.NewReader(pngHeader+"img"), "cover.png", 1024)
	require.NoError(t, err)

	// act
	releaser.Release(ref)

	// assert
	assert.Eventually(t, func() bool {
		_, openErr := store.Open(ref)
		return errors.Is(openErr, blobstore.ErrBlobNotFound)
	}, time.Second, 5*time.Millisecond)

	stop()
}

func Test_Releaser_RetriesTransientFailures(t *testing.T) {
	// setup
	deleter := &flakyDeleter{failures: 2}
	metrics := NewMetricsCollectorSpy(true)
	releaser := blobstore.NewReleaser(
		deleter,
		blobstore.WithRetryOptions(shell.WithMaxAttempts(4), shell.WithBaseDelay(time.Millisecond)),
		blobstore.WithReleaserMetrics(metrics),
	)
	stop := runReleaser(t, releaser)

	// act
	releaser.Release("0190f7f2-8f3a-7c3e-9b9b-3b5a2c1d4e5f.png")

	// assert
	assert.Eventually(t, func() bool {
		return metrics.HasCounterRecordForMetric("blobstore_releases_total").WithStatus("deleted").Assert()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, deleter.Calls())

	stop()
}

func Test_Releaser_DoesNotRetryMissingImages(t *testing.T) {
	// setup
	deleter := &flakyDeleter{err: blobstore.ErrBlobNotFound}
	metrics := NewMetricsCollectorSpy(true)
	releaser := blobstore.NewReleaser(deleter, blobstore.WithReleaserMetrics(metrics))
	stop := runReleaser(t, releaser)

	// act
	releaser.Release("0190f7f2-8f3a-7c3e-9b9b-3b5a2c1d4e5f.png")

	// assert
	assert.Eventually(t, func() bool {
		return metrics.HasCounterRecordForMetric("blobstore_releases_total").WithStatus("already_gone").Assert()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, deleter.Calls())

	stop()
}

func Test_Releaser_Release_NeverBlocks_DropsWhenFull(t *testing.T) {
	// setup
	logHandler := NewLogHandlerSpy(false)
	releaser := blobstore.NewReleaser(
		&flakyDeleter{},
		blobstore.WithQueueSize(1),
		blobstore.WithReleaserLogger(slog.New(logHandler)),
	)

	// act (no Run, so nothing drains the queue)
	done := make(chan struct{})
	go func() {
		releaser.Release("0190f7f2-8f3a-7c3e-9b9b-3b5a2c1d4e5f.png")
		releaser.Release("0190f7f2-8f3a-7c3e-9b9b-3b5a2c1d4e60.png")
		close(done)
	}()

	// assert
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Release blocked on a full queue")
	}

	assert.True(t, logHandler.HasWarnLogWithMessage("blobstore: release queue full, image is leaked").
		WithAttrValue("ref", "0190f7f2-8f3a-7c3e-9b9b-3b5a2c1d4e60.png").
		Assert())
}

func Test_Releaser_Run_DrainsQueueOnShutdown(t *testing.T) {
	// setup
	deleter := &flakyDeleter{}
	releaser := blobstore.NewReleaser(deleter)

	// arrange
	releaser.Release("0190f7f2-8f3a-7c3e-9b9b-3b5a2c1d4e5f.png")
	releaser.Release("0190f7f2-8f3a-7c3e-9b9b-3b5a2c1d4e60.png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	err := releaser.Run(ctx)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 2, deleter.Calls())
}

func runReleaser(t *testing.T, releaser *blobstore.Releaser) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		_ = releaser.Run(ctx)
		close(done)
	}()

	var once sync.Once

	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}

	t.Cleanup(stop)

	return stop
}

type flakyDeleter struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
}

func (d *flakyDeleter) Delete(string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++

	if d.err != nil {
		return d.err
	}

	if d.calls <= d.failures {
		return errors.New("resource temporarily unavailable")
	}

	return nil
}

func (d *flakyDeleter) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.calls
}

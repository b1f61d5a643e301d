package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxsyncpro/taxsync/internal/logger"
)

func TestImportQueueRunsEveryJob(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	q := NewImportQueue(func(_ context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job.Path)
		mu.Unlock()
		if job.Path == "bad.csv" {
			return errors.New("boom")
		}
		return nil
	}, logger.Discard(), WithWorkers(3), WithQueueSize(1))

	ctx := context.Background()
	for _, p := range []string{"a.csv", "b.csv", "bad.csv", "c.xlsx"} {
		require.NoError(t, q.Enqueue(ctx, Job{Path: p}))
	}
	q.Shutdown(ctx)

	assert.ElementsMatch(t, []string{"a.csv", "b.csv", "bad.csv", "c.xlsx"}, seen)
	assert.ErrorIs(t, q.Enqueue(ctx, Job{Path: "late.csv"}), ErrQueueClosed)
}

func TestImportQueueAppliesTimeout(t *testing.T) {
	var timedOut atomic.Bool
	q := NewImportQueue(func(ctx context.Context, _ Job) error {
		<-ctx.Done()
		timedOut.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	}, logger.Discard(), WithWorkers(1), WithProcessTimeout(10*time.Millisecond))

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "slow.csv"}))
	q.Shutdown(context.Background())
	assert.True(t, timedOut.Load())
}

func TestEnqueueHonoursContextWhenFull(t *testing.T) {
	release := make(chan struct{})
	q := NewImportQueue(func(context.Context, Job) error {
		<-release
		return nil
	}, logger.Discard(), WithWorkers(1), WithQueueSize(1))

	bg := context.Background()
	require.NoError(t, q.Enqueue(bg, Job{Path: "1.csv"}))

	// The worker may or may not have taken the first job yet; fill both
	// the worker and the buffer before testing the blocked send.
	ctx, cancel := context.WithTimeout(bg, 50*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(ctx, Job{Path: "more.csv"})
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	q.Shutdown(bg)
}

package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Varun5711/shortqr/internal/logger"
)

func TestRunnerRunsTasks(t *testing.T) {
	r := NewRunner(4, time.Second, logger.NewNop())

	var n atomic.Int32
	for i := 0; i < 4; i++ {
		ok := r.Go("inc", func(ctx context.Context) error {
			n.Add(1)
			return nil
		})
		assert.True(t, ok)
	}

	require.NoError(t, r.Wait(context.Background()))
	assert.Equal(t, int32(4), n.Load())
	assert.Equal(t, int64(0), r.Dropped())
}

func TestRunnerDropsWhenSaturated(t *testing.T) {
	r := NewRunner(1, time.Second, logger.NewNop())

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, r.Go("blocker", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	assert.False(t, r.Go("extra", func(ctx context.Context) error { return nil }))
	assert.Equal(t, int64(1), r.Dropped())

	close(release)
	require.NoError(t, r.Wait(context.Background()))

	assert.True(t, r.Go("after", func(ctx context.Context) error { return nil }))
	require.NoError(t, r.Wait(context.Background()))
}

func TestRunnerCountsFailuresAndPanics(t *testing.T) {
	r := NewRunner(2, time.Second, logger.NewNop())

	r.Go("fails", func(ctx context.Context) error { return errors.New("db down") })
	r.Go("panics", func(ctx context.Context) error { panic("nil map") })

	require.NoError(t, r.Wait(context.Background()))
	assert.Equal(t, int64(2), r.Failed())
}

func TestRunnerTaskTimeout(t *testing.T) {
	r := NewRunner(1, 20*time.Millisecond, logger.NewNop())

	var sawDeadline atomic.Bool
	r.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		sawDeadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	})

	require.NoError(t, r.Wait(context.Background()))
	assert.True(t, sawDeadline.Load())
}

func TestRunnerWaitRespectsContext(t *testing.T) {
	r := NewRunner(1, time.Minute, logger.NewNop())

	release := make(chan struct{})
	defer close(release)
	r.Go("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

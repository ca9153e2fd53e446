package workflow

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerExecutesSubmittedFlows(t *testing.T) {
	require := require.New(t)

	runner := NewRunner(nil, nil)
	worker, err := NewWorker(runner, 4, 2, nil)
	require.NoError(err)

	require.NoError(worker.Start(context.Background()))
	defer worker.Stop()

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		flow := NewFlow("submitted",
			Task{Name: "tick", Run: func(ctx context.Context) (any, error) {
				ran.Add(1)
				return nil, nil
			}},
		)
		require.NoError(worker.Submit(flow))
	}

	require.Eventually(func() bool { return ran.Load() == 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerQueueFull(t *testing.T) {
	require := require.New(t)

	runner := NewRunner(nil, nil)
	worker, err := NewWorker(runner, 1, 1, nil)
	require.NoError(err)

	require.NoError(worker.Start(context.Background()))
	defer worker.Stop()

	release := make(chan struct{})
	blocking := NewFlow("blocking",
		Task{Name: "hold", Run: func(ctx context.Context) (any, error) {
			<-release
			return nil, nil
		}},
	)

	// First flow occupies the single worker, second fills the queue.
	require.NoError(worker.Submit(blocking))
	require.Eventually(func() bool {
		return worker.Submit(NewFlow("filler")) == nil
	}, time.Second, 5*time.Millisecond)

	require.ErrorIs(worker.Submit(NewFlow("overflow")), ErrQueueFull)

	close(release)
}

func TestWorkerSubmitAfterStop(t *testing.T) {
	require := require.New(t)

	runner := NewRunner(nil, nil)
	worker, err := NewWorker(runner, 1, 1, nil)
	require.NoError(err)

	require.ErrorIs(worker.Submit(NewFlow("early")), ErrWorkerStopped)

	require.NoError(worker.Start(context.Background()))
	worker.Stop()

	require.ErrorIs(worker.Submit(NewFlow("late")), ErrWorkerStopped)
}

func TestNewWorkerValidation(t *testing.T) {
	runner := NewRunner(nil, nil)

	t.Run("nil runner", func(t *testing.T) {
		_, err := NewWorker(nil, 1, 1, nil)
		require.Error(t, err)
	})

	t.Run("queue size", func(t *testing.T) {
		_, err := NewWorker(runner, 0, 1, nil)
		require.Error(t, err)
	})

	t.Run("concurrency", func(t *testing.T) {
		_, err := NewWorker(runner, 1, 0, nil)
		require.Error(t, err)
	})
}

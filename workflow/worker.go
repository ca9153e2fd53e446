package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acclab/go-sdl-utils/logger"
)

var (
	// ErrQueueFull indicates that the worker queue cannot accept another flow.
	ErrQueueFull = errors.New("worker queue full")

	// ErrWorkerStopped indicates that the worker is not accepting flows.
	ErrWorkerStopped = errors.New("worker stopped")
)

// Worker polls a local work queue and executes submitted flows, playing the
// role a work-pool worker plays against an orchestration server.
//
// Flows are executed with the worker's Runner, so task retries, result
// caching, and run state persistence all apply.
type Worker struct {
	runner      *Runner
	queue       chan *Flow
	concurrency int
	heartbeat   time.Duration
	mgr         *TaskManager
	logger      logger.Logger
}

// NewWorker creates a worker that executes flows with runner.
//
// queueSize bounds the number of flows waiting to execute; concurrency sets
// how many flows may execute at once.
func NewWorker(runner *Runner, queueSize, concurrency int, l logger.Logger) (*Worker, error) {
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	if queueSize < 1 {
		return nil, errors.New("queue size must be at least 1")
	}
	if concurrency < 1 {
		return nil, errors.New("concurrency must be at least 1")
	}
	if l == nil {
		l = logger.GetLogger()
	}

	return &Worker{
		runner:      runner,
		queue:       make(chan *Flow, queueSize),
		concurrency: concurrency,
		heartbeat:   30 * time.Second,
		logger:      l,
	}, nil
}

// Start launches the worker goroutines. It returns immediately; flows
// submitted afterwards are picked up as capacity allows.
func (w *Worker) Start(ctx context.Context) error {
	if w.mgr != nil {
		return errors.New("worker already started")
	}

	w.mgr = NewTaskManager(ctx, w.logger)

	for i := 0; i < w.concurrency; i++ {
		name := fmt.Sprintf("flow-worker-%d", i)
		if err := w.mgr.Start(name, w.pollOnce); err != nil {
			return err
		}
	}

	_, err := w.mgr.StartInterval("worker-heartbeat", func() bool {
		w.logger.Debug("worker heartbeat", "queued", len(w.queue), "tasks", w.mgr.TaskCount())
		return true
	}, w.heartbeat, false)

	return err
}

// Submit queues a flow for execution without blocking.
func (w *Worker) Submit(flow *Flow) error {
	if w.mgr == nil {
		return ErrWorkerStopped
	}

	select {
	case <-w.mgr.Context().Done():
		return ErrWorkerStopped
	default:
	}

	select {
	case w.queue <- flow:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop signals all worker goroutines to terminate and waits for the flows
// currently executing to finish.
func (w *Worker) Stop() {
	if w.mgr == nil {
		return
	}

	w.mgr.Stop()
	w.mgr.Wait()
}

// pollOnce waits for the next queued flow and executes it.
func (w *Worker) pollOnce() bool {
	select {
	case <-w.mgr.Context().Done():
		return false
	case flow := <-w.queue:
		// The run's own context is the manager context, so stopping the
		// worker interrupts retry waits but lets the current attempt finish.
		if _, err := w.runner.Run(w.mgr.Context(), flow); err != nil {
			w.logger.Error("queued flow failed", "flow", flow.Name(), "error", err)
		}

		return true
	}
}

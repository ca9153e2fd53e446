package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/acclab/go-sdl-utils/logger"
)

// TaskFunc represents a function that performs work inside a goroutine
// managed by the TaskManager. It should return true to keep running, or
// false to stop the goroutine.
type TaskFunc func() bool

// ErrTaskManagerStopped indicates that the task manager has been stopped and
// cannot start new goroutines.
var ErrTaskManagerStopped = errors.New("task manager already stopped")

// TaskManager manages the lifecycle of worker goroutines.
//
// It provides a structured way to start, stop, and wait for goroutines,
// ensuring proper cancellation and panic recovery. When the managing context
// is canceled, all running goroutines are signaled to stop; Wait blocks until
// they have all terminated.
type TaskManager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
}

// NewTaskManager creates a TaskManager with ctx as the parent context.
func NewTaskManager(ctx context.Context, l logger.Logger) *TaskManager {
	if l == nil {
		l = logger.GetLogger()
	}

	mgr := &TaskManager{logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Start starts a new goroutine that invokes taskFunc in a loop until the
// function returns false or the manager is stopped.
func (mgr *TaskManager) Start(name string, taskFunc TaskFunc) error {
	select {
	case <-mgr.ctx.Done():
		return ErrTaskManagerStopped
	default:
	}

	mgr.logger.Debug("start task", "name", name)

	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			mgr.count.Add(-1)
			mgr.wg.Done()
			mgr.logger.Debug(fmt.Sprintf("%s task terminated", name), "task_count", mgr.TaskCount())
		}()

		for {
			select {
			case <-mgr.ctx.Done():
				return
			default:
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	}()

	return nil
}

// StartInterval starts a new goroutine that executes taskFunc at the given
// interval. If runNow is true, taskFunc is executed once before the first
// tick. The returned ticker stops when the goroutine exits.
func (mgr *TaskManager) StartInterval(name string, taskFunc TaskFunc, interval time.Duration, runNow bool) (*time.Ticker, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid interval: %v", interval)
	}

	select {
	case <-mgr.ctx.Done():
		return nil, ErrTaskManagerStopped
	default:
	}

	ticker := time.NewTicker(interval)

	if runNow && !mgr.callWithRecover(name, taskFunc) {
		ticker.Stop()
		return ticker, nil
	}

	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			ticker.Stop()
			mgr.count.Add(-1)
			mgr.wg.Done()
			mgr.logger.Debug(fmt.Sprintf("%s interval task terminated", name), "task_count", mgr.TaskCount())
		}()

		for {
			select {
			case <-mgr.ctx.Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	}()

	return ticker, nil
}

// Context returns the context that signals managed goroutines to stop.
func (mgr *TaskManager) Context() context.Context { return mgr.ctx }

// Stop signals all running goroutines to terminate.
func (mgr *TaskManager) Stop() {
	mgr.cancel()
}

// Wait blocks until all goroutines have terminated.
func (mgr *TaskManager) Wait() {
	mgr.wg.Wait()
}

// TaskCount returns the number of currently running goroutines.
func (mgr *TaskManager) TaskCount() int {
	return int(mgr.count.Load())
}

// callWithRecover calls taskFunc with panic protection. A panicking task is
// treated as requesting termination.
func (mgr *TaskManager) callWithRecover(name string, taskFunc TaskFunc) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			keep = false
		}
	}()

	return taskFunc()
}

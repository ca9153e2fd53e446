// Package workflow provides lightweight orchestration glue for SDL devices:
// named flows of retryable tasks, cached task results, persisted run state,
// and a polling worker.
//
// It mirrors the role an orchestration server plays for full-size
// deployments, scaled down to what a resource-constrained device can host.
// Retry policy lives here, at the task level, never inside the operations a
// task wraps (the file transfer session in particular performs no retries of
// its own).
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/acclab/go-sdl-utils/internal/pool"
	"github.com/acclab/go-sdl-utils/logger"
)

// RunStatus is the lifecycle status of one flow run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Task is one retryable unit of work inside a flow.
type Task struct {
	// Name identifies the task within its flow.
	Name string

	// Run performs the work. The returned value is recorded as the task
	// result and, when CacheKey is set, reused on subsequent runs.
	Run func(ctx context.Context) (any, error)

	// Retries is the number of additional attempts after the first failure.
	Retries int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration

	// CacheKey, when non-empty, keys the task result in the runner cache.
	// A cached result short-circuits execution on later runs.
	CacheKey string
}

// Flow is a named, ordered sequence of tasks.
type Flow struct {
	name  string
	tasks []Task
}

// NewFlow creates a flow with the given name and tasks.
func NewFlow(name string, tasks ...Task) *Flow {
	return &Flow{name: name, tasks: tasks}
}

// Name returns the flow name.
func (f *Flow) Name() string { return f.name }

// AddTask appends a task to the flow.
func (f *Flow) AddTask(task Task) *Flow {
	f.tasks = append(f.tasks, task)
	return f
}

// RunState records the outcome of one flow run. It is updated while the run
// progresses and becomes immutable once the status is terminal.
type RunState struct {
	ID         string
	Flow       string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

// Runner executes flows, tracks their run states in memory, optionally
// persists them through a RunStore, and caches task results by cache key.
type Runner struct {
	runs   *xsync.MapOf[string, *RunState]
	cache  *xsync.MapOf[string, any]
	store  RunStore
	logger logger.Logger
}

// NewRunner creates a flow runner. store may be nil, in which case run
// states live only in memory.
func NewRunner(store RunStore, l logger.Logger) *Runner {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Runner{
		runs:   xsync.NewMapOf[string, *RunState](),
		cache:  xsync.NewMapOf[string, any](),
		store:  store,
		logger: l,
	}
}

// Run executes every task of flow in order and returns the terminal run
// state. The first task failure (after its retries are exhausted) fails the
// whole run; remaining tasks are not executed.
func (r *Runner) Run(ctx context.Context, flow *Flow) (*RunState, error) {
	id := uuid.Must(uuid.NewV4()).String()

	state := &RunState{
		ID:        id,
		Flow:      flow.Name(),
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	r.runs.Store(id, state)
	r.saveState(ctx, state)

	log := r.logger.With("flow", flow.Name(), "run_id", id)
	log.Info("flow run started", "tasks", len(flow.tasks))

	for _, task := range flow.tasks {
		result, err := r.runTask(ctx, log, task)
		if err != nil {
			state.Status = StatusFailed
			state.Error = fmt.Sprintf("task %s: %v", task.Name, err)
			state.FinishedAt = time.Now().UTC()
			r.saveState(ctx, state)

			log.Error("flow run failed", "task", task.Name, "error", err)

			return state, fmt.Errorf("flow %s task %s: %w", flow.Name(), task.Name, err)
		}

		if task.CacheKey != "" {
			r.cache.Store(task.CacheKey, result)
		}
	}

	state.Status = StatusCompleted
	state.FinishedAt = time.Now().UTC()
	r.saveState(ctx, state)

	log.Info("flow run completed")

	return state, nil
}

// RunState returns the in-memory state of a run by ID.
func (r *Runner) RunState(id string) (*RunState, bool) {
	return r.runs.Load(id)
}

// CachedResult returns a cached task result by cache key.
func (r *Runner) CachedResult(key string) (any, bool) {
	return r.cache.Load(key)
}

// runTask executes one task, honoring its cache key and retry policy.
func (r *Runner) runTask(ctx context.Context, log logger.Logger, task Task) (any, error) {
	if task.CacheKey != "" {
		if cached, ok := r.cache.Load(task.CacheKey); ok {
			log.Debug("task result served from cache", "task", task.Name, "cache_key", task.CacheKey)
			return cached, nil
		}
	}

	attempts := task.Retries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := callTask(ctx, task)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		log.Warn("task attempt failed, retrying",
			"task", task.Name, "attempt", attempt, "max_attempts", attempts,
			"retry_delay", task.RetryDelay, "error", err)

		if task.RetryDelay > 0 {
			timer := pool.GetTimer(task.RetryDelay)
			select {
			case <-ctx.Done():
				pool.PutTimer(timer)
				return nil, ctx.Err()
			case <-timer.C:
			}
			pool.PutTimer(timer)
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// callTask invokes the task body with panic protection, so a panicking task
// fails its run instead of tearing down the worker.
func callTask(ctx context.Context, task Task) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, rec)
		}
	}()

	return task.Run(ctx)
}

func (r *Runner) saveState(ctx context.Context, state *RunState) {
	if r.store == nil {
		return
	}

	if err := r.store.Save(ctx, state); err != nil {
		r.logger.Error("failed to persist run state", "run_id", state.ID, "error", err)
	}
}

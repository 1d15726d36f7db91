package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/condenser-dev/condenser/internal/progress"
)

// Outcome is what a workflow hands back to the runner.
type Outcome struct {
	// Result is the final payload shown to the user.
	Result string
	// Errors lists non-fatal problems encountered along the way (e.g.
	// individual files that could not be summarized).
	Errors []string
	// Failed marks the task as errored even though the workflow returned
	// normally (e.g. nothing could be processed at all).
	Failed bool
}

// WorkFunc runs one workflow for the given task ID and reports its outcome.
// A returned error is a fatal failure: the engine propagates it out of the
// flow unmodified and the runner records it on the task.
type WorkFunc func(ctx context.Context, taskID string) (Outcome, error)

// Runner executes workflows against the task store. The orchestration
// engine never spawns goroutines of its own; running a whole workflow in
// the background to keep callers responsive happens here.
type Runner struct {
	store  Store
	pub    progress.Publisher
	logger *slog.Logger
	ttl    time.Duration

	wg sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTTL sets how long finished task records live.
func WithTTL(ttl time.Duration) RunnerOption {
	return func(r *Runner) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewRunner creates a Runner recording into store and publishing progress
// to pub (pass progress.Nop{} to disable).
func NewRunner(store Store, pub progress.Publisher, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:  store,
		pub:    pub,
		logger: slog.Default(),
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches work on a background goroutine and returns the new task's
// ID immediately. The record is created in the processing state before
// Start returns, so a Get right after always finds it.
func (r *Runner) Start(ctx context.Context, kind Kind, work WorkFunc) (string, error) {
	id := uuid.New().String()
	if err := r.store.Create(NewRecord(id, kind, r.ttl)); err != nil {
		return "", fmt.Errorf("create task record: %w", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(ctx, id, work)
	}()
	return id, nil
}

// RunSync executes work on the calling goroutine and returns the final
// record. Used by the CLI, which has nothing else to do meanwhile.
func (r *Runner) RunSync(ctx context.Context, kind Kind, work WorkFunc) (Record, error) {
	id := uuid.New().String()
	if err := r.store.Create(NewRecord(id, kind, r.ttl)); err != nil {
		return Record{}, fmt.Errorf("create task record: %w", err)
	}
	r.execute(ctx, id, work)
	return r.store.Get(id)
}

// Wait blocks until all background tasks finish. Used in shutdown paths
// and tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// execute runs the work and records its outcome. This is the top-level
// fatal-error handler: whatever escapes the workflow (including panics)
// becomes a user-visible error state rather than a crash.
func (r *Runner) execute(ctx context.Context, id string, work WorkFunc) {
	outcome, err := r.runGuarded(ctx, id, work)

	rec, getErr := r.store.Get(id)
	if getErr != nil {
		r.logger.Error("task record vanished mid-run",
			slog.String("task_id", id),
			slog.String("error", getErr.Error()))
		return
	}

	switch {
	case err != nil:
		rec.State = StateError
		rec.Errors = append(rec.Errors, err.Error())
		r.pub.Publish(id, progress.Update{Stage: "failed", Message: "Processing failed: " + err.Error()})
		r.logger.Error("task failed",
			slog.String("task_id", id),
			slog.String("error", err.Error()))
	case outcome.Failed:
		rec.State = StateError
		rec.Result = outcome.Result
		rec.Errors = append(rec.Errors, outcome.Errors...)
		r.pub.Publish(id, progress.Update{Stage: "failed", Message: "Processing failed"})
	default:
		rec.State = StateCompleted
		rec.Result = outcome.Result
		rec.Errors = append(rec.Errors, outcome.Errors...)
		r.pub.Publish(id, progress.Update{Stage: "done", Message: "Processing complete"})
	}

	if updateErr := r.store.Update(rec); updateErr != nil {
		r.logger.Error("failed to record task outcome",
			slog.String("task_id", id),
			slog.String("error", updateErr.Error()))
	}
	if bus, ok := r.pub.(*progress.Bus); ok {
		bus.Complete(id)
	}
}

// runGuarded converts panics from the workflow into errors.
func (r *Runner) runGuarded(ctx context.Context, id string, work WorkFunc) (outcome Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("workflow panicked: %v", rec)
		}
	}()
	return work(ctx, id)
}

package flow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context provides execution context to step lifecycle hooks.
// It extends context.Context with run metadata and services.
//
// Context is immutable after creation. The executor derives a context per
// step with the bound parameters and an enriched logger, and per retry
// attempt with the attempt index.
//
// Application services (LLM clients, progress publishers, stores) are
// injected through the standard context.WithValue pattern on the wrapped
// context.Context and read back by the concrete steps.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and step
	// context. Never returns nil; defaults to slog.Default().
	Logger() *slog.Logger

	// RunID returns the unique identifier for this run.
	// Auto-generated if not configured.
	RunID() string

	// StepID returns the identifier of the step currently executing.
	// Empty before traversal enters the first step.
	StepID() string

	// Attempt returns the zero-based retry attempt index. It is always in
	// [0, maxRetries) while an Exec or ExecFallback hook is running; the
	// fallback observes the final attempt's index.
	Attempt() int

	// Params returns the parameters bound to the current step for this
	// traversal pass. Never nil.
	Params() Params
}

type execContext struct {
	context.Context

	logger  *slog.Logger
	runID   string
	stepID  string
	attempt int
	params  Params
}

func (c *execContext) Logger() *slog.Logger { return c.logger }
func (c *execContext) RunID() string        { return c.runID }
func (c *execContext) StepID() string       { return c.stepID }
func (c *execContext) Attempt() int         { return c.attempt }

func (c *execContext) Params() Params {
	if c.params == nil {
		return Params{}
	}
	return c.params
}

// ContextOption configures a Context.
type ContextOption func(*execContext)

// WithLogger sets the logger for the context. The executor enriches it with
// run_id, step_id, and attempt fields during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *execContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRunID sets the run identifier. If not set, a UUID is generated.
func WithRunID(id string) ContextOption {
	return func(c *execContext) {
		if id != "" {
			c.runID = id
		}
	}
}

// NewContext creates an execution context from a standard context.
//
//	ctx := flow.NewContext(context.Background(),
//	    flow.WithLogger(logger),
//	    flow.WithRunID("task-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &execContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// ensure converts any Context into the internal execContext, wrapping
// foreign implementations so the executor can derive per-step contexts.
func ensure(ctx Context) *execContext {
	if ec, ok := ctx.(*execContext); ok {
		return ec
	}
	return &execContext{
		Context: ctx,
		logger:  ctx.Logger(),
		runID:   ctx.RunID(),
		stepID:  ctx.StepID(),
		attempt: ctx.Attempt(),
		params:  ctx.Params(),
	}
}

// withStep returns a derived context scoped to one step execution, with the
// bound parameters and a logger enriched for that step.
func (c *execContext) withStep(stepID string, params Params) *execContext {
	return &execContext{
		Context: c.Context,
		logger:  c.logger.With(slog.String("run_id", c.runID), slog.String("step_id", stepID)),
		runID:   c.runID,
		stepID:  stepID,
		attempt: 0,
		params:  params,
	}
}

// withAttempt returns a derived context carrying the retry attempt index.
func (c *execContext) withAttempt(attempt int) *execContext {
	cp := *c
	cp.attempt = attempt
	return &cp
}

// withInner swaps the wrapped context.Context, preserving flow metadata.
// Used by the parallel batch executor to propagate group cancellation.
func (c *execContext) withInner(inner context.Context) *execContext {
	cp := *c
	cp.Context = inner
	return &cp
}

package flow

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/condenser-dev/condenser/pkg/flow/observability"
)

// Flow orchestrates a topology of steps. Starting from the designated start
// step, it executes each step's full lifecycle and follows the successor
// registered under the returned action label until no transition matches.
//
// A Flow implements Node, so it can be mounted as a step inside a parent
// flow. Calling Exec directly on a Flow is an interface violation and
// returns ErrFlowExec.
//
// Flow is immutable after construction and safe for concurrent Run calls,
// provided concurrent runs do not share one mutable state value.
type Flow[S any] struct {
	id     string
	start  *Step[S]
	params Params

	// Bracket hooks around the traversal. prep runs once before the first
	// step and may seed the shared state; post runs once after the
	// traversal with prep's result (a flow has no exec result of its own)
	// and its action routes the parent flow when nested.
	prep func(ctx Context, shared S) (any, error)
	post func(ctx Context, shared S, prepRes any) (Action, error)
}

// FlowOption configures a Flow at construction time.
type FlowOption[S any] func(*Flow[S])

// WithFlowParams sets the flow's base parameters, bound to every step of
// each traversal (overlaying the step's own defaults).
func WithFlowParams[S any](p Params) FlowOption[S] {
	return func(f *Flow[S]) {
		f.params = p.Clone()
	}
}

// WithFlowPrep sets a hook run once before the traversal starts.
func WithFlowPrep[S any](fn func(ctx Context, shared S) (any, error)) FlowOption[S] {
	return func(f *Flow[S]) {
		f.prep = fn
	}
}

// WithFlowPost sets a hook run once after the traversal ends. Its action
// return value is what the flow reports to an enclosing parent flow;
// without the hook a flow reports DefaultAction.
func WithFlowPost[S any](fn func(ctx Context, shared S, prepRes any) (Action, error)) FlowOption[S] {
	return func(f *Flow[S]) {
		f.post = fn
	}
}

// NewFlow creates a flow starting at start. Panics on an empty id or nil
// start step.
func NewFlow[S any](id string, start *Step[S], opts ...FlowOption[S]) *Flow[S] {
	if id == "" {
		panic("flow: flow ID cannot be empty")
	}
	if start == nil {
		panic("flow: start step cannot be nil")
	}
	f := &Flow[S]{id: id, start: start}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ID returns the flow identifier.
func (f *Flow[S]) ID() string { return f.id }

// Step mounts this flow as a step of a parent flow.
func (f *Flow[S]) Step(id string, opts ...StepOption[S]) *Step[S] {
	return NewStep(id, f, opts...)
}

// Run executes the flow against shared, which every visited step reads and
// writes. The shared state is caller-owned: the engine never persists it
// and never synchronizes access to it.
//
// A step failure (after its retries and fallback are exhausted) aborts the
// traversal and propagates; the flow neither catches nor retries at its own
// level.
func (f *Flow[S]) Run(ctx Context, shared S, opts ...RunOption) (action Action, runErr error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	ec := ensure(ctx)
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	observability.LogRunStart(ec.Logger(), f.id, ec.RunID())

	runCtx := ec
	if cfg.tracingEnabled {
		var span trace.Span
		var inner context.Context
		inner, span = cfg.spans.StartRunSpan(ec, f.id, ec.RunID())
		runCtx = ec.withInner(inner)
		defer func() {
			cfg.spans.EndSpanWithError(span, runErr)
		}()
	}

	var steps int
	action, steps, runErr = f.orchestrate(runCtx, shared, f.params, &cfg)

	duration := time.Since(start)
	cfg.metrics.RecordFlowRun(ec, f.id, runErr == nil, duration)
	if runErr != nil {
		observability.LogRunError(ec.Logger(), f.id, ec.RunID(), runErr, duration, steps)
		return "", runErr
	}
	observability.LogRunComplete(ec.Logger(), f.id, ec.RunID(), duration, steps)
	return action, nil
}

// runNested runs this flow as a step of a parent traversal, overlaying the
// parent's bound parameters onto the flow's own.
func (f *Flow[S]) runNested(ec *execContext, shared S, parentParams Params, cfg *runConfig) (Action, error) {
	action, _, err := f.orchestrate(ec, shared, f.params.Merge(parentParams), cfg)
	return action, err
}

// orchestrate drives one traversal: bind parameters, run the current step,
// follow the transition for its action, repeat until no transition matches.
// Returns the flow's reported action and the number of steps visited.
func (f *Flow[S]) orchestrate(ec *execContext, shared S, params Params, cfg *runConfig) (Action, int, error) {
	var prepRes any
	if f.prep != nil {
		var err error
		prepRes, err = f.prep(ec.withStep(f.id, params), shared)
		if err != nil {
			return "", 0, stepError(f.id, "prep", err)
		}
	}

	current := f.start
	steps := 0
	for current != nil {
		steps++
		if steps > cfg.maxSteps {
			return "", steps, &MaxStepsError{Max: cfg.maxSteps, LastStepID: current.id}
		}

		select {
		case <-ec.Done():
			return "", steps, &CancellationError{StepID: current.id, Cause: ec.Err()}
		default:
		}

		bound := current.params.Merge(params)

		observability.LogStepStart(ec.Logger(), current.id)
		stepTracingCtx := ec
		var stepSpan trace.Span
		if cfg.tracingEnabled {
			var inner context.Context
			inner, stepSpan = cfg.spans.StartStepSpan(ec, current.id)
			stepTracingCtx = ec.withInner(inner)
		}

		stepStart := time.Now()
		action, err := runStep(stepTracingCtx, current, shared, bound, cfg)
		stepDuration := time.Since(stepStart)

		cfg.metrics.RecordStepExecution(stepTracingCtx, current.id, stepDuration, err)
		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(stepSpan, err)
		}
		if err != nil {
			observability.LogStepError(ec.Logger(), current.id, err)
			return "", steps, err
		}
		observability.LogStepComplete(ec.Logger(), current.id, stepDuration, string(action))

		next, ok := current.successor(action)
		if !ok {
			if len(current.successors) > 0 {
				ec.Logger().Warn("no matching transition; traversal ends",
					slog.String("step_id", current.id),
					slog.String("action", string(action)),
				)
			}
			current = nil
			continue
		}
		current = next
	}

	if f.post != nil {
		action, err := f.post(ec.withStep(f.id, params), shared, prepRes)
		if err != nil {
			return "", steps, stepError(f.id, "post", err)
		}
		if action == "" {
			action = DefaultAction
		}
		return action, steps, nil
	}
	return DefaultAction, steps, nil
}

// Prep implements Node for nesting. It is not consulted by the executor
// (the flow's own bracket hooks run inside the traversal) but keeps a Flow
// usable anywhere a Node is accepted.
func (f *Flow[S]) Prep(ctx Context, shared S) (any, error) {
	return nil, nil
}

// Exec implements Node. A flow has no single-step execute phase; calling
// this is a construction mistake and always fails.
func (f *Flow[S]) Exec(ctx Context, item any) (any, error) {
	return nil, ErrFlowExec
}

// Post implements Node for nesting.
func (f *Flow[S]) Post(ctx Context, shared S, prepRes, execRes any) (Action, error) {
	return DefaultAction, nil
}

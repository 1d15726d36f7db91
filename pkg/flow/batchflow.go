package flow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/condenser-dev/condenser/pkg/flow/observability"
)

// ParamSetsFunc produces the parameter sets a BatchFlow iterates over. A
// nil return means no runs.
type ParamSetsFunc[S any] func(ctx Context, shared S) ([]Params, error)

// BatchFlow runs its inner topology once per parameter set, all runs
// sharing the same state value: mutations from run 1 are visible to runs 2
// and 3. Each run binds the flow's base parameters overlaid with that
// entry's set.
//
// In parallel mode all runs launch concurrently. The shared state then has
// no engine-side synchronization; concurrent steps must coordinate their
// own key namespaces or accept last-writer-wins races.
type BatchFlow[S any] struct {
	*Flow[S]
	paramSets ParamSetsFunc[S]
	parallel  bool

	// post runs once after every entry completes, receiving the parameter
	// set slice that drove the iteration.
	post func(ctx Context, shared S, sets []Params) (Action, error)
}

// BatchFlowOption configures a BatchFlow.
type BatchFlowOption[S any] func(*BatchFlow[S])

// WithParallelRuns launches all parameter-set traversals concurrently
// instead of sequentially. The first failing run cancels the others; the
// join waits for every launched run to settle.
func WithParallelRuns[S any]() BatchFlowOption[S] {
	return func(bf *BatchFlow[S]) {
		bf.parallel = true
	}
}

// WithBatchParams sets the batch flow's base parameters.
func WithBatchParams[S any](p Params) BatchFlowOption[S] {
	return func(bf *BatchFlow[S]) {
		bf.params = p.Clone()
	}
}

// WithBatchPost sets a hook run once after all entries complete.
func WithBatchPost[S any](fn func(ctx Context, shared S, sets []Params) (Action, error)) BatchFlowOption[S] {
	return func(bf *BatchFlow[S]) {
		bf.post = fn
	}
}

// NewBatchFlow creates a batch flow over the topology rooted at start,
// iterating the parameter sets produced by paramSets. Panics on a nil
// paramSets function.
func NewBatchFlow[S any](id string, start *Step[S], paramSets ParamSetsFunc[S], opts ...BatchFlowOption[S]) *BatchFlow[S] {
	if paramSets == nil {
		panic("flow: param sets function cannot be nil")
	}
	bf := &BatchFlow[S]{
		Flow:      NewFlow(id, start),
		paramSets: paramSets,
	}
	for _, opt := range opts {
		opt(bf)
	}
	return bf
}

// Step mounts this batch flow as a step of a parent flow. It shadows the
// embedded Flow's helper, which would mount only the inner topology and
// skip the per-parameter-set iteration.
func (bf *BatchFlow[S]) Step(id string, opts ...StepOption[S]) *Step[S] {
	return NewStep[S](id, bf, opts...)
}

// Run executes the inner topology once per parameter set.
func (bf *BatchFlow[S]) Run(ctx Context, shared S, opts ...RunOption) (action Action, runErr error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	ec := ensure(ctx)
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	observability.LogRunStart(ec.Logger(), bf.id, ec.RunID())

	runCtx := ec
	if cfg.tracingEnabled {
		var span trace.Span
		var inner context.Context
		inner, span = cfg.spans.StartRunSpan(ec, bf.id, ec.RunID())
		runCtx = ec.withInner(inner)
		defer func() {
			cfg.spans.EndSpanWithError(span, runErr)
		}()
	}

	action, runErr = bf.runAll(runCtx, shared, bf.params, &cfg)

	duration := time.Since(start)
	cfg.metrics.RecordFlowRun(ec, bf.id, runErr == nil, duration)
	if runErr != nil {
		observability.LogRunError(ec.Logger(), bf.id, ec.RunID(), runErr, duration, 0)
		return "", runErr
	}
	observability.LogRunComplete(ec.Logger(), bf.id, ec.RunID(), duration, 0)
	return action, nil
}

// runNested lets a BatchFlow mount as a step of a parent flow.
func (bf *BatchFlow[S]) runNested(ec *execContext, shared S, parentParams Params, cfg *runConfig) (Action, error) {
	return bf.runAll(ec, shared, bf.params.Merge(parentParams), cfg)
}

func (bf *BatchFlow[S]) runAll(ec *execContext, shared S, base Params, cfg *runConfig) (Action, error) {
	sets, err := bf.paramSets(ec.withStep(bf.id, base), shared)
	if err != nil {
		return "", stepError(bf.id, "prep", err)
	}

	if bf.parallel {
		g, gctx := errgroup.WithContext(ec)
		groupCtx := ec.withInner(gctx)
		for _, set := range sets {
			g.Go(func() error {
				_, _, err := bf.Flow.orchestrate(groupCtx, shared, base.Merge(set), cfg)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
	} else {
		for _, set := range sets {
			if _, _, err := bf.Flow.orchestrate(ec, shared, base.Merge(set), cfg); err != nil {
				return "", err
			}
		}
	}

	if bf.post != nil {
		action, err := bf.post(ec.withStep(bf.id, base), shared, sets)
		if err != nil {
			return "", stepError(bf.id, "post", err)
		}
		if action == "" {
			action = DefaultAction
		}
		return action, nil
	}
	return DefaultAction, nil
}

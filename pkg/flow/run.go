package flow

import (
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/condenser-dev/condenser/pkg/flow/observability"
)

// nested is implemented by Flow and BatchFlow so a step whose node is a
// flow runs the whole sub-traversal instead of the single-node lifecycle.
type nested[S any] interface {
	runNested(ec *execContext, shared S, parentParams Params, cfg *runConfig) (Action, error)
}

// runStep executes one step's full lifecycle with panic recovery:
// Prep -> Exec (with retry/batch policy) -> Post. params are the effective
// parameters bound for this execution.
func runStep[S any](ec *execContext, s *Step[S], shared S, params Params, cfg *runConfig) (action Action, err error) {
	stepCtx := ec.withStep(s.id, params)

	defer func() {
		if r := recover(); r != nil {
			action = ""
			err = &PanicError{
				StepID: s.id,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	// A flow mounted as a step runs its own traversal; its bracket hooks
	// play the role of Prep/Post and its returned action routes the parent.
	if sub, ok := s.node.(nested[S]); ok {
		return sub.runNested(ec, shared, params, cfg)
	}

	prepRes, err := s.node.Prep(stepCtx, shared)
	if err != nil {
		return "", stepError(s.id, "prep", err)
	}

	var execRes any
	if s.batch {
		items, ok := toItems(prepRes)
		if !ok {
			return "", &NodeError{StepID: s.id, Phase: "prep", Err: ErrBadBatchInput}
		}
		if s.parallel {
			execRes, err = execParallel(stepCtx, s, items, cfg)
		} else {
			execRes, err = execSequential(stepCtx, s, items, cfg)
		}
	} else {
		execRes, err = execWithRetry(stepCtx, s, prepRes)
	}
	if err != nil {
		return "", err
	}

	action, err = s.node.Post(stepCtx, shared, prepRes, execRes)
	if err != nil {
		return "", stepError(s.id, "post", err)
	}
	if action == "" {
		action = DefaultAction
	}
	return action, nil
}

// execWithRetry drives the retry state machine for a single item:
// attempts 0..maxRetries-1, sleeping wait between attempts, handing the
// final attempt's error to the fallback. An error from the fallback itself
// is not retried.
func execWithRetry[S any](ec *execContext, s *Step[S], item any) (any, error) {
	for attempt := 0; ; attempt++ {
		attemptCtx := ec.withAttempt(attempt)

		res, err := s.node.Exec(attemptCtx, item)
		if err == nil {
			return res, nil
		}

		if attempt == s.maxRetries-1 {
			fb, ok := s.node.(FallbackNode[S])
			if !ok {
				return nil, stepError(s.id, "exec", err)
			}
			res, fbErr := fb.ExecFallback(attemptCtx, item, err)
			if fbErr != nil {
				return nil, stepError(s.id, "fallback", fbErr)
			}
			return res, nil
		}

		observability.LogRetry(ec.Logger(), s.id, attempt, s.wait, err)
		if waitErr := sleep(ec, s.wait); waitErr != nil {
			return nil, &CancellationError{StepID: s.id, Cause: waitErr}
		}
	}
}

// execSequential processes batch items one at a time, in input order,
// collecting positional results.
func execSequential[S any](ec *execContext, s *Step[S], items []any, cfg *runConfig) (any, error) {
	results := make([]any, len(items))
	for i, item := range items {
		res, err := execWithRetry(ec, s, item)
		cfg.metrics.RecordBatchItem(ec, s.id, err == nil)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

// execParallel processes all batch items concurrently. The first error that
// escapes an item's fallback cancels the remaining items; the join waits
// for every launched item to settle before returning.
func execParallel[S any](ec *execContext, s *Step[S], items []any, cfg *runConfig) (any, error) {
	g, gctx := errgroup.WithContext(ec)
	groupCtx := ec.withInner(gctx)

	results := make([]any, len(items))
	for i, item := range items {
		g.Go(func() error {
			res, err := execWithRetry(groupCtx, s, item)
			cfg.metrics.RecordBatchItem(groupCtx, s.id, err == nil)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// toItems normalizes a batch Prep result into an item slice. A nil result
// is an empty batch.
func toItems(prepRes any) ([]any, bool) {
	if prepRes == nil {
		return nil, true
	}
	items, ok := prepRes.([]any)
	return items, ok
}

// sleep waits for d or until the context is done, whichever comes first.
func sleep(ec *execContext, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ec.Done():
			return ec.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ec.Done():
		return ec.Err()
	case <-timer.C:
		return nil
	}
}

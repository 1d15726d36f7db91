/*
Package flow provides a minimal node/flow workflow orchestration engine:
composable processing steps linked into directed graphs by action-labeled
transitions, executed with per-step retry/backoff, batch fan-out, and
optional parallelism.

# Overview

A workflow is a set of steps sharing one state value of type S (use a
pointer type so every hook sees the same state). Each step wraps a Node
with a three-phase lifecycle:

  - Prep reads the shared state and returns the input for Exec.
  - Exec computes, seeing only Prep's result, never the shared state.
  - Post writes results back and returns an action label.

The flow follows the successor registered under the returned label until
no transition matches.

# Basic Usage

	type State struct {
	    Input  string
	    Output string
	}

	upper := flow.NewStep("upper", flow.NodeFuncs[*State]{
	    PrepFunc: func(ctx flow.Context, s *State) (any, error) {
	        return s.Input, nil
	    },
	    ExecFunc: func(ctx flow.Context, item any) (any, error) {
	        return strings.ToUpper(item.(string)), nil
	    },
	    PostFunc: func(ctx flow.Context, s *State, prep, exec any) (flow.Action, error) {
	        s.Output = exec.(string)
	        return flow.DefaultAction, nil
	    },
	})

	f := flow.NewFlow("upcase", upper)
	ctx := flow.NewContext(context.Background())
	state := &State{Input: "hello"}
	if _, err := f.Run(ctx, state); err != nil {
	    log.Fatal(err)
	}
	fmt.Println(state.Output) // "HELLO"

# Branching

Post's action label picks the transition:

	check.On("ok", publish).On("error", cleanup)
	first.Next(second).Next(third) // unconditional chain

A label with no registered successor ends the traversal; if the step had
other successors registered, a warning is logged (a likely-accidental
dead end), but it is not an error.

# Retries and Fallbacks

	fetch := flow.NewStep("fetch", fetchNode,
	    flow.WithMaxRetries[*State](3),
	    flow.WithWait[*State](2*time.Second))

Exec runs up to three times. After the final failure the node's
ExecFallback hook (if implemented) produces the step's result instead; by
default the error propagates. Context.Attempt() exposes the zero-based
attempt index to Exec and the fallback.

# Batches

A step built with WithBatch applies Exec to each element of the []any
slice Prep returned, in order, each element with independent
retry/fallback; Post receives the positional result slice. WithParallel
runs all items concurrently, preserving result order. A BatchFlow runs an
entire topology once per parameter set against one shared state.

# Services

Inject application services (LLM clients, progress publishers) with the
standard context.WithValue pattern on the context wrapped by NewContext,
and read them back inside node hooks. The engine itself carries only a
logger, a run ID, and the bound parameters.

# Error Handling

Step failures carry step context:

	var stepErr *flow.NodeError
	if errors.As(err, &stepErr) {
	    log.Printf("step %s failed in %s: %v", stepErr.StepID, stepErr.Phase, stepErr.Err)
	}

Panics in node hooks are recovered into *flow.PanicError with a stack
trace. errors.Is/As reach the original cause through Unwrap.

# Thread Safety

  - Step wiring and Flow construction are NOT safe for concurrent use.
  - A constructed Flow IS safe for concurrent Run calls; per-run state
    (bound parameters, attempt counters) lives in the execution scope.
  - The shared state value has no engine-side synchronization. Sequential
    traversal touches it from one step at a time; parallel batch runs
    sharing one state must coordinate their own key namespaces.

# Subpackages

  - observability: logging, metrics, and tracing helpers
*/
package flow

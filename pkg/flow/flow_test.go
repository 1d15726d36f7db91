package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFlow_LinearTraversal tests that a default-labeled chain visits every
// step once, in order.
func TestFlow_LinearTraversal(t *testing.T) {
	var order []string
	a := NewStep("a", trackingNode("a", &order, DefaultAction))
	b := NewStep("b", trackingNode("b", &order, DefaultAction))
	c := NewStep("c", trackingNode("c", &order, DefaultAction))
	a.Next(b).Next(c)

	f := NewFlow("linear", a)
	state := &WorkState{}
	action, err := f.Run(testCtx(), state)

	require.NoError(t, err)
	assert.Equal(t, DefaultAction, action)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []string{"a", "b", "c"}, state.Visited)
}

// TestFlow_LabeledBranching tests start -("x")-> mid -("default")-> end.
func TestFlow_LabeledBranching(t *testing.T) {
	var order []string
	start := NewStep("start", trackingNode("start", &order, "x"))
	mid := NewStep("mid", trackingNode("mid", &order, DefaultAction))
	end := NewStep("end", trackingNode("end", &order, DefaultAction))
	skipped := NewStep("skipped", trackingNode("skipped", &order, DefaultAction))

	start.On("x", mid).On("y", skipped)
	mid.Next(end)

	f := NewFlow("branching", start)
	_, err := f.Run(testCtx(), &WorkState{})

	require.NoError(t, err)
	assert.Equal(t, []string{"start", "mid", "end"}, order)
}

// TestFlow_DeadEndWarns tests that an unmatched action from a step with
// successors ends the traversal with a warning and no error.
func TestFlow_DeadEndWarns(t *testing.T) {
	ctx, h := capturedCtx()

	var order []string
	start := NewStep("start", trackingNode("start", &order, "nowhere"))
	start.Next(NewStep("unreached", trackingNode("unreached", &order, DefaultAction)))

	f := NewFlow("deadend", start)
	_, err := f.Run(ctx, &WorkState{})

	require.NoError(t, err)
	assert.Equal(t, []string{"start"}, order)
	assert.True(t, h.hasWarning("no matching transition"))
}

// TestFlow_TerminalStepNoWarning tests that a step with no successors ends
// the traversal silently.
func TestFlow_TerminalStepNoWarning(t *testing.T) {
	ctx, h := capturedCtx()

	var order []string
	only := NewStep("only", trackingNode("only", &order, DefaultAction))
	f := NewFlow("single", only)

	_, err := f.Run(ctx, &WorkState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, order)
	assert.False(t, h.hasWarning("no matching transition"))
}

// TestFlow_FatalStepFailurePropagates tests that a step failure aborts the
// traversal and reaches the caller with the cause intact.
func TestFlow_FatalStepFailurePropagates(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	var order []string

	a := NewStep("a", trackingNode("a", &order, DefaultAction))
	b := NewStep("b", failingNode(boom, &calls))
	c := NewStep("c", trackingNode("c", &order, DefaultAction))
	a.Next(b).Next(c)

	f := NewFlow("failing", a)
	_, err := f.Run(testCtx(), &WorkState{})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, order)

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "b", nodeErr.StepID)
}

// TestFlow_ExecDirectly tests the interface-violation guard.
func TestFlow_ExecDirectly(t *testing.T) {
	f := NewFlow("f", NewStep[*WorkState]("a", NodeFuncs[*WorkState]{}))
	_, err := f.Exec(testCtx(), nil)
	assert.ErrorIs(t, err, ErrFlowExec)
}

// TestFlow_Nested tests mounting a flow as a step of a parent flow and
// routing the parent on the subflow's post action.
func TestFlow_Nested(t *testing.T) {
	var order []string

	innerStep := NewStep("inner", trackingNode("inner", &order, DefaultAction))
	inner := NewFlow("subflow", innerStep,
		WithFlowPost[*WorkState](func(ctx Context, s *WorkState, prepRes any) (Action, error) {
			return "done", nil
		}))

	after := NewStep("after", trackingNode("after", &order, DefaultAction))
	sub := inner.Step("sub")
	sub.On("done", after)

	parent := NewFlow("parent", sub)
	_, err := parent.Run(testCtx(), &WorkState{})

	require.NoError(t, err)
	assert.Equal(t, []string{"inner", "after"}, order)
}

// TestFlow_BracketHooks tests that flow prep runs once before the
// traversal and post once after, with prep's result.
func TestFlow_BracketHooks(t *testing.T) {
	var order []string
	step := NewStep("work", trackingNode("work", &order, DefaultAction))

	f := NewFlow("bracketed", step,
		WithFlowPrep[*WorkState](func(ctx Context, s *WorkState) (any, error) {
			order = append(order, "prep")
			return "seed", nil
		}),
		WithFlowPost[*WorkState](func(ctx Context, s *WorkState, prepRes any) (Action, error) {
			order = append(order, "post")
			assert.Equal(t, "seed", prepRes)
			return DefaultAction, nil
		}))

	_, err := f.Run(testCtx(), &WorkState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"prep", "work", "post"}, order)
}

// TestFlow_Idempotent tests that re-running an unmodified topology against
// fresh state yields identical visits and state.
func TestFlow_Idempotent(t *testing.T) {
	var order []string
	a := NewStep("a", trackingNode("a", &order, "x"))
	b := NewStep("b", trackingNode("b", &order, DefaultAction))
	a.On("x", b)
	f := NewFlow("twice", a)

	s1 := &WorkState{}
	_, err := f.Run(testCtx(), s1)
	require.NoError(t, err)
	first := append([]string(nil), order...)

	order = nil
	s2 := &WorkState{}
	_, err = f.Run(testCtx(), s2)
	require.NoError(t, err)

	assert.Equal(t, first, order)
	assert.Equal(t, s1.Visited, s2.Visited)
	assert.Equal(t, s1, s2)
}

// TestFlow_MaxSteps tests the loop guard on a cyclic topology.
func TestFlow_MaxSteps(t *testing.T) {
	var order []string
	a := NewStep("a", trackingNode("a", &order, DefaultAction))
	a.Next(a) // tight loop

	f := NewFlow("loop", a)
	_, err := f.Run(testCtx(), &WorkState{}, WithMaxSteps(10))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxSteps)
	var maxErr *MaxStepsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 10, maxErr.Max)
	assert.Len(t, order, 10)
}

// TestFlow_Cancellation tests that a cancelled context stops the traversal
// between steps.
func TestFlow_Cancellation(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())

	a := NewStep("a", NodeFuncs[*WorkState]{
		PostFunc: func(ctx Context, s *WorkState, prep, exec any) (Action, error) {
			cancel()
			return DefaultAction, nil
		},
	})
	b := NewStep[*WorkState]("b", NodeFuncs[*WorkState]{})
	a.Next(b)

	f := NewFlow("cancelled", a)
	_, err := f.Run(NewContext(base), &WorkState{})

	require.Error(t, err)
	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "b", cancelErr.StepID)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestFlow_RetryWaitHonorsCancellation tests that the backoff sleep aborts
// promptly when the context is cancelled.
func TestFlow_RetryWaitHonorsCancellation(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())

	calls := 0
	node := NodeFuncs[*WorkState]{
		ExecFunc: func(ctx Context, item any) (any, error) {
			calls++
			cancel()
			return nil, errors.New("transient")
		},
	}
	step := NewStep("slow-retry", node,
		WithMaxRetries[*WorkState](3),
		WithWait[*WorkState](time.Hour))
	f := NewFlow("waiting", step)

	start := time.Now()
	_, err := f.Run(NewContext(base), &WorkState{})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
	var cancelErr *CancellationError
	assert.ErrorAs(t, err, &cancelErr)
}

// TestFlow_ParamsBinding tests that flow params overlay step params and
// are visible through the step context.
func TestFlow_ParamsBinding(t *testing.T) {
	var seen Params
	step := NewStep("read", NodeFuncs[*WorkState]{
		PrepFunc: func(ctx Context, s *WorkState) (any, error) {
			seen = ctx.Params()
			return nil, nil
		},
	}, WithStepParams[*WorkState](Params{"who": "step", "only": "step"}))

	f := NewFlow("params", step, WithFlowParams[*WorkState](Params{"who": "flow"}))
	_, err := f.Run(testCtx(), &WorkState{})

	require.NoError(t, err)
	assert.Equal(t, "flow", seen.String("who", ""))
	assert.Equal(t, "step", seen.String("only", ""))
}

// TestFlow_NilContext tests the nil-context guard.
func TestFlow_NilContext(t *testing.T) {
	f := NewFlow("f", NewStep[*WorkState]("a", NodeFuncs[*WorkState]{}))
	_, err := f.Run(nil, &WorkState{})
	assert.ErrorIs(t, err, ErrNilContext)
}

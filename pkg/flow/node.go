package flow

// Action is the label a step's Post hook returns. The enclosing flow follows
// the successor registered under that label; an unmatched label ends the
// traversal.
type Action string

// DefaultAction is used when Post returns an empty action and as the label
// for unconditional Next() transitions.
const DefaultAction Action = "default"

// Node is one processing step, generic over the workflow's shared state
// type S. Callers use a pointer type for S so every hook observes the same
// shared state.
//
// The lifecycle is Prep -> Exec -> Post:
//
//   - Prep reads the shared state and returns the value handed to Exec.
//     It is the only read phase; side effects on the shared state are
//     permitted.
//   - Exec performs the core computation. It must not touch the shared
//     state: it receives only what Prep returned, which keeps it
//     independently testable and safe to retry.
//   - Post writes results back into the shared state and returns the action
//     label the enclosing flow routes on. An empty action means
//     DefaultAction.
//
// For a batch step (see WithBatch), Prep returns the full []any item slice
// and Exec is invoked once per item; Post receives the positional result
// slice as execRes.
type Node[S any] interface {
	Prep(ctx Context, shared S) (prepRes any, err error)
	Exec(ctx Context, item any) (execRes any, err error)
	Post(ctx Context, shared S, prepRes, execRes any) (Action, error)
}

// FallbackNode is a Node with a recovery hook invoked after the final retry
// attempt fails. Its return value becomes the step's exec result; an error
// from the fallback itself is not retried and propagates to the caller.
type FallbackNode[S any] interface {
	Node[S]
	ExecFallback(ctx Context, prepRes any, execErr error) (any, error)
}

// NodeFuncs adapts plain functions to the Node interface. Any field may be
// nil:
//
//   - nil PrepFunc returns nil
//   - nil ExecFunc passes the prep result through unchanged
//   - nil PostFunc returns DefaultAction
//   - nil FallbackFunc propagates the exec error (no recovery)
type NodeFuncs[S any] struct {
	PrepFunc     func(ctx Context, shared S) (any, error)
	ExecFunc     func(ctx Context, item any) (any, error)
	PostFunc     func(ctx Context, shared S, prepRes, execRes any) (Action, error)
	FallbackFunc func(ctx Context, prepRes any, execErr error) (any, error)
}

func (n NodeFuncs[S]) Prep(ctx Context, shared S) (any, error) {
	if n.PrepFunc == nil {
		return nil, nil
	}
	return n.PrepFunc(ctx, shared)
}

func (n NodeFuncs[S]) Exec(ctx Context, item any) (any, error) {
	if n.ExecFunc == nil {
		return item, nil
	}
	return n.ExecFunc(ctx, item)
}

func (n NodeFuncs[S]) Post(ctx Context, shared S, prepRes, execRes any) (Action, error) {
	if n.PostFunc == nil {
		return DefaultAction, nil
	}
	return n.PostFunc(ctx, shared, prepRes, execRes)
}

func (n NodeFuncs[S]) ExecFallback(ctx Context, prepRes any, execErr error) (any, error) {
	if n.FallbackFunc == nil {
		return nil, execErr
	}
	return n.FallbackFunc(ctx, prepRes, execErr)
}

var _ FallbackNode[any] = NodeFuncs[any]{}

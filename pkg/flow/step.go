package flow

import (
	"log/slog"
	"strings"
	"time"
)

// Step binds a Node into a flow topology: a stable identifier, labeled
// transitions to successor steps, and execution policy (retries, backoff
// wait, batch mode, default parameters).
//
// Topology is construction-time state. Wiring a Step after a flow using it
// has started running is not supported; per-traversal state (bound
// parameters, retry attempt) lives in the execution scope, never on the
// Step, so one Step instance is safe to reach from concurrent traversals.
type Step[S any] struct {
	id         string
	node       Node[S]
	successors map[Action]*Step[S]

	maxRetries int
	wait       time.Duration
	batch      bool
	parallel   bool
	params     Params
}

// NewStep creates a step wrapping node. The id appears in logs, errors, and
// spans. Panics on construction mistakes: empty or whitespace ids, nil
// nodes, and invalid options. These indicate caller bugs, not runtime data
// problems.
func NewStep[S any](id string, node Node[S], opts ...StepOption[S]) *Step[S] {
	if id == "" {
		panic("flow: step ID cannot be empty")
	}
	if strings.ContainsAny(id, " \t\n") {
		panic("flow: step ID cannot contain whitespace")
	}
	if node == nil {
		panic("flow: step node cannot be nil")
	}
	s := &Step[S]{
		id:         id,
		node:       node,
		successors: make(map[Action]*Step[S]),
		maxRetries: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the step identifier.
func (s *Step[S]) ID() string { return s.id }

// Next registers next as the successor for DefaultAction and returns next,
// so linear chains read left to right:
//
//	a.Next(b).Next(c)
func (s *Step[S]) Next(next *Step[S]) *Step[S] {
	s.On(DefaultAction, next)
	return next
}

// On registers next as the successor for action and returns s, so one step
// can fan out:
//
//	check.On("ok", publish).On("error", cleanup)
//
// An action label maps to at most one successor; registering a second
// successor for the same label overwrites the first with a warning.
func (s *Step[S]) On(action Action, next *Step[S]) *Step[S] {
	if next == nil {
		panic("flow: successor step cannot be nil")
	}
	if action == "" {
		action = DefaultAction
	}
	if prev, ok := s.successors[action]; ok {
		slog.Default().Warn("overwriting successor",
			slog.String("step_id", s.id),
			slog.String("action", string(action)),
			slog.String("old", prev.id),
			slog.String("new", next.id),
		)
	}
	s.successors[action] = next
	return s
}

// successor returns the step registered for action, if any.
func (s *Step[S]) successor(action Action) (*Step[S], bool) {
	next, ok := s.successors[action]
	return next, ok
}

// Run executes this step alone, outside any flow. Successors are honored
// only inside a flow; if any are registered a warning is logged and the
// step still executes by itself. Retry, batch, and fallback policy apply
// normally.
func (s *Step[S]) Run(ctx Context, shared S, opts ...RunOption) (Action, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	ec := ensure(ctx)
	if len(s.successors) > 0 {
		ec.Logger().Warn("step has successors; they are ignored outside a flow",
			slog.String("step_id", s.id),
		)
	}
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return runStep(ec, s, shared, s.params, &cfg)
}

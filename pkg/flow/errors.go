// Package flow provides a minimal node/flow workflow orchestration engine.
package flow

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrFlowExec indicates Exec() was called directly on a Flow.
	// A flow has no single-step execute phase; it must be run.
	ErrFlowExec = errors.New("flow cannot be executed directly; use Run")

	// ErrMaxSteps indicates a traversal exceeded the configured step limit.
	ErrMaxSteps = errors.New("exceeded maximum steps")

	// ErrBadBatchInput indicates a batch step's Prep hook returned something
	// other than a []any item slice.
	ErrBadBatchInput = errors.New("batch step requires Prep to return []any")
)

// NodeError wraps an error with step context. Phase identifies which
// lifecycle hook failed: "prep", "exec", "fallback", or "post".
type NodeError struct {
	StepID string
	Phase  string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("step %s: %s: %v", e.StepID, e.Phase, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from a step lifecycle hook.
type PanicError struct {
	StepID string
	Value  any
	Stack  string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("step %s panicked: %v", e.StepID, e.Value)
}

// CancellationError reports that a traversal stopped because the context
// was cancelled.
type CancellationError struct {
	// StepID is the step that was about to execute or was executing.
	StepID string
	// Cause is the underlying cancellation cause.
	Cause error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled at step %s: %v", e.StepID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// MaxStepsError provides context when the traversal step limit is exceeded.
type MaxStepsError struct {
	// Max is the configured step limit.
	Max int
	// LastStepID is the step that would have executed next.
	LastStepID string
}

func (e *MaxStepsError) Error() string {
	return fmt.Sprintf("exceeded maximum steps (%d) at step %s", e.Max, e.LastStepID)
}

// Unwrap returns ErrMaxSteps for errors.Is support.
func (e *MaxStepsError) Unwrap() error {
	return ErrMaxSteps
}

// stepError wraps err with step context unless it already carries one.
// Traversal errors (cancellation, step limits, nested flow failures) pass
// through untouched so the innermost failing step stays identified.
func stepError(stepID, phase string, err error) error {
	var ne *NodeError
	var pe *PanicError
	var ce *CancellationError
	var me *MaxStepsError
	if errors.As(err, &ne) || errors.As(err, &pe) || errors.As(err, &ce) || errors.As(err, &me) {
		return err
	}
	return &NodeError{StepID: stepID, Phase: phase, Err: err}
}

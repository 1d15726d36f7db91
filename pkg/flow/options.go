package flow

import (
	"time"

	"github.com/condenser-dev/condenser/pkg/flow/observability"
)

// StepOption configures a Step at construction time.
type StepOption[S any] func(*Step[S])

// WithMaxRetries sets how many times Exec runs before the fallback is
// consulted. n counts total attempts and must be >= 1 (1 means no retry).
func WithMaxRetries[S any](n int) StepOption[S] {
	if n < 1 {
		panic("flow: max retries must be >= 1")
	}
	return func(s *Step[S]) {
		s.maxRetries = n
	}
}

// WithWait sets the delay between retry attempts. The wait honors context
// cancellation: a cancelled run does not sit out its backoff.
func WithWait[S any](d time.Duration) StepOption[S] {
	if d < 0 {
		panic("flow: retry wait cannot be negative")
	}
	return func(s *Step[S]) {
		s.wait = d
	}
}

// WithBatch marks the step as a batch step: Prep must return a []any item
// slice (nil is treated as empty), Exec is invoked once per item in input
// order with full retry/fallback semantics applied independently per item,
// and Post receives the positional []any result slice. One item's failure
// never aborts its siblings; a failed item's fallback result occupies its
// position.
func WithBatch[S any]() StepOption[S] {
	return func(s *Step[S]) {
		s.batch = true
	}
}

// WithParallel is WithBatch with concurrent item execution: all items run
// at once and the step waits for the joint completion, preserving the
// input-order correspondence of results. On the first error that escapes an
// item's fallback, outstanding items are cancelled and the step waits for
// them to settle before returning that error.
//
// The shared state is not touched between Prep and Post, so parallel items
// race only on whatever the caller put inside the items themselves.
func WithParallel[S any]() StepOption[S] {
	return func(s *Step[S]) {
		s.batch = true
		s.parallel = true
	}
}

// WithStepParams sets the step's own default parameters, used when the step
// runs standalone. Inside a flow the flow's bound parameters overlay these.
func WithStepParams[S any](p Params) StepOption[S] {
	return func(s *Step[S]) {
		s.params = p.Clone()
	}
}

// runConfig holds per-run settings.
type runConfig struct {
	maxSteps       int
	metricsEnabled bool
	tracingEnabled bool
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
}

func defaultRunConfig() runConfig {
	return runConfig{
		maxSteps: 1000,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
}

// RunOption configures a single Run invocation.
type RunOption func(*runConfig)

// WithMaxSteps caps how many steps one traversal may visit, guarding
// against accidental infinite loops in cyclic topologies. Default 1000.
func WithMaxSteps(n int) RunOption {
	return func(cfg *runConfig) {
		if n > 0 {
			cfg.maxSteps = n
		}
	}
}

// WithMetrics enables OpenTelemetry metrics for this run. Uses the global
// meter provider; configure it before running.
func WithMetrics(enabled bool) RunOption {
	return func(cfg *runConfig) {
		cfg.metricsEnabled = enabled
		if enabled {
			cfg.metrics = observability.NewMetricsRecorder()
		} else {
			cfg.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry tracing for this run. Uses the global
// tracer provider; configure it before running.
func WithTracing(enabled bool) RunOption {
	return func(cfg *runConfig) {
		cfg.tracingEnabled = enabled
		if enabled {
			cfg.spans = observability.NewSpanManager()
		} else {
			cfg.spans = observability.NoopSpanManager{}
		}
	}
}

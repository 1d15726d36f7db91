// Package observability provides structured logging, metrics, and tracing
// helpers for the flow engine.
//
// Logging uses slog from the stdlib; metrics and tracing use OpenTelemetry.
// Everything is opt-in with no-op implementations when disabled, and every
// helper tolerates a nil logger.
package observability

import (
	"log/slog"
	"time"
)

// LogRunStart logs the start of a flow run.
func LogRunStart(logger *slog.Logger, flowID, runID string) {
	if logger == nil {
		return
	}
	logger.Info("flow run starting",
		slog.String("flow_id", flowID),
		slog.String("run_id", runID),
	)
}

// LogRunComplete logs successful flow run completion.
func LogRunComplete(logger *slog.Logger, flowID, runID string, duration time.Duration, steps int) {
	if logger == nil {
		return
	}
	logger.Info("flow run completed",
		slog.String("flow_id", flowID),
		slog.String("run_id", runID),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
		slog.Int("steps_executed", steps),
	)
}

// LogRunError logs flow run failure.
func LogRunError(logger *slog.Logger, flowID, runID string, err error, duration time.Duration, steps int) {
	if logger == nil {
		return
	}
	logger.Error("flow run failed",
		slog.String("flow_id", flowID),
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
		slog.Int("steps_executed", steps),
	)
}

// LogStepStart logs step execution start.
func LogStepStart(logger *slog.Logger, stepID string) {
	if logger == nil {
		return
	}
	logger.Debug("step starting",
		slog.String("step_id", stepID),
	)
}

// LogStepComplete logs successful step completion and the action it
// returned.
func LogStepComplete(logger *slog.Logger, stepID string, duration time.Duration, action string) {
	if logger == nil {
		return
	}
	logger.Debug("step completed",
		slog.String("step_id", stepID),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
		slog.String("action", action),
	)
}

// LogStepError logs step execution failure.
func LogStepError(logger *slog.Logger, stepID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("step failed",
		slog.String("step_id", stepID),
		slog.String("error", err.Error()),
	)
}

// LogRetry logs a failed attempt that will be retried after wait.
func LogRetry(logger *slog.Logger, stepID string, attempt int, wait time.Duration, err error) {
	if logger == nil {
		return
	}
	logger.Debug("step attempt failed, retrying",
		slog.String("step_id", stepID),
		slog.Int("attempt", attempt),
		slog.Duration("wait", wait),
		slog.String("error", err.Error()),
	)
}

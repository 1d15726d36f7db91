package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestLogHelpers_NilLoggerSafe verifies every helper tolerates nil.
func TestLogHelpers_NilLoggerSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		LogRunStart(nil, "f", "r")
		LogRunComplete(nil, "f", "r", time.Second, 3)
		LogRunError(nil, "f", "r", errors.New("x"), time.Second, 3)
		LogStepStart(nil, "s")
		LogStepComplete(nil, "s", time.Second, "default")
		LogStepError(nil, "s", errors.New("x"))
		LogRetry(nil, "s", 1, time.Second, errors.New("x"))
	})
}

// TestLogHelpers_Fields verifies structured fields reach the handler.
func TestLogHelpers_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogRunStart(logger, "summary", "run-1")
	assert.Contains(t, buf.String(), `"flow_id":"summary"`)
	assert.Contains(t, buf.String(), `"run_id":"run-1"`)

	buf.Reset()
	LogRunComplete(logger, "summary", "run-1", 1500*time.Millisecond, 4)
	assert.Contains(t, buf.String(), `"duration_ms":1500`)
	assert.Contains(t, buf.String(), `"steps_executed":4`)

	buf.Reset()
	LogRunError(logger, "summary", "run-1", errors.New("boom"), time.Second, 2)
	assert.Contains(t, buf.String(), `"error":"boom"`)

	buf.Reset()
	LogStepComplete(logger, "combine", 20*time.Millisecond, "default")
	assert.Contains(t, buf.String(), `"step_id":"combine"`)
	assert.Contains(t, buf.String(), `"action":"default"`)

	buf.Reset()
	LogRetry(logger, "fetch", 1, 2*time.Second, errors.New("transient"))
	assert.Contains(t, buf.String(), `"attempt":1`)
	assert.Contains(t, buf.String(), `"error":"transient"`)
}

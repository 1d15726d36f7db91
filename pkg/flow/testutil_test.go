package flow

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// Test state types used across tests

// Counter is a simple shared state for counting executions.
type Counter struct {
	Value int
}

// WorkState is a richer shared state for traversal scenarios.
type WorkState struct {
	Visited []string
	Results []any
	Output  string
	Runs    int
}

// Helper node constructors

// trackingNode records its executions in tracker and returns action from
// Post.
func trackingNode(name string, tracker *[]string, action Action) NodeFuncs[*WorkState] {
	return NodeFuncs[*WorkState]{
		PostFunc: func(ctx Context, s *WorkState, prep, exec any) (Action, error) {
			*tracker = append(*tracker, name)
			s.Visited = append(s.Visited, name)
			return action, nil
		},
	}
}

// failingNode fails every Exec with err and counts the calls.
func failingNode(err error, calls *int) NodeFuncs[*WorkState] {
	return NodeFuncs[*WorkState]{
		ExecFunc: func(ctx Context, item any) (any, error) {
			*calls++
			return nil, err
		},
	}
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}

// logRecord is one captured log line.
type logRecord struct {
	level   slog.Level
	message string
}

// capturingHandler is a slog.Handler that records every message, used to
// assert on engine warnings.
type capturingHandler struct {
	mu      sync.Mutex
	records []logRecord
}

func (h *capturingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, logRecord{level: r.Level, message: r.Message})
	return nil
}

func (h *capturingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *capturingHandler) WithGroup(string) slog.Handler      { return h }

// hasWarning reports whether a warning containing substr was captured.
func (h *capturingHandler) hasWarning(substr string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.level == slog.LevelWarn && strings.Contains(r.message, substr) {
			return true
		}
	}
	return false
}

// capturedCtx returns a context whose logger records into the returned
// handler.
func capturedCtx() (Context, *capturingHandler) {
	h := &capturingHandler{}
	ctx := NewContext(context.Background(), WithLogger(slog.New(h)))
	return ctx, h
}

// setDefaultLogger swaps the process default logger for the test's
// duration. Construction-time warnings (successor overwrite) go through
// slog.Default because no run context exists during wiring.
func setDefaultLogger(t *testing.T, h slog.Handler) *slog.Logger {
	t.Helper()
	prev := slog.Default()
	slog.SetDefault(slog.New(h))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return prev
}

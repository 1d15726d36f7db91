package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condenser-dev/condenser/internal/progress"
)

func TestRunner_Start_Completes(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	runner := NewRunner(store, progress.Nop{})

	id, err := runner.Start(context.Background(), KindSummary,
		func(ctx context.Context, taskID string) (Outcome, error) {
			return Outcome{Result: "summary text", Errors: []string{"b.txt failed"}}, nil
		})
	require.NoError(t, err)

	// Record exists immediately, in processing or beyond.
	_, err = store.Get(id)
	require.NoError(t, err)

	runner.Wait()

	rec, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, rec.State)
	assert.Equal(t, "summary text", rec.Result)
	assert.Equal(t, []string{"b.txt failed"}, rec.Errors)
}

func TestRunner_FatalErrorRecorded(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	runner := NewRunner(store, progress.Nop{})

	boom := errors.New("llm unreachable")
	id, err := runner.Start(context.Background(), KindSummary,
		func(ctx context.Context, taskID string) (Outcome, error) {
			return Outcome{}, boom
		})
	require.NoError(t, err)
	runner.Wait()

	rec, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StateError, rec.State)
	require.Len(t, rec.Errors, 1)
	assert.Contains(t, rec.Errors[0], "llm unreachable")
}

func TestRunner_PanicBecomesError(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	runner := NewRunner(store, progress.Nop{})

	id, err := runner.Start(context.Background(), KindStory,
		func(ctx context.Context, taskID string) (Outcome, error) {
			panic("unexpected")
		})
	require.NoError(t, err)
	runner.Wait()

	rec, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StateError, rec.State)
	require.Len(t, rec.Errors, 1)
	assert.Contains(t, rec.Errors[0], "panicked")
}

func TestRunner_FailedOutcome(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	runner := NewRunner(store, progress.Nop{})

	rec, err := runner.RunSync(context.Background(), KindSummary,
		func(ctx context.Context, taskID string) (Outcome, error) {
			return Outcome{Failed: true, Errors: []string{"every file failed"}}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, StateError, rec.State)
	assert.Equal(t, []string{"every file failed"}, rec.Errors)
}

func TestRunner_PublishesTerminalProgress(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	bus := progress.NewBus()
	defer bus.Close()
	runner := NewRunner(store, bus)

	done := make(chan struct{})
	started := make(chan string, 1)

	go func() {
		id, err := runner.Start(context.Background(), KindSummary,
			func(ctx context.Context, taskID string) (Outcome, error) {
				<-done
				return Outcome{Result: "ok"}, nil
			})
		require.NoError(t, err)
		started <- id
	}()

	id := <-started
	ch, cancel := bus.Subscribe(id)
	defer cancel()
	close(done)
	runner.Wait()

	var messages []string
	for u := range ch {
		messages = append(messages, u.Message)
	}
	// Terminal update published, then the task's channel completed.
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[len(messages)-1], "complete")
}

func TestRunner_TTLApplied(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	runner := NewRunner(store, progress.Nop{}, WithTTL(10*time.Minute))

	rec, err := runner.RunSync(context.Background(), KindSummary,
		func(ctx context.Context, taskID string) (Outcome, error) {
			return Outcome{Result: "ok"}, nil
		})
	require.NoError(t, err)
	assert.WithinDuration(t, rec.CreatedAt.Add(10*time.Minute), rec.ExpiresAt, time.Second)
}

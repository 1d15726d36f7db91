package summarize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condenser-dev/condenser/internal/llm"
	"github.com/condenser-dev/condenser/internal/progress"
	"github.com/condenser-dev/condenser/internal/upload"
)

// countingClient fakes the model: prompts containing a failure marker
// always error, everything else echoes a canned response. Calls are
// counted per prompt kind.
type countingClient struct {
	mu    sync.Mutex
	calls map[string]int
}

func newCountingClient() *countingClient {
	return &countingClient{calls: make(map[string]int)}
}

func (c *countingClient) client() llm.Client {
	return llm.ClientFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		c.mu.Lock()
		key := promptKey(req.Prompt)
		c.calls[key]++
		c.mu.Unlock()

		if strings.Contains(req.Prompt, "ALWAYS-FAIL") {
			return nil, errors.New("model unavailable")
		}
		if strings.Contains(req.Prompt, "Individual summaries:") {
			return &llm.CompletionResponse{Content: "combined summary"}, nil
		}
		return &llm.CompletionResponse{Content: "summary of " + key}, nil
	})
}

func (c *countingClient) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[key]
}

// promptKey identifies which document or phase a prompt belongs to.
func promptKey(prompt string) string {
	if strings.Contains(prompt, "Individual summaries:") {
		return "combine"
	}
	for _, marker := range []string{"doc-a", "doc-b", "doc-c", "ALWAYS-FAIL"} {
		if strings.Contains(prompt, marker) {
			return marker
		}
	}
	return "other"
}

func fastDeps(client llm.Client, pub progress.Publisher) Deps {
	return Deps{Client: client, Progress: pub, RetryWait: time.Millisecond}
}

func TestRun_AllSucceed(t *testing.T) {
	cc := newCountingClient()
	state := &State{
		TaskID: "t1",
		Level:  llm.LevelMedium,
		Files: []upload.File{
			{Name: "a.txt", Content: "doc-a"},
			{Name: "b.txt", Content: "doc-b"},
		},
	}

	require.NoError(t, Run(context.Background(), fastDeps(cc.client(), nil), state))

	require.Len(t, state.Summaries, 2)
	assert.Equal(t, "a.txt", state.Summaries[0].Name)
	assert.Equal(t, "summary of doc-a", state.Summaries[0].Text)
	assert.Equal(t, "summary of doc-b", state.Summaries[1].Text)
	assert.Empty(t, state.Failed)
	assert.Equal(t, "combined summary", state.Combined)

	assert.Equal(t, 1, cc.count("doc-a"))
	assert.Equal(t, 1, cc.count("combine"))
}

func TestRun_FailedFileIsAbsorbed(t *testing.T) {
	cc := newCountingClient()
	state := &State{
		TaskID: "t2",
		Files: []upload.File{
			{Name: "a.txt", Content: "doc-a"},
			{Name: "b.txt", Content: "ALWAYS-FAIL"},
			{Name: "c.txt", Content: "doc-c"},
		},
	}

	require.NoError(t, Run(context.Background(), fastDeps(cc.client(), nil), state))

	// The failing file is retried its full budget, then absorbed.
	assert.Equal(t, summarizeRetries, cc.count("ALWAYS-FAIL"))

	// Siblings are unaffected and results keep submission order.
	require.Len(t, state.Summaries, 3)
	assert.Equal(t, "summary of doc-a", state.Summaries[0].Text)
	assert.Equal(t, "Error: could not summarize b.txt", state.Summaries[1].Text)
	assert.Error(t, state.Summaries[1].Err)
	assert.Equal(t, "summary of doc-c", state.Summaries[2].Text)

	assert.Equal(t, []string{"b.txt"}, state.Failed)
	assert.Equal(t, "combined summary", state.Combined)
}

func TestRun_EmptyContentSkippedWithoutModelCall(t *testing.T) {
	cc := newCountingClient()
	state := &State{
		TaskID: "t2b",
		Files: []upload.File{
			{Name: "a.txt", Content: "doc-a"},
			{Name: "empty.txt", Content: "   \n"},
		},
	}

	require.NoError(t, Run(context.Background(), fastDeps(cc.client(), nil), state))

	require.Len(t, state.Summaries, 2)
	assert.True(t, state.Summaries[1].Skipped)
	assert.Equal(t, "Skipped: empty.txt is empty", state.Summaries[1].Text)
	assert.NoError(t, state.Summaries[1].Err)
	// Skipped files are not failures and cost no model calls.
	assert.Empty(t, state.Failed)
	assert.Equal(t, 1, cc.count("doc-a"))
	assert.Equal(t, 1, cc.count("combine"))
	assert.Zero(t, cc.count("other"))
}

func TestRun_NoFiles(t *testing.T) {
	cc := newCountingClient()
	err := Run(context.Background(), fastDeps(cc.client(), nil), &State{TaskID: "t3"})
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestRun_CombineFailureIsFatal(t *testing.T) {
	var combineCalls int
	var mu sync.Mutex
	client := llm.ClientFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if strings.Contains(req.Prompt, "Individual summaries:") {
			mu.Lock()
			combineCalls++
			mu.Unlock()
			return nil, errors.New("model unavailable")
		}
		return &llm.CompletionResponse{Content: "ok"}, nil
	})

	state := &State{
		TaskID: "t4",
		Files:  []upload.File{{Name: "a.txt", Content: "doc-a"}},
	}
	err := Run(context.Background(), fastDeps(client, nil), state)
	require.Error(t, err)
	assert.Equal(t, combineRetries, combineCalls)
	assert.Empty(t, state.Combined)
}

func TestRun_FailedFilesNamedInCombinePrompt(t *testing.T) {
	var combinePrompt string
	var mu sync.Mutex
	client := llm.ClientFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if strings.Contains(req.Prompt, "ALWAYS-FAIL") {
			return nil, errors.New("nope")
		}
		if strings.Contains(req.Prompt, "Individual summaries:") {
			mu.Lock()
			combinePrompt = req.Prompt
			mu.Unlock()
			return &llm.CompletionResponse{Content: "combined"}, nil
		}
		return &llm.CompletionResponse{Content: "ok"}, nil
	})

	state := &State{
		TaskID: "t5",
		Files: []upload.File{
			{Name: "good.txt", Content: "doc-a"},
			{Name: "bad.txt", Content: "ALWAYS-FAIL"},
		},
	}
	require.NoError(t, Run(context.Background(), fastDeps(client, nil), state))

	assert.Contains(t, combinePrompt, "good.txt")
	assert.Contains(t, combinePrompt, "bad.txt")
	assert.Contains(t, combinePrompt, "could not be summarized")
	// The failed file's error marker is not fed in as a summary.
	assert.NotContains(t, combinePrompt, "Error: could not summarize")
}

// recordingPublisher captures progress updates for assertions.
type recordingPublisher struct {
	mu      sync.Mutex
	updates []progress.Update
}

func (p *recordingPublisher) Publish(taskID string, u progress.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
}

func (p *recordingPublisher) stages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.updates))
	for i, u := range p.updates {
		out[i] = u.Stage
	}
	return out
}

func TestRun_PublishesProgress(t *testing.T) {
	cc := newCountingClient()
	pub := &recordingPublisher{}
	state := &State{
		TaskID: "t6",
		Files:  []upload.File{{Name: "a.txt", Content: "doc-a"}},
	}

	require.NoError(t, Run(context.Background(), fastDeps(cc.client(), pub), state))

	assert.Equal(t, []string{"summarize", "summarize", "combine", "combine"}, pub.stages())
}

func TestNewFlow_NilProgress(t *testing.T) {
	cc := newCountingClient()
	f := NewFlow(Deps{Client: cc.client(), RetryWait: time.Millisecond})
	require.NotNil(t, f)
	assert.Equal(t, "summarize", f.ID())
}

// Package summarize builds the file-summarization workflow: each uploaded
// file is summarized independently, then the per-file summaries are merged
// into one combined summary at the requested detail level.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/condenser-dev/condenser/internal/llm"
	"github.com/condenser-dev/condenser/internal/progress"
	"github.com/condenser-dev/condenser/internal/upload"
	"github.com/condenser-dev/condenser/pkg/flow"
)

// Retry policy for the LLM-backed steps.
const (
	summarizeRetries = 3
	combineRetries   = 2
	retryWait        = 2 * time.Second
)

// ErrNoInput indicates the workflow was started without files.
var ErrNoInput = errors.New("summarize: no files to process")

// FileSummary is one per-file result. A failed file carries an error
// marker in Text and its name appears in State.Failed; a skipped file
// carries a skip marker and is left out of the combined summary.
type FileSummary struct {
	Name    string
	Text    string
	Skipped bool
	Err     error
}

// State is the shared state of one summarization run.
type State struct {
	TaskID string
	Files  []upload.File
	Level  llm.Level

	// Written by the per-file step.
	Summaries []FileSummary
	Failed    []string

	// Written by the combine step.
	Combined string
}

// Deps are the services the workflow steps call out to.
type Deps struct {
	Client   llm.Client
	Progress progress.Publisher

	// RetryWait overrides the pause between retry attempts. Zero means the
	// default.
	RetryWait time.Duration
}

// fileItem pairs a file with its submission position so results can be
// placed back in order.
type fileItem struct {
	index int
	file  upload.File
}

// itemResult is what the per-file exec returns for one file.
type itemResult struct {
	index   int
	name    string
	text    string
	skipped bool
	err     error
}

// summarizeNode is the batch step: one exec per file, each with its own
// retry budget; a file that keeps failing is absorbed by the fallback so
// its siblings still complete.
type summarizeNode struct {
	deps Deps
}

func (n *summarizeNode) Prep(ctx flow.Context, s *State) (any, error) {
	if len(s.Files) == 0 {
		return nil, ErrNoInput
	}
	n.deps.Progress.Publish(s.TaskID, progress.Update{
		Stage:   "summarize",
		Message: fmt.Sprintf("Summarizing %d file(s)", len(s.Files)),
		At:      time.Now(),
	})

	items := make([]any, len(s.Files))
	for i, f := range s.Files {
		items[i] = fileItem{index: i, file: f}
	}
	return items, nil
}

func (n *summarizeNode) Exec(ctx flow.Context, item any) (any, error) {
	fi, ok := item.(fileItem)
	if !ok {
		return nil, fmt.Errorf("summarize: unexpected batch item %T", item)
	}

	// Content that upload validation would reject (callers may build
	// states directly) is skipped without spending a model call.
	if strings.TrimSpace(fi.file.Content) == "" {
		return itemResult{
			index:   fi.index,
			name:    fi.file.Name,
			text:    fmt.Sprintf("Skipped: %s is empty", fi.file.Name),
			skipped: true,
		}, nil
	}
	if int64(len(fi.file.Content)) > upload.DefaultMaxFileBytes {
		return itemResult{
			index:   fi.index,
			name:    fi.file.Name,
			text:    fmt.Sprintf("Skipped: %s exceeds the size limit", fi.file.Name),
			skipped: true,
		}, nil
	}

	resp, err := n.deps.Client.Complete(ctx, llm.CompletionRequest{
		Prompt: llm.FileSummaryPrompt(fi.file.Content),
	})
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", fi.file.Name, err)
	}
	return itemResult{index: fi.index, name: fi.file.Name, text: resp.Content}, nil
}

// ExecFallback turns an exhausted file into an error marker instead of
// failing the batch.
func (n *summarizeNode) ExecFallback(ctx flow.Context, item any, execErr error) (any, error) {
	fi, ok := item.(fileItem)
	if !ok {
		return nil, execErr
	}
	return itemResult{
		index: fi.index,
		name:  fi.file.Name,
		text:  fmt.Sprintf("Error: could not summarize %s", fi.file.Name),
		err:   execErr,
	}, nil
}

func (n *summarizeNode) Post(ctx flow.Context, s *State, prepRes, execRes any) (flow.Action, error) {
	results, ok := execRes.([]any)
	if !ok {
		return "", fmt.Errorf("summarize: unexpected batch results %T", execRes)
	}

	s.Summaries = make([]FileSummary, len(s.Files))
	s.Failed = nil
	for _, raw := range results {
		r, ok := raw.(itemResult)
		if !ok {
			return "", fmt.Errorf("summarize: unexpected item result %T", raw)
		}
		s.Summaries[r.index] = FileSummary{Name: r.name, Text: r.text, Skipped: r.skipped, Err: r.err}
		if r.err != nil {
			s.Failed = append(s.Failed, r.name)
		}
	}

	n.deps.Progress.Publish(s.TaskID, progress.Update{
		Stage:   "summarize",
		Message: fmt.Sprintf("Summarized %d of %d file(s)", len(s.Files)-len(s.Failed), len(s.Files)),
		At:      time.Now(),
	})
	return flow.DefaultAction, nil
}

// combineNode merges the per-file summaries into one text. Failed files
// are named so the combined summary can note the gap.
type combineNode struct {
	deps Deps
}

func (n *combineNode) Prep(ctx flow.Context, s *State) (any, error) {
	n.deps.Progress.Publish(s.TaskID, progress.Update{
		Stage:   "combine",
		Message: "Combining summaries",
		At:      time.Now(),
	})

	items := make([]llm.SummaryItem, 0, len(s.Summaries))
	for _, sum := range s.Summaries {
		if sum.Err != nil || sum.Skipped {
			continue
		}
		items = append(items, llm.SummaryItem{Name: sum.Name, Summary: sum.Text})
	}
	return llm.CombineSummariesPrompt(items, s.Failed, s.Level), nil
}

func (n *combineNode) Exec(ctx flow.Context, prompt any) (any, error) {
	p, ok := prompt.(string)
	if !ok {
		return nil, fmt.Errorf("summarize: unexpected combine input %T", prompt)
	}
	resp, err := n.deps.Client.Complete(ctx, llm.CompletionRequest{Prompt: p})
	if err != nil {
		return nil, fmt.Errorf("combine summaries: %w", err)
	}
	return resp.Content, nil
}

func (n *combineNode) Post(ctx flow.Context, s *State, prepRes, execRes any) (flow.Action, error) {
	s.Combined = execRes.(string)
	n.deps.Progress.Publish(s.TaskID, progress.Update{
		Stage:   "combine",
		Message: "Combined summary ready",
		At:      time.Now(),
	})
	return flow.DefaultAction, nil
}

// NewFlow assembles the summarization workflow.
func NewFlow(deps Deps) *flow.Flow[*State] {
	if deps.Progress == nil {
		deps.Progress = progress.Nop{}
	}
	wait := deps.RetryWait
	if wait <= 0 {
		wait = retryWait
	}

	files := flow.NewStep[*State]("summarize-files", &summarizeNode{deps: deps},
		flow.WithBatch[*State](),
		flow.WithMaxRetries[*State](summarizeRetries),
		flow.WithWait[*State](wait),
	)
	combine := flow.NewStep[*State]("combine-summaries", &combineNode{deps: deps},
		flow.WithMaxRetries[*State](combineRetries),
		flow.WithWait[*State](wait),
	)
	files.Next(combine)

	return flow.NewFlow("summarize", files)
}

// Run executes the workflow to completion and returns the mutated state.
func Run(ctx context.Context, deps Deps, state *State) error {
	f := NewFlow(deps)
	_, err := f.Run(flow.NewContext(ctx), state)
	return err
}

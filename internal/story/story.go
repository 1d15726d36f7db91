// Package story builds the repository-story workflow: parse a GitHub URL,
// fetch the repository's README and recent commits, and ask the model for
// a short narrative about the activity. Recoverable failures route to a
// terminal failure step instead of aborting the run.
package story

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/condenser-dev/condenser/internal/github"
	"github.com/condenser-dev/condenser/internal/llm"
	"github.com/condenser-dev/condenser/internal/progress"
	"github.com/condenser-dev/condenser/pkg/flow"
)

// ActionError routes a step's recoverable failure to the fail step.
const ActionError flow.Action = "error"

const (
	fetchRetries = 2
	storyRetries = 2
	retryWait    = 2 * time.Second
)

// ErrNoStory indicates the workflow finished without producing a story.
var ErrNoStory = errors.New("story: no story produced")

// State is the shared state of one story run.
type State struct {
	TaskID  string
	RepoURL string

	Owner string
	Repo  string

	Readme  string
	Commits []github.Commit

	Story string
	Err   error
}

// RepoFetcher is the slice of the GitHub client the workflow needs.
// *github.Client satisfies it.
type RepoFetcher interface {
	RecentCommits(ctx context.Context, owner, repo string, since time.Time, limit int) ([]github.Commit, error)
	Readme(ctx context.Context, owner, repo string) (string, error)
}

// Deps are the services the workflow steps call out to.
type Deps struct {
	Client   llm.Client
	GitHub   RepoFetcher
	Progress progress.Publisher

	// CommitWindow and CommitLimit bound the history fetch. Zero values
	// take the github package defaults.
	CommitWindow time.Duration
	CommitLimit  int

	// RetryWait overrides the pause between retry attempts. Zero means the
	// default.
	RetryWait time.Duration
}

// stepFailure is an exec result standing in for a recoverable error, so
// Post can record it and route to the fail step.
type stepFailure struct {
	err error
}

// parseNode extracts owner and repo from the submitted URL. A bad URL is
// recoverable: it routes to the fail step.
type parseNode struct {
	deps Deps
}

func (n *parseNode) Prep(ctx flow.Context, s *State) (any, error) {
	n.deps.Progress.Publish(s.TaskID, progress.Update{
		Stage:   "parse",
		Message: "Parsing repository URL",
		At:      time.Now(),
	})
	return s.RepoURL, nil
}

type parsedRepo struct {
	owner string
	repo  string
}

func (n *parseNode) Exec(ctx flow.Context, raw any) (any, error) {
	owner, repo, err := github.ParseRepoURL(raw.(string))
	if err != nil {
		return nil, err
	}
	return parsedRepo{owner: owner, repo: repo}, nil
}

func (n *parseNode) ExecFallback(ctx flow.Context, raw any, execErr error) (any, error) {
	return stepFailure{err: execErr}, nil
}

func (n *parseNode) Post(ctx flow.Context, s *State, prepRes, execRes any) (flow.Action, error) {
	if fail, ok := execRes.(stepFailure); ok {
		s.Err = fail.err
		return ActionError, nil
	}
	parsed := execRes.(parsedRepo)
	s.Owner = parsed.owner
	s.Repo = parsed.repo
	return flow.DefaultAction, nil
}

// fetchNode pulls the README and recent commits. A missing README is
// tolerated; commit fetch errors are retried, and exhaustion routes to the
// fail step rather than aborting.
type fetchNode struct {
	deps Deps
}

func (n *fetchNode) Prep(ctx flow.Context, s *State) (any, error) {
	n.deps.Progress.Publish(s.TaskID, progress.Update{
		Stage:   "fetch",
		Message: fmt.Sprintf("Fetching activity for %s/%s", s.Owner, s.Repo),
		At:      time.Now(),
	})
	return parsedRepo{owner: s.Owner, repo: s.Repo}, nil
}

type repoActivity struct {
	readme  string
	commits []github.Commit
}

func (n *fetchNode) Exec(ctx flow.Context, item any) (any, error) {
	target := item.(parsedRepo)

	window := n.deps.CommitWindow
	if window <= 0 {
		window = github.DefaultWindow
	}
	since := time.Now().UTC().Add(-window)

	commits, err := n.deps.GitHub.RecentCommits(ctx, target.owner, target.repo, since, n.deps.CommitLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch commits for %s/%s: %w", target.owner, target.repo, err)
	}

	readme, err := n.deps.GitHub.Readme(ctx, target.owner, target.repo)
	if err != nil {
		// The story degrades gracefully without a README.
		ctx.Logger().Warn("readme fetch failed", "owner", target.owner, "repo", target.repo, "error", err)
		readme = ""
	}

	return repoActivity{readme: readme, commits: commits}, nil
}

func (n *fetchNode) ExecFallback(ctx flow.Context, item any, execErr error) (any, error) {
	return stepFailure{err: execErr}, nil
}

func (n *fetchNode) Post(ctx flow.Context, s *State, prepRes, execRes any) (flow.Action, error) {
	if fail, ok := execRes.(stepFailure); ok {
		s.Err = fail.err
		return ActionError, nil
	}
	activity := execRes.(repoActivity)
	s.Readme = activity.readme
	s.Commits = activity.commits

	n.deps.Progress.Publish(s.TaskID, progress.Update{
		Stage:   "fetch",
		Message: fmt.Sprintf("Found %d recent commit(s)", len(s.Commits)),
		At:      time.Now(),
	})
	return flow.DefaultAction, nil
}

// storyNode asks the model for the narrative. It has no fallback: if the
// model keeps failing after retries, the run fails.
type storyNode struct {
	deps Deps
}

func (n *storyNode) Prep(ctx flow.Context, s *State) (any, error) {
	n.deps.Progress.Publish(s.TaskID, progress.Update{
		Stage:   "story",
		Message: "Writing the story",
		At:      time.Now(),
	})
	repoName := s.Owner + "/" + s.Repo
	return llm.StoryPrompt(repoName, s.Readme, github.FormatCommits(s.Commits)), nil
}

func (n *storyNode) Exec(ctx flow.Context, prompt any) (any, error) {
	resp, err := n.deps.Client.Complete(ctx, llm.CompletionRequest{Prompt: prompt.(string)})
	if err != nil {
		return nil, fmt.Errorf("generate story: %w", err)
	}
	return resp.Content, nil
}

func (n *storyNode) Post(ctx flow.Context, s *State, prepRes, execRes any) (flow.Action, error) {
	s.Story = execRes.(string)
	n.deps.Progress.Publish(s.TaskID, progress.Update{
		Stage:   "story",
		Message: "Story ready",
		At:      time.Now(),
	})
	return flow.DefaultAction, nil
}

// failNode is the terminal step for recoverable failures. The error is
// already recorded in the state; this step surfaces it to watchers.
type failNode struct {
	deps Deps
}

func (n *failNode) Prep(ctx flow.Context, s *State) (any, error) { return nil, nil }

func (n *failNode) Exec(ctx flow.Context, item any) (any, error) { return nil, nil }

func (n *failNode) Post(ctx flow.Context, s *State, prepRes, execRes any) (flow.Action, error) {
	msg := "story generation failed"
	if s.Err != nil {
		msg = s.Err.Error()
	}
	n.deps.Progress.Publish(s.TaskID, progress.Update{
		Stage:   "failed",
		Message: msg,
		At:      time.Now(),
	})
	return flow.DefaultAction, nil
}

// NewFlow assembles the story workflow.
func NewFlow(deps Deps) *flow.Flow[*State] {
	if deps.Progress == nil {
		deps.Progress = progress.Nop{}
	}
	wait := deps.RetryWait
	if wait <= 0 {
		wait = retryWait
	}

	parse := flow.NewStep[*State]("parse-url", &parseNode{deps: deps})
	fetch := flow.NewStep[*State]("fetch-activity", &fetchNode{deps: deps},
		flow.WithMaxRetries[*State](fetchRetries),
		flow.WithWait[*State](wait),
	)
	write := flow.NewStep[*State]("write-story", &storyNode{deps: deps},
		flow.WithMaxRetries[*State](storyRetries),
		flow.WithWait[*State](wait),
	)
	fail := flow.NewStep[*State]("fail", &failNode{deps: deps})

	parse.On(ActionError, fail)
	fetch.On(ActionError, fail)
	parse.Next(fetch).Next(write)

	return flow.NewFlow("story", parse)
}

// Run executes the workflow. A recoverable failure ends the run cleanly
// with State.Err set and no story; callers distinguish the two by checking
// the state.
func Run(ctx context.Context, deps Deps, state *State) error {
	f := NewFlow(deps)
	if _, err := f.Run(flow.NewContext(ctx), state); err != nil {
		return err
	}
	if state.Err == nil && state.Story == "" {
		return ErrNoStory
	}
	return nil
}

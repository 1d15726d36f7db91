package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/condenser-dev/condenser/internal/github"
	"github.com/condenser-dev/condenser/internal/story"
	"github.com/condenser-dev/condenser/internal/task"
)

func newStoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "story <repo-url>",
		Short: "Turn a GitHub repository's recent activity into a short story",
		Long: `Story fetches a repository's README and its commits from the last few
days, then asks the model for a short narrative about the activity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.llmClient()
			if err != nil {
				return err
			}

			gh := github.NewClient(
				github.WithToken(a.cfg.GitHub.Token),
				github.WithClientLogger(a.logger),
			)
			deps := story.Deps{
				Client:       client,
				GitHub:       gh,
				Progress:     a.bus,
				CommitWindow: a.cfg.GitHub.CommitWindow,
				CommitLimit:  a.cfg.GitHub.CommitLimit,
			}

			var stopWatch func()
			rec, err := a.runner.RunSync(cmd.Context(), task.KindStory,
				func(ctx context.Context, taskID string) (task.Outcome, error) {
					stopWatch = a.watchProgress(taskID)

					state := &story.State{TaskID: taskID, RepoURL: args[0]}
					if err := story.Run(ctx, deps, state); err != nil {
						return task.Outcome{}, err
					}
					if state.Err != nil {
						return task.Outcome{
							Errors: []string{state.Err.Error()},
							Failed: true,
						}, nil
					}
					return task.Outcome{Result: state.Story}, nil
				})
			if stopWatch != nil {
				stopWatch()
			}
			if err != nil {
				return err
			}
			return report(rec)
		},
	}
}

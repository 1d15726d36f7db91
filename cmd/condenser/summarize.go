package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/condenser-dev/condenser/internal/llm"
	"github.com/condenser-dev/condenser/internal/summarize"
	"github.com/condenser-dev/condenser/internal/task"
	"github.com/condenser-dev/condenser/internal/upload"
)

func newSummarizeCmd(a *app) *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "summarize <file>...",
		Short: "Summarize text files into one combined summary",
		Long: `Summarize reads the given text files (.txt or .md), summarizes each one
independently, and merges the results into a single combined summary at the
requested detail level.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limits := upload.Limits{
				MaxFiles:     a.cfg.Upload.MaxFiles,
				MaxFileBytes: a.cfg.Upload.MaxFileBytes,
				AllowedExts:  a.cfg.Upload.AllowedExts,
			}
			files, err := upload.Collect(args, limits)
			if err != nil {
				return err
			}

			client, err := a.llmClient()
			if err != nil {
				return err
			}

			deps := summarize.Deps{Client: client, Progress: a.bus}
			var stopWatch func()
			rec, err := a.runner.RunSync(cmd.Context(), task.KindSummary,
				func(ctx context.Context, taskID string) (task.Outcome, error) {
					stopWatch = a.watchProgress(taskID)

					state := &summarize.State{
						TaskID: taskID,
						Files:  files,
						Level:  llm.ParseLevel(level),
					}
					if err := summarize.Run(ctx, deps, state); err != nil {
						return task.Outcome{}, err
					}

					var errs []string
					for _, name := range state.Failed {
						errs = append(errs, "could not summarize "+name)
					}
					return task.Outcome{
						Result: state.Combined,
						Errors: errs,
						Failed: len(state.Failed) == len(state.Files),
					}, nil
				})
			// The terminal stage is published after the workflow returns;
			// stop the watcher only once the run has fully settled.
			if stopWatch != nil {
				stopWatch()
			}
			if err != nil {
				return err
			}
			return report(rec)
		},
	}

	cmd.Flags().StringVar(&level, "level", "medium",
		"summary detail level: "+strings.Join([]string{"short", "medium", "comprehensive"}, ", "))
	return cmd
}

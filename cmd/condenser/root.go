package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/condenser-dev/condenser/internal/config"
	"github.com/condenser-dev/condenser/internal/llm"
	"github.com/condenser-dev/condenser/internal/progress"
	"github.com/condenser-dev/condenser/internal/task"
)

// app carries the wired services shared by the subcommands.
type app struct {
	cfg    config.Settings
	logger *slog.Logger
	store  task.Store
	bus    *progress.Bus
	runner *task.Runner

	// progressOut receives the progress lines (stderr in normal use).
	progressOut io.Writer
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	a := &app{}

	cmd := &cobra.Command{
		Use:           "condenser",
		Short:         "Summarize documents and narrate repository activity with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(configPath, verbose)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML or JSON config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newSummarizeCmd(a))
	cmd.AddCommand(newStoryCmd(a))
	cmd.AddCommand(newTasksCmd(a))
	return cmd
}

// init loads configuration and wires the store, progress bus, and task
// runner.
func (a *app) init(configPath string, verbose bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)
	a.progressOut = os.Stderr

	if cfg.Store.Path != "" {
		store, err := task.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open task store: %w", err)
		}
		a.store = store
	} else {
		a.store = task.NewMemoryStore()
	}

	a.bus = progress.NewBus()
	a.runner = task.NewRunner(a.store, a.bus,
		task.WithLogger(a.logger),
		task.WithTTL(cfg.Store.TTL),
	)
	return nil
}

func (a *app) close() {
	if a.bus != nil {
		a.bus.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing task store", "error", err)
		}
	}
}

// llmClient builds the configured model client.
func (a *app) llmClient() (llm.Client, error) {
	return llm.NewOpenAIClient(
		llm.WithAPIKey(a.cfg.LLM.APIKey),
		llm.WithBaseURL(a.cfg.LLM.BaseURL),
		llm.WithModel(a.cfg.LLM.Model),
		llm.WithMaxTokens(a.cfg.LLM.MaxTokens),
		llm.WithTemperature(a.cfg.LLM.Temperature),
		llm.WithTimeout(a.cfg.LLM.Timeout),
	)
}

// watchProgress prints progress updates for a task until the bus completes
// it. Returns a stop function. Call stop only after the task's final
// record is in hand: the runner publishes the terminal "done"/"failed"
// stage after the workflow returns, and stopping earlier would miss it.
func (a *app) watchProgress(taskID string) func() {
	updates, cancel := a.bus.Subscribe(taskID)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range updates {
			fmt.Fprintf(a.progressOut, "[%s] %s\n", u.Stage, u.Message)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// report prints a finished task record to stdout.
func report(rec task.Record) error {
	if rec.State == task.StateError {
		if len(rec.Errors) > 0 {
			return fmt.Errorf("task %s failed: %s", rec.ID, rec.Errors[len(rec.Errors)-1])
		}
		return fmt.Errorf("task %s failed", rec.ID)
	}
	fmt.Println(rec.Result)
	for _, e := range rec.Errors {
		fmt.Fprintln(os.Stderr, "warning:", e)
	}
	return nil
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/factrun/application"
	"github.com/felixgeelhaar/factrun/infrastructure/config"
	"github.com/felixgeelhaar/factrun/infrastructure/inputs"
)

// runOptions holds options for the run command.
type runOptions struct {
	runfilePath   string
	maxIterations int
	timeout       time.Duration
	jsonOutput    bool
	watchDir      string
}

// newRunCmd creates the run command.
func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an agent session until it finishes or pauses",
		Long: `Run iterations for the session named in the runfile until the control
policy completes or fails it, the session stalls, or it pauses waiting for
external input.

Examples:
  # Run with a runfile
  factrun run -c hello.yaml

  # Cap the loop and emit JSON
  factrun run -c hello.yaml --max-iterations 10 --json

  # Keep applying fact files dropped into a directory while running
  factrun run -c hello.yaml --watch-inputs ./inbox`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSession(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.runfilePath, "config", "c", "", "Path to runfile (required)")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "Maximum iterations (overrides runfile)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Execution timeout")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the result as JSON")
	cmd.Flags().StringVar(&opts.watchDir, "watch-inputs", "", "Directory to watch for external fact files")

	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// runSession executes the session described by the runfile.
func (a *App) runSession(ctx context.Context, opts *runOptions) error {
	file, err := config.NewLoader().LoadFile(opts.runfilePath)
	if err != nil {
		return fmt.Errorf("loading runfile: %w", err)
	}

	spec, err := a.buildSpec(file.Agent.ID)
	if err != nil {
		return err
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	store, closeStore, err := openStore(ctx, file.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = closeStore() }()

	ctrl, err := application.NewController(application.Config{
		Spec:      spec,
		Store:     store,
		AgentID:   file.Agent.ID,
		SessionID: file.Agent.Session,
	})
	if err != nil {
		return err
	}

	seed, err := file.SeedFacts()
	if err != nil {
		return err
	}
	if len(seed) > 0 {
		if err := ctrl.Bootstrap(ctx, seed); err != nil {
			return fmt.Errorf("seeding session: %w", err)
		}
	}

	if opts.watchDir != "" {
		watcher, err := inputs.NewWatcher(opts.watchDir,
			inputs.StoreHandler(store, file.Agent.ID, file.Agent.Session))
		if err != nil {
			return fmt.Errorf("watching inputs: %w", err)
		}
		defer func() { _ = watcher.Close() }()
		go func() { _ = watcher.Start(ctx) }()
	}

	runnerCfg := application.RunnerConfig{
		Controller:             ctrl,
		MaxIterations:          file.Runner.MaxIterations,
		RetryMaxAttempts:       file.Runner.RetryMaxAttempts,
		RetryInitialDelay:      file.Runner.RetryInitialDelay.AsDuration(),
		RetryBackoffMultiplier: file.Runner.RetryBackoffMultiplier,
	}
	if opts.maxIterations > 0 {
		runnerCfg.MaxIterations = opts.maxIterations
	}

	runner, err := application.NewRunner(runnerCfg)
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	return a.printResult(result, opts.jsonOutput)
}

// resultView is the JSON shape of a run result.
type resultView struct {
	Outcome   string   `json:"outcome"`
	Reason    string   `json:"reason,omitempty"`
	Phase     string   `json:"phase"`
	Iteration int      `json:"iteration"`
	Missing   []string `json:"missing,omitempty"`
	Matched   []string `json:"matched,omitempty"`
	Durable   []string `json:"durable_keys"`
}

func (a *App) printResult(result application.Result, asJSON bool) error {
	if asJSON {
		view := resultView{
			Outcome:   string(result.Outcome),
			Reason:    string(result.Reason),
			Phase:     result.Phase.Name(),
			Iteration: result.Iteration,
			Missing:   result.Missing,
			Matched:   result.Matched,
			Durable:   result.Durable.Keys(),
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	fmt.Fprintf(a.stdout, "outcome:   %s\n", result.Outcome)
	if result.Reason != "" {
		fmt.Fprintf(a.stdout, "reason:    %s\n", result.Reason)
	}
	fmt.Fprintf(a.stdout, "phase:     %s\n", result.Phase.Name())
	fmt.Fprintf(a.stdout, "iteration: %d\n", result.Iteration)
	if len(result.Missing) > 0 {
		fmt.Fprintf(a.stdout, "missing:   %v\n", result.Missing)
	}
	if len(result.Matched) > 0 {
		fmt.Fprintf(a.stdout, "matched:   %v\n", result.Matched)
	}
	fmt.Fprintf(a.stdout, "durable:   %v\n", result.Durable.Keys())
	return nil
}

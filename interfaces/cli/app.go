// Package cli provides the command-line interface for the factrun runtime.
// Agent specs are Go code, so the CLI works against a registry: the embedding
// binary registers named spec factories and the runfile picks one by name.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/factrun/domain/agentspec"
	"github.com/felixgeelhaar/factrun/infrastructure/logging"
)

// Version information set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// SpecFactory builds an agent spec. Factories run lazily so a broken spec
// only fails the commands that need it.
type SpecFactory func() (*agentspec.Spec, error)

// App represents the CLI application.
type App struct {
	root     *cobra.Command
	stdout   io.Writer
	stderr   io.Writer
	agents   map[string]SpecFactory
	logLevel string
	logJSON  bool
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
		agents: make(map[string]SpecFactory),
	}

	app.root = &cobra.Command{
		Use:   "factrun",
		Short: "Deterministic fact-driven agent runtime",
		Long: `factrun executes declarative agents: enumerated phases, fact-driven
transitions and schema-enforced emissions, one auditable iteration at a time.
Durable state lives in a pluggable store, so a session survives restarts and
every iteration leaves a history record.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(logging.Config{Level: app.logLevel, JSON: app.logJSON})
		},
	}

	app.root.PersistentFlags().StringVar(&app.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	app.root.PersistentFlags().BoolVar(&app.logJSON, "log-json", false, "Emit logs as JSON")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newAgentsCmd(),
		app.newValidateCmd(),
		app.newRunCmd(),
		app.newHistoryCmd(),
	)

	return app
}

// RegisterAgent adds a named spec factory to the registry.
func (a *App) RegisterAgent(name string, factory SpecFactory) {
	a.agents[name] = factory
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// buildSpec resolves an agent name against the registry.
func (a *App) buildSpec(name string) (*agentspec.Spec, error) {
	factory, ok := a.agents[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q, registered: %v", name, a.agentNames())
	}
	return factory()
}

func (a *App) agentNames() []string {
	names := make([]string, 0, len(a.agents))
	for name := range a.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "factrun version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}

// newAgentsCmd creates the agents command.
func (a *App) newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List registered agents",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range a.agentNames() {
				fmt.Fprintln(a.stdout, name)
			}
		},
	}
}

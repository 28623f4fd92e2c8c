package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/factrun/infrastructure/config"
)

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	var runfilePath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a runfile and its agent spec",
		Long: `Validate loads the runfile, builds the named agent spec and reports
construction warnings. Construction errors (dangling phases, shadowed rules,
iteration-scoped policy keys) fail the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := config.NewLoader().LoadFile(runfilePath)
			if err != nil {
				return err
			}

			spec, err := a.buildSpec(file.Agent.ID)
			if err != nil {
				return err
			}

			if _, err := file.SeedFacts(); err != nil {
				return err
			}

			warnings := spec.Warnings()
			for _, w := range warnings {
				fmt.Fprintf(a.stdout, "warning: %s\n", w.String())
			}
			fmt.Fprintf(a.stdout, "%s %s: valid (%d warnings)\n",
				spec.Name(), spec.Version(), len(warnings))
			return nil
		},
	}

	cmd.Flags().StringVarP(&runfilePath, "config", "c", "", "Path to runfile (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/factrun/infrastructure/config"
)

// newHistoryCmd creates the history command.
func (a *App) newHistoryCmd() *cobra.Command {
	var (
		runfilePath string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the session's iteration history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := config.NewLoader().LoadFile(runfilePath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx, file.Store)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer func() { _ = closeStore() }()

			records, err := store.History(ctx, file.Agent.ID, file.Agent.Session)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			for _, rec := range records {
				fmt.Fprintf(a.stdout, "%3d  %-20s %s",
					rec.Iteration, rec.Phase, rec.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
				for name, facts := range rec.ByAction {
					fmt.Fprintf(a.stdout, "  %s=%v", name, facts.Keys())
				}
				fmt.Fprintln(a.stdout)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&runfilePath, "config", "c", "", "Path to runfile (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output records as JSON")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

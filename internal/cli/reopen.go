package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/headline-goat/ab-report/internal/store"
)

func newReopenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <name>",
		Short: "Return a completed experiment to running",
		Long: `Mark a completed experiment as running again and clear its winner.

Example:
  abr reopen checkout`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return a.withStore(func(s *store.SQLiteStore) error {
				ctx := cmd.Context()

				e, err := getExperiment(ctx, s, name)
				if err != nil {
					return err
				}
				if e.State == store.StateRunning {
					return fmt.Errorf("experiment '%s' is already running", name)
				}

				if err := s.UpdateExperimentState(ctx, name, store.StateRunning); err != nil {
					return fmt.Errorf("failed to reopen experiment: %w", err)
				}

				a.logger.Debug("reopened experiment", "name", name, "previous_winner", e.Winner)
				fmt.Fprintf(cmd.OutOrStdout(), "Reopened experiment '%s'\n", name)
				return nil
			})
		},
	}
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/headline-goat/ab-report/internal/store"
)

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an experiment and its visitors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return a.withStore(func(s *store.SQLiteStore) error {
				err := s.DeleteExperiment(cmd.Context(), name)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("experiment '%s' not found", name)
				}
				if err != nil {
					return fmt.Errorf("failed to delete experiment: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Deleted experiment '%s'\n", name)
				return nil
			})
		},
	}
}

package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/headline-goat/ab-report/internal/store"
)

func newConcludeCmd(a *app) *cobra.Command {
	var variant string

	cmd := &cobra.Command{
		Use:   "conclude <name>",
		Short: "Declare a winner and complete an experiment",
		Long: `Declare the winning variant of an experiment and mark it completed.

The variant must be one of the experiment's groups. The current significance
is printed so the decision is recorded next to the evidence.

Example:
  abr conclude checkout --variant B`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return a.withStore(func(s *store.SQLiteStore) error {
				ctx := cmd.Context()

				e, err := getExperiment(ctx, s, name)
				if err != nil {
					return err
				}

				// Validate experiment is running
				if e.State != store.StateRunning {
					return fmt.Errorf("experiment is not running (current state: %s)", e.State)
				}

				counts, err := s.GetGroupCounts(ctx, name)
				if err != nil {
					return fmt.Errorf("failed to get group counts: %w", err)
				}
				groups := slices.Clone(e.Variants)
				for _, c := range counts {
					if !slices.Contains(groups, c.Group) {
						groups = append(groups, c.Group)
					}
				}
				if !slices.Contains(groups, variant) {
					return fmt.Errorf("invalid variant %q (experiment groups: %v)", variant, groups)
				}

				if err := s.SetWinner(ctx, name, variant); err != nil {
					return fmt.Errorf("failed to set winner: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Declared winner for experiment '%s': %s\n", name, variant)
				fmt.Fprintln(out, "Experiment has been marked as completed.")

				_, rep, err := a.analyzeStored(ctx, s, name)
				if err != nil {
					a.logger.Warn("could not compute significance", "experiment", name, "error", err)
					return nil
				}
				sig := rep.Significance
				if !sig.Significant(1-rep.Confidence) && sig.Control != "" {
					fmt.Fprintf(out, "\nNote: the difference between %s and %s is not statistically significant.\n", sig.Treatment, sig.Control)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variant, "variant", "v", "", "winning variant label (required)")
	cmd.MarkFlagRequired("variant")

	return cmd
}

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/headline-goat/ab-report/internal/report"
	"github.com/headline-goat/ab-report/internal/store"
)

func newResultsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "results [name]",
		Short: "Show the report of a stored experiment",
		Long: `Show group KPIs, confidence intervals, significance, a daily conversion
chart and the top segments of a stored experiment.

Without a name, pick the experiment from a list.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *store.SQLiteStore) error {
				ctx := cmd.Context()

				var name string
				if len(args) == 1 {
					name = args[0]
				} else {
					var err error
					if name, err = promptExperiment(ctx, s); err != nil {
						return err
					}
					if name == "" {
						return nil
					}
				}

				e, rep, err := a.analyzeStored(ctx, s, name)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "STATE: %s\n", e.State)
				if e.Winner != "" {
					fmt.Fprintf(out, "WINNER: %s\n", e.Winner)
				}
				fmt.Fprintf(out, "CREATED: %s\n\n", e.CreatedAt.Format("2006-01-02"))

				return report.Terminal(out, rep, report.TerminalOptions{
					Title:       e.Name,
					Currency:    a.cfg.Report.Currency,
					TopSegments: a.cfg.Report.TopSegments,
				})
			})
		},
	}
}

// promptExperiment asks the user to choose a stored experiment. It returns
// "" when the prompt is interrupted.
func promptExperiment(ctx context.Context, s store.Store) (string, error) {
	experiments, err := s.ListExperiments(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list experiments: %w", err)
	}
	if len(experiments) == 0 {
		return "", fmt.Errorf("no experiments yet; import one with: abr import <name> --file ab_data.csv")
	}

	names := make([]string, len(experiments))
	for i, e := range experiments {
		names[i] = e.Name
	}

	prompt := promptui.Select{
		Label: "Experiment",
		Items: names,
		Size:  10,
	}

	_, name, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return "", nil
		}
		return "", err
	}
	return name, nil
}

package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/headline-goat/ab-report/internal/store"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all experiments",
		Long:  `List stored experiments with their state and visitor totals.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *store.SQLiteStore) error {
				ctx := cmd.Context()

				experiments, err := s.ListExperiments(ctx)
				if err != nil {
					return fmt.Errorf("failed to list experiments: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(experiments) == 0 {
					fmt.Fprintln(out, "No experiments yet.")
					fmt.Fprintln(out)
					fmt.Fprintln(out, "Import an exposure table with:")
					fmt.Fprintln(out, "  abr import <name> --file data/ab_data.csv")
					return nil
				}

				// Print table
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSTATE\tGROUPS\tVISITORS\tCONVERSIONS\tWINNER\tCREATED")

				for _, e := range experiments {
					counts, err := s.GetGroupCounts(ctx, e.Name)
					if err != nil {
						return fmt.Errorf("failed to get counts for experiment %s: %w", e.Name, err)
					}

					totalVisitors := 0
					totalConversions := 0
					for _, c := range counts {
						totalVisitors += c.Visitors
						totalConversions += c.Conversions
					}

					winner := e.Winner
					if winner == "" {
						winner = "-"
					}

					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
						e.Name,
						strings.ToUpper(string(e.State)),
						len(counts),
						humanize.Comma(int64(totalVisitors)),
						humanize.Comma(int64(totalConversions)),
						winner,
						e.CreatedAt.Format("2006-01-02"),
					)
				}

				return w.Flush()
			})
		},
	}
}

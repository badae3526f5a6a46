package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/headline-goat/ab-report/internal/experiment"
	"github.com/headline-goat/ab-report/internal/store"
)

func newExportCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Export the stored exposure table",
		Long: `Export the visitors of a stored experiment in CSV or JSON format.
The CSV output can be read back by 'abr analyze --file' and 'abr import'.

Examples:
  abr export checkout --format csv > checkout.csv
  abr export checkout --format json > checkout.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if format != "csv" && format != "json" {
				return fmt.Errorf("invalid format: must be 'csv' or 'json'")
			}

			return a.withStore(func(s *store.SQLiteStore) error {
				ctx := cmd.Context()

				// Verify experiment exists
				if _, err := getExperiment(ctx, s, name); err != nil {
					return err
				}

				records, err := s.GetVisitors(ctx, name)
				if err != nil {
					return fmt.Errorf("failed to get visitors: %w", err)
				}

				if format == "csv" {
					return experiment.WriteCSV(cmd.OutOrStdout(), records)
				}
				return exportJSON(cmd.OutOrStdout(), name, records)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format (csv or json)")

	return cmd
}

type jsonExport struct {
	Experiment string                     `json:"experiment"`
	Visitors   []experiment.VisitorRecord `json:"visitors"`
}

func exportJSON(w io.Writer, name string, records []experiment.VisitorRecord) error {
	if records == nil {
		records = []experiment.VisitorRecord{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(jsonExport{Experiment: name, Visitors: records})
}

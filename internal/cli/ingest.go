package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/headline-goat/ab-report/internal/experiment"
	"github.com/headline-goat/ab-report/internal/report"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		rawDir  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Join the raw Olist tables into an enriched orders CSV",
		Long: `Join the raw Olist orders, payments and customers tables into the
enriched orders table read by 'abr build'.

Order revenue is the sum of payment_value per order. Customer id, city and
state are attached by customer_id. Orders without payments keep an empty
revenue.

Reads from the raw directory:
  ` + experiment.OlistOrdersFile + `
  ` + experiment.OlistPaymentsFile + `
  ` + experiment.OlistCustomersFile + `

Example:
  abr ingest --raw data/raw/olist --out data/processed/orders_enriched.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var readers []io.Reader
			for _, name := range []string{
				experiment.OlistOrdersFile, experiment.OlistPaymentsFile, experiment.OlistCustomersFile,
			} {
				path := filepath.Join(rawDir, name)
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}
				defer f.Close()
				readers = append(readers, f)
			}

			orders, err := experiment.ReadOlist(readers[0], readers[1], readers[2])
			if err != nil {
				return fmt.Errorf("%s: %w", rawDir, err)
			}

			if err := report.WriteFile(outPath, func(w io.Writer) error {
				return experiment.WriteEnrichedOrders(w, orders)
			}); err != nil {
				return err
			}

			a.logger.Info("wrote enriched orders", "rows", len(orders), "out", outPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s with %d rows\n", outPath, len(orders))
			return nil
		},
	}

	cmd.Flags().StringVar(&rawDir, "raw", "data/raw/olist", "directory holding the raw Olist CSVs")
	cmd.Flags().StringVarP(&outPath, "out", "o", "data/processed/orders_enriched.csv", "enriched orders CSV to write")

	return cmd
}

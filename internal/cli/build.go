package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/headline-goat/ab-report/internal/config"
	"github.com/headline-goat/ab-report/internal/experiment"
	"github.com/headline-goat/ab-report/internal/report"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		ordersPath string
		outPath    string
		start      string
		end        string
		seed       uint64
		variants   string
		weights    []float64
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an exposure table from an orders export",
		Long: `Build an exposure table (one row per customer) from an enriched orders CSV.

Each distinct customer is assigned to a variant with a seeded generator, so the
same input and seed always produce the same table. A customer converts when
any of their orders falls inside the test window (both days inclusive).

Required order columns: customer_unique_id, customer_state,
order_purchase_timestamp. order_revenue is optional.

Example:
  abr build --orders data/processed/orders_enriched.csv --out data/ab_data.csv
  abr build --orders orders.csv --start 2017-08-01 --end 2017-08-31 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := time.Parse(experiment.DateLayout, start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			endDate, err := time.Parse(experiment.DateLayout, end)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}

			f, err := os.Open(ordersPath)
			if err != nil {
				return fmt.Errorf("failed to open orders: %w", err)
			}
			defer f.Close()

			orders, err := experiment.ReadOrders(f)
			if err != nil {
				return fmt.Errorf("%s: %w", ordersPath, err)
			}

			records, err := experiment.Build(orders, experiment.BuildOptions{
				Start:    startDate,
				End:      endDate,
				Seed:     seed,
				Variants: config.SplitList(variants),
				Weights:  weights,
			})
			if err != nil {
				return err
			}

			write := func(w io.Writer) error { return experiment.WriteCSV(w, records) }
			if outPath == "-" {
				if err := write(cmd.OutOrStdout()); err != nil {
					return err
				}
			} else if err := report.WriteFile(outPath, write); err != nil {
				return err
			}

			converted := 0
			for _, r := range records {
				if r.Converted {
					converted++
				}
			}
			a.logger.Info("built exposure table",
				"orders", len(orders),
				"visitors", len(records),
				"converted", converted,
				"out", outPath,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&ordersPath, "orders", "data/processed/orders_enriched.csv", "enriched orders CSV")
	cmd.Flags().StringVarP(&outPath, "out", "o", "data/ab_data.csv", `output exposure CSV ("-" for stdout)`)
	cmd.Flags().StringVar(&start, "start", "2017-08-01", "first day of the test window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "2017-08-31", "last day of the test window, inclusive (YYYY-MM-DD)")
	cmd.Flags().Uint64Var(&seed, "seed", 7, "assignment seed")
	cmd.Flags().StringVar(&variants, "variants", "A,B", "comma separated variant labels")
	cmd.Flags().Float64SliceVar(&weights, "weights", nil, "assignment weights per variant (default even split)")

	return cmd
}

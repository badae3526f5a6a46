package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/headline-goat/ab-report/internal/config"
	"github.com/headline-goat/ab-report/internal/experiment"
	"github.com/headline-goat/ab-report/internal/store"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		file     string
		variants string
		replace  bool
	)

	cmd := &cobra.Command{
		Use:   "import <name>",
		Short: "Import an exposure table into the database",
		Long: `Validate an exposure CSV and store it as a named experiment.

Declared variants are checked against every row and fix the control and
treatment of the significance test (first and second entries). Without
--variants the configured default list is used, if any.

Example:
  abr import checkout --file data/ab_data.csv
  abr import checkout --file data/ab_data.csv --variants A,B --replace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			declared := config.SplitList(variants)
			if len(declared) == 0 {
				declared = a.cfg.Variants
			}

			records, err := readCSVFile(file)
			if err != nil {
				return err
			}
			if err := experiment.Validate(records, declared); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}

			return a.withStore(func(s *store.SQLiteStore) error {
				ctx := cmd.Context()

				_, err := s.ImportExperiment(ctx, name, declared, filepath.Base(file), records, replace)
				if errors.Is(err, store.ErrExists) {
					return fmt.Errorf("experiment '%s' already exists (use --replace to overwrite)", name)
				}
				if err != nil {
					return fmt.Errorf("failed to import experiment: %w", err)
				}

				a.logger.Debug("imported experiment", "name", name, "visitors", len(records), "source", file)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d visitors into experiment '%s'\n", len(records), name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "data/ab_data.csv", "exposure CSV to import")
	cmd.Flags().StringVar(&variants, "variants", "", "comma separated variant labels, control first")
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite an existing experiment with the same name")

	return cmd
}

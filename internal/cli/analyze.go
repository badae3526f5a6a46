package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/headline-goat/ab-report/internal/analysis"
	"github.com/headline-goat/ab-report/internal/config"
	"github.com/headline-goat/ab-report/internal/report"
	"github.com/headline-goat/ab-report/internal/store"
)

const (
	biExportsDir   = "bi_exports"
	reportJSONFile = "report.json"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		file       string
		variants   string
		outDir     string
		markdown   bool
		reportPath string
		title      string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [name]",
		Short: "Compute the experiment report and write its exports",
		Long: `Analyze a stored experiment, or an exposure CSV when no name is given.

Writes the BI tables (groups, daily, segments, significance) as CSV under
<out>/bi_exports, the full report as <out>/report.json and, with --markdown,
a stakeholder summary. Undefined statistics are written as NA in CSV and
Markdown and as null in JSON.

Examples:
  abr analyze --file data/ab_data.csv --markdown
  abr analyze checkout --out outputs/checkout`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = a.cfg.OutputDir
			}

			var (
				rep  *analysis.Report
				name string
			)
			if len(args) == 1 {
				name = args[0]
				err := a.withStore(func(s *store.SQLiteStore) error {
					var err error
					_, rep, err = a.analyzeStored(cmd.Context(), s, name)
					return err
				})
				if err != nil {
					return err
				}
			} else {
				records, err := readCSVFile(file)
				if err != nil {
					return err
				}
				declared := config.SplitList(variants)
				if len(declared) == 0 {
					declared = a.cfg.Variants
				}
				engine, err := a.engine(declared)
				if err != nil {
					return err
				}
				if rep, err = engine.Analyze(records); err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			}

			biDir := filepath.Join(outDir, biExportsDir)
			if err := report.WriteTables(biDir, rep); err != nil {
				return err
			}
			jsonPath := filepath.Join(outDir, reportJSONFile)
			if err := report.WriteFile(jsonPath, func(w io.Writer) error { return report.WriteJSON(w, rep) }); err != nil {
				return err
			}
			a.logger.Info("wrote exports", "tables", biDir, "json", jsonPath)

			if markdown {
				if title == "" {
					title = a.cfg.Report.Title
				}
				md := report.Markdown(rep, report.MarkdownOptions{
					Title:       title,
					GeneratedAt: time.Now(),
					TopSegments: a.cfg.Report.TopSegments,
					RecentDays:  a.cfg.Report.RecentDays,
					Currency:    a.cfg.Report.Currency,
				})
				if err := report.WriteFile(reportPath, func(w io.Writer) error {
					_, err := io.WriteString(w, md)
					return err
				}); err != nil {
					return err
				}
				a.logger.Info("wrote report", "path", reportPath)
			}

			if quiet {
				return nil
			}
			return report.Terminal(cmd.OutOrStdout(), rep, report.TerminalOptions{
				Title:       name,
				Currency:    a.cfg.Report.Currency,
				TopSegments: a.cfg.Report.TopSegments,
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "data/ab_data.csv", "exposure CSV, used when no experiment name is given")
	cmd.Flags().StringVar(&variants, "variants", "", "comma separated variant labels for --file, control first")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default from config, ./outputs)")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "also write the Markdown stakeholder report")
	cmd.Flags().StringVar(&reportPath, "report", "REPORT.md", "Markdown report path")
	cmd.Flags().StringVar(&title, "title", "", "Markdown report title (default from config)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the summary")

	return cmd
}

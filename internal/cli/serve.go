package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/headline-goat/ab-report/internal/server"
	"github.com/headline-goat/ab-report/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
		Long: `Start the abr HTTP server.

The server provides:
  - Dashboard for browsing experiment reports (token protected)
  - JSON API at /api/experiments and /api/experiments/<name>/report
  - Prometheus metrics at /metrics
  - Health check endpoint

Example:
  abr serve --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			return a.withStore(func(s *store.SQLiteStore) error {
				srv := server.New(s, server.Options{
					Port:       a.cfg.Port,
					TokenFile:  a.tokenFilePath(),
					TokenTTL:   a.cfg.TokenTTL,
					Confidence: a.cfg.Confidence,
					Currency:   a.cfg.Report.Currency,
					Logger:     a.logger,
				})

				out := cmd.OutOrStdout()
				fmt.Fprintln(out)
				fmt.Fprintf(out, "abr running on http://localhost:%d\n", a.cfg.Port)
				fmt.Fprintf(out, "Dashboard: http://localhost:%d/dashboard?token=%s\n", a.cfg.Port, srv.Token())
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Press Ctrl+C to stop")

				return srv.Start(cmd.Context())
			})
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on (default from config, env ABR_PORT)")

	return cmd
}

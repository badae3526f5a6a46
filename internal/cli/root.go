package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/headline-goat/ab-report/internal/config"
)

// app carries the resolved configuration into every subcommand.
type app struct {
	configPath string
	dbPath     string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "abr",
		Short: "abr - A/B test analysis for e-commerce experiments",
		Long: `abr turns an exposure table (one row per visitor) into an experiment
report: conversion rate and revenue per visitor by group, Wilson confidence
intervals, a two-proportion z-test, and daily and segment breakdowns.

Experiments can be analyzed straight from CSV or imported into an embedded
SQLite database and browsed on a small dashboard.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./"+config.DefaultFile+" if present)")
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "database path (default ./abr.db, env ABR_DB_PATH)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error (env ABR_LOG_LEVEL)")

	cmd.AddCommand(
		newIngestCmd(a),
		newBuildCmd(a),
		newImportCmd(a),
		newAnalyzeCmd(a),
		newResultsCmd(a),
		newListCmd(a),
		newExportCmd(a),
		newConcludeCmd(a),
		newReopenCmd(a),
		newDeleteCmd(a),
		newServeCmd(a),
		newOTPCmd(a),
	)

	return cmd
}

func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// setup loads configuration, applies flag overrides and installs the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/headline-goat/ab-report/internal/analysis"
	"github.com/headline-goat/ab-report/internal/experiment"
	"github.com/headline-goat/ab-report/internal/store"
)

// withStore opens the database, executes the function, and handles cleanup.
func (a *app) withStore(fn func(*store.SQLiteStore) error) error {
	if dir := filepath.Dir(a.cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	s, err := store.Open(a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

// engine builds an analysis engine from the configured confidence.
func (a *app) engine(variants []string) (*analysis.Engine, error) {
	return analysis.New(analysis.Options{
		Confidence: a.cfg.Confidence,
		Variants:   variants,
		Logger:     a.logger,
	})
}

// getExperiment wraps store.ErrNotFound with the experiment name.
func getExperiment(ctx context.Context, s store.Store, name string) (*store.Experiment, error) {
	e, err := s.GetExperiment(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("experiment '%s' not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	return e, nil
}

// analyzeStored runs the engine over a stored experiment.
func (a *app) analyzeStored(ctx context.Context, s store.Store, name string) (*store.Experiment, *analysis.Report, error) {
	e, err := getExperiment(ctx, s, name)
	if err != nil {
		return nil, nil, err
	}

	records, err := s.GetVisitors(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get visitors: %w", err)
	}

	// Variants were resolved at import time
	engine, err := a.engine(e.Variants)
	if err != nil {
		return nil, nil, err
	}

	report, err := engine.Analyze(records)
	if err != nil {
		return nil, nil, err
	}
	return e, report, nil
}

func readCSVFile(path string) ([]experiment.VisitorRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := experiment.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// tokenFilePath returns the path of the dashboard token file, kept
// alongside the database.
func (a *app) tokenFilePath() string {
	return filepath.Join(filepath.Dir(a.cfg.DBPath), ".abr-token")
}

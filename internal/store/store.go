package store

import (
	"context"

	"github.com/headline-goat/ab-report/internal/experiment"
)

// Store defines the interface for experiment storage operations
type Store interface {
	// Experiment operations
	CreateExperiment(ctx context.Context, name string, variants []string, source string) (*Experiment, error)
	GetExperiment(ctx context.Context, name string) (*Experiment, error)
	ListExperiments(ctx context.Context) ([]*Experiment, error)
	UpdateExperimentState(ctx context.Context, name string, state ExperimentState) error
	SetWinner(ctx context.Context, name string, winner string) error
	DeleteExperiment(ctx context.Context, name string) error

	// Visitor operations
	InsertVisitors(ctx context.Context, name string, records []experiment.VisitorRecord) error
	GetVisitors(ctx context.Context, name string) ([]experiment.VisitorRecord, error)
	GetGroupCounts(ctx context.Context, name string) ([]GroupCounts, error)
	ImportExperiment(ctx context.Context, name string, variants []string, source string, records []experiment.VisitorRecord, replace bool) (*Experiment, error)

	// Lifecycle
	Close() error
}

var _ Store = (*SQLiteStore)(nil)

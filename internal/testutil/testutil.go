package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/headline-goat/ab-report/internal/experiment"
	"github.com/headline-goat/ab-report/internal/store"
)

// SetupTestStore creates a test database and returns the store.
// Uses t.TempDir() for automatic cleanup on test completion.
func SetupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := tmpDir + "/test.db"

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// Visitors builds n visitors per group; the first conversions[i] visitors of
// group i convert on day 2017-08-01 with revenue 10.
func Visitors(groups []string, n int, conversions []int) []experiment.VisitorRecord {
	exposed := time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC)
	converted := time.Date(2017, 8, 1, 12, 0, 0, 0, time.UTC)

	var records []experiment.VisitorRecord
	for gi, g := range groups {
		for i := 0; i < n; i++ {
			r := experiment.VisitorRecord{
				VisitorID: fmt.Sprintf("%s-%03d", g, i),
				Group:     g,
				Segment:   "SP",
				ExposedAt: exposed,
			}
			if i < conversions[gi] {
				t := converted
				r.Converted = true
				r.ConvertedAt = &t
				r.Revenue = 10
			}
			records = append(records, r)
		}
	}
	return records
}

// SeedExperiment creates an experiment with visitors from Visitors.
func SeedExperiment(t *testing.T, s store.Store, name string, groups []string, n int, conversions []int) {
	t.Helper()

	ctx := context.Background()
	if _, err := s.CreateExperiment(ctx, name, groups, "test"); err != nil {
		t.Fatalf("failed to create experiment: %v", err)
	}
	if err := s.InsertVisitors(ctx, name, Visitors(groups, n, conversions)); err != nil {
		t.Fatalf("failed to insert visitors: %v", err)
	}
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/headline-goat/ab-report/internal/experiment"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    variants TEXT NOT NULL DEFAULT '[]',
    state TEXT NOT NULL DEFAULT 'running',
    winner TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_experiments_name ON experiments(name);

CREATE TABLE IF NOT EXISTS visitors (
    experiment TEXT NOT NULL,
    visitor_id TEXT NOT NULL,
    grp TEXT NOT NULL,
    segment TEXT NOT NULL,
    exposed_at INTEGER NOT NULL,
    exposed_tz INTEGER NOT NULL DEFAULT 0,
    converted INTEGER NOT NULL DEFAULT 0,
    converted_at INTEGER,
    converted_tz INTEGER NOT NULL DEFAULT 0,
    revenue REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (experiment, visitor_id),
    FOREIGN KEY (experiment) REFERENCES experiments(name)
);

CREATE INDEX IF NOT EXISTS idx_visitors_group ON visitors(experiment, grp);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateExperiment(ctx context.Context, name string, variants []string, source string) (*Experiment, error) {
	if variants == nil {
		variants = []string{}
	}
	variantsJSON, err := json.Marshal(variants)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variants: %w", err)
	}

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO experiments (name, variants, state, source, created_at, updated_at)
		 VALUES (?, ?, 'running', ?, ?, ?)`,
		name, string(variantsJSON), source, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("failed to insert experiment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &Experiment{
		ID:        id,
		Name:      name,
		Variants:  variants,
		State:     StateRunning,
		Source:    source,
		CreatedAt: time.Unix(now, 0),
		UpdatedAt: time.Unix(now, 0),
	}, nil
}

const experimentColumns = `id, name, variants, state, winner, source, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (*Experiment, error) {
	var e Experiment
	var variantsJSON string
	var createdAt, updatedAt int64

	if err := row.Scan(&e.ID, &e.Name, &variantsJSON, &e.State, &e.Winner, &e.Source, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(variantsJSON), &e.Variants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variants: %w", err)
	}

	e.CreatedAt = time.Unix(createdAt, 0)
	e.UpdatedAt = time.Unix(updatedAt, 0)
	return &e, nil
}

func (s *SQLiteStore) GetExperiment(ctx context.Context, name string) (*Experiment, error) {
	e, err := scanExperiment(s.db.QueryRowContext(ctx,
		`SELECT `+experimentColumns+` FROM experiments WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) ListExperiments(ctx context.Context) ([]*Experiment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+experimentColumns+` FROM experiments ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	var experiments []*Experiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		experiments = append(experiments, e)
	}

	return experiments, rows.Err()
}

// UpdateExperimentState changes an experiment's state. Moving back to
// running clears any recorded winner.
func (s *SQLiteStore) UpdateExperimentState(ctx context.Context, name string, state ExperimentState) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE experiments
		 SET state = ?, winner = CASE WHEN ? = 'running' THEN '' ELSE winner END, updated_at = ?
		 WHERE name = ?`,
		string(state), string(state), time.Now().Unix(), name,
	)
	if err != nil {
		return fmt.Errorf("failed to update experiment state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// SetWinner records the winning variant and marks the experiment completed.
func (s *SQLiteStore) SetWinner(ctx context.Context, name string, winner string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET state = ?, winner = ?, updated_at = ? WHERE name = ?`,
		string(StateCompleted), winner, time.Now().Unix(), name,
	)
	if err != nil {
		return fmt.Errorf("failed to set winner: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *SQLiteStore) DeleteExperiment(ctx context.Context, name string) error {
	// First delete related visitors
	_, err := s.db.ExecContext(ctx, `DELETE FROM visitors WHERE experiment = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete visitors: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM experiments WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// InsertVisitors adds records to an experiment in a single transaction.
// A visitor id that is already stored fails the whole batch.
func (s *SQLiteStore) InsertVisitors(ctx context.Context, name string, records []experiment.VisitorRecord) error {
	if _, err := s.GetExperiment(ctx, name); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertVisitors(ctx, tx, name, records); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE experiments SET updated_at = ? WHERE name = ?`, time.Now().Unix(), name); err != nil {
		return fmt.Errorf("failed to touch experiment: %w", err)
	}

	return tx.Commit()
}

// ImportExperiment creates an experiment and stores its visitors in one
// transaction. With replace, an existing experiment of the same name is
// removed in that same transaction; without it an existing name fails
// with ErrExists. On any error the database is left unchanged.
func (s *SQLiteStore) ImportExperiment(ctx context.Context, name string, variants []string, source string, records []experiment.VisitorRecord, replace bool) (*Experiment, error) {
	if variants == nil {
		variants = []string{}
	}
	variantsJSON, err := json.Marshal(variants)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variants: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM visitors WHERE experiment = ?`, name); err != nil {
			return nil, fmt.Errorf("failed to delete visitors: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM experiments WHERE name = ?`, name); err != nil {
			return nil, fmt.Errorf("failed to delete experiment: %w", err)
		}
	}

	now := time.Now().Unix()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO experiments (name, variants, state, source, created_at, updated_at)
		 VALUES (?, ?, 'running', ?, ?, ?)`,
		name, string(variantsJSON), source, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("failed to insert experiment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := insertVisitors(ctx, tx, name, records); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}

	return &Experiment{
		ID:        id,
		Name:      name,
		Variants:  variants,
		State:     StateRunning,
		Source:    source,
		CreatedAt: time.Unix(now, 0),
		UpdatedAt: time.Unix(now, 0),
	}, nil
}

func insertVisitors(ctx context.Context, tx *sql.Tx, name string, records []experiment.VisitorRecord) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO visitors (experiment, visitor_id, grp, segment, exposed_at, exposed_tz, converted, converted_at, converted_tz, revenue)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		exposedAt, exposedTZ := encodeTime(r.ExposedAt)
		var convertedAt sql.NullInt64
		var convertedTZ int
		if r.ConvertedAt != nil {
			convertedAt.Int64, convertedTZ = encodeTime(*r.ConvertedAt)
			convertedAt.Valid = true
		}
		if _, err := stmt.ExecContext(ctx,
			name, r.VisitorID, r.Group, r.Segment, exposedAt, exposedTZ, r.Converted, convertedAt, convertedTZ, r.Revenue,
		); err != nil {
			return fmt.Errorf("failed to insert visitor %s: %w", r.VisitorID, err)
		}
	}
	return nil
}

// encodeTime splits t into Unix nanoseconds and its UTC offset in seconds,
// so calendar dates read back the same as they were written.
func encodeTime(t time.Time) (int64, int) {
	_, offset := t.Zone()
	return t.UnixNano(), offset
}

func decodeTime(nanos int64, offset int) time.Time {
	t := time.Unix(0, nanos).UTC()
	if offset == 0 {
		return t
	}
	return t.In(time.FixedZone("", offset))
}

// GetVisitors returns an experiment's visitors ordered by visitor id.
func (s *SQLiteStore) GetVisitors(ctx context.Context, name string) ([]experiment.VisitorRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT visitor_id, grp, segment, exposed_at, exposed_tz, converted, converted_at, converted_tz, revenue
		 FROM visitors WHERE experiment = ? ORDER BY visitor_id`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get visitors: %w", err)
	}
	defer rows.Close()

	var records []experiment.VisitorRecord
	for rows.Next() {
		var r experiment.VisitorRecord
		var exposedAt int64
		var exposedTZ, convertedTZ int
		var convertedAt sql.NullInt64
		if err := rows.Scan(&r.VisitorID, &r.Group, &r.Segment, &exposedAt, &exposedTZ, &r.Converted, &convertedAt, &convertedTZ, &r.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan visitor: %w", err)
		}
		r.ExposedAt = decodeTime(exposedAt, exposedTZ)
		if convertedAt.Valid {
			t := decodeTime(convertedAt.Int64, convertedTZ)
			r.ConvertedAt = &t
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

func (s *SQLiteStore) GetGroupCounts(ctx context.Context, name string) ([]GroupCounts, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			grp,
			COUNT(DISTINCT visitor_id) as visitors,
			COALESCE(SUM(converted), 0) as conversions
		FROM visitors
		WHERE experiment = ?
		GROUP BY grp
		ORDER BY grp
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get group counts: %w", err)
	}
	defer rows.Close()

	var counts []GroupCounts
	for rows.Next() {
		var c GroupCounts
		if err := rows.Scan(&c.Group, &c.Visitors, &c.Conversions); err != nil {
			return nil, fmt.Errorf("failed to scan counts: %w", err)
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

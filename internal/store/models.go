package store

import "time"

type ExperimentState string

const (
	StateRunning   ExperimentState = "running"
	StateCompleted ExperimentState = "completed"
)

type Experiment struct {
	ID        int64
	Name      string
	Variants  []string // Decoded from JSON; empty means "use observed groups"
	State     ExperimentState
	Winner    string // Set when the experiment is concluded
	Source    string // File the visitors were imported from
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GroupCounts is a quick per-group tally computed in SQL.
type GroupCounts struct {
	Group       string `json:"group"`
	Visitors    int    `json:"visitors"`
	Conversions int    `json:"conversions"`
}

package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/headline-goat/ab-report/internal/experiment"
	"github.com/headline-goat/ab-report/internal/store"
)

type HealthResponse struct {
	Status           string `json:"status"`
	ExperimentsCount int    `json:"experiments_count"`
	DBSizeBytes      int64  `json:"db_size_bytes"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	experiments, err := s.store.ListExperiments(r.Context())
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Database size is only known for SQL-backed stores
	var dbSize int64
	if db, ok := s.store.(interface{ DB() *sql.DB }); ok {
		row := db.DB().QueryRowContext(r.Context(),
			"SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
		if err := row.Scan(&dbSize); err != nil {
			s.logger.Debug("failed to read database size", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:           "ok",
		ExperimentsCount: len(experiments),
		DBSizeBytes:      dbSize,
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
	})
}

type experimentResponse struct {
	Name        string              `json:"name"`
	State       string              `json:"state"`
	Variants    []string            `json:"variants"`
	Winner      string              `json:"winner,omitempty"`
	Source      string              `json:"source,omitempty"`
	CreatedAt   string              `json:"created_at"`
	Visitors    int                 `json:"visitors"`
	Conversions int                 `json:"conversions"`
	Groups      []store.GroupCounts `json:"groups"`
}

// handleExperimentsAPI lists stored experiments with per-group tallies.
func (s *Server) handleExperimentsAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		http.Error(w, "Failed to load experiments", http.StatusInternalServerError)
		return
	}

	response := make([]experimentResponse, 0, len(experiments))
	for _, e := range experiments {
		counts, err := s.store.GetGroupCounts(ctx, e.Name)
		if err != nil {
			http.Error(w, "Failed to load experiments", http.StatusInternalServerError)
			return
		}
		if counts == nil {
			counts = []store.GroupCounts{}
		}

		item := experimentResponse{
			Name:      e.Name,
			State:     string(e.State),
			Variants:  e.Variants,
			Winner:    e.Winner,
			Source:    e.Source,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
			Groups:    counts,
		}
		for _, c := range counts {
			item.Visitors += c.Visitors
			item.Conversions += c.Conversions
		}
		response = append(response, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{"experiments": response})
}

type schemaErrorResponse struct {
	Error  string                  `json:"error"`
	Fields []experiment.FieldError `json:"fields"`
}

// handleReportAPI serves /api/experiments/<name>/report.
func (s *Server) handleReportAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/experiments/")
	name, ok := strings.CutSuffix(rest, "/report")
	if !ok || name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}

	_, report, err := s.analyze(r.Context(), name)
	if err != nil {
		s.writeAnalyzeError(w, r, name, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeAnalyzeError(w http.ResponseWriter, r *http.Request, name string, err error) {
	var schemaErr *experiment.SchemaError
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.NotFound(w, r)
	case errors.As(err, &schemaErr):
		writeJSON(w, http.StatusUnprocessableEntity, schemaErrorResponse{
			Error:  "schema error",
			Fields: schemaErr.Fields,
		})
	default:
		s.logger.Error("report failed", "experiment", name, "error", err)
		http.Error(w, "Failed to compute report", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

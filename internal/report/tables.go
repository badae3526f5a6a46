// Package report writes analysis reports for downstream consumers: CSV
// tables for BI tools, JSON, a Markdown summary and a terminal view.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/headline-goat/ab-report/internal/analysis"
)

// Table file names written by WriteTables.
const (
	GroupsFile       = "groups.csv"
	DailyFile        = "daily.csv"
	SegmentsFile     = "segments.csv"
	SignificanceFile = "significance.csv"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteGroups writes the group table.
func WriteGroups(w io.Writer, groups []analysis.GroupSummary) error {
	rows := [][]string{{"group", "visitors", "conversions", "revenue", "cr", "rpv", "cr_low", "cr_high"}}
	for _, g := range groups {
		rows = append(rows, []string{
			g.Group,
			strconv.Itoa(g.Visitors),
			strconv.Itoa(g.Conversions),
			formatFloat(g.Revenue),
			g.CR.String(),
			g.RPV.String(),
			g.CRLow.String(),
			g.CRHigh.String(),
		})
	}
	return writeAll(w, rows)
}

// WriteDaily writes the daily table.
func WriteDaily(w io.Writer, daily []analysis.DailySummary) error {
	rows := [][]string{{"date", "group", "conversions", "revenue", "visitors", "cr_day"}}
	for _, d := range daily {
		rows = append(rows, []string{
			d.Date,
			d.Group,
			strconv.Itoa(d.Conversions),
			formatFloat(d.Revenue),
			strconv.Itoa(d.Visitors),
			d.CRDay.String(),
		})
	}
	return writeAll(w, rows)
}

// WriteSegments writes the segment table.
func WriteSegments(w io.Writer, segments []analysis.SegmentSummary) error {
	rows := [][]string{{"segment", "group", "visitors", "conversions", "revenue", "cr", "rpv"}}
	for _, s := range segments {
		rows = append(rows, []string{
			s.Segment,
			s.Group,
			strconv.Itoa(s.Visitors),
			strconv.Itoa(s.Conversions),
			formatFloat(s.Revenue),
			s.CR.String(),
			s.RPV.String(),
		})
	}
	return writeAll(w, rows)
}

// WriteSignificance writes the one-row significance summary.
func WriteSignificance(w io.Writer, sig analysis.Significance) error {
	return writeAll(w, [][]string{
		{"status", "control", "treatment", "z", "p_value", "lift"},
		{string(sig.Status), sig.Control, sig.Treatment, sig.Z.String(), sig.PValue.String(), sig.Lift.String()},
	})
}

func writeAll(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// WriteTables writes the four CSV tables into dir, creating it if needed.
func WriteTables(dir string, r *analysis.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{GroupsFile, func(w io.Writer) error { return WriteGroups(w, r.Groups) }},
		{DailyFile, func(w io.Writer) error { return WriteDaily(w, r.Daily) }},
		{SegmentsFile, func(w io.Writer) error { return WriteSegments(w, r.Segments) }},
		{SignificanceFile, func(w io.Writer) error { return WriteSignificance(w, r.Significance) }},
	}

	for _, tw := range writers {
		if err := writeFile(filepath.Join(dir, tw.name), tw.write); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *analysis.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// WriteFile writes content produced by write to path, creating parent
// directories.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	return writeFile(path, write)
}

// Package analysis turns an exposure table into the KPI report of an A/B
// experiment: per-group conversion and revenue with Wilson intervals, a
// two-proportion z-test, and daily and segment breakdowns.
package analysis

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/headline-goat/ab-report/internal/experiment"
	"github.com/headline-goat/ab-report/internal/stats"
)

// ErrNotApplicable is reported when the significance test's precondition
// (exactly two groups) does not hold.
var ErrNotApplicable = errors.New("not applicable")

// Options configures an Engine.
type Options struct {
	// Confidence level of the conversion-rate intervals. Zero means 0.95.
	Confidence float64

	// Variants optionally declares the group labels. A declared variant
	// without records still gets a (zero-visitor) summary row, records of
	// undeclared groups are rejected, and the first two entries are the
	// control and treatment of the significance test.
	Variants []string

	Logger *slog.Logger
}

// Engine computes reports. It keeps no state between calls.
type Engine struct {
	confidence float64
	variants   []string
	logger     *slog.Logger
}

func New(opts Options) (*Engine, error) {
	confidence := opts.Confidence
	if confidence == 0 {
		confidence = stats.DefaultConfidence
	}
	if _, err := stats.ZScore(confidence); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(opts.Variants))
	for _, v := range opts.Variants {
		if v == "" {
			return nil, fmt.Errorf("variant labels must not be empty")
		}
		if seen[v] {
			return nil, fmt.Errorf("variant %q declared twice", v)
		}
		seen[v] = true
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		confidence: confidence,
		variants:   append([]string(nil), opts.Variants...),
		logger:     logger,
	}, nil
}

func (e *Engine) Confidence() float64 {
	return e.confidence
}

// Analyze validates records and computes the full report. Invalid input
// fails with *experiment.SchemaError before anything is aggregated.
// Cells that cannot be computed are Undefined and listed in Report.Issues.
func (e *Engine) Analyze(records []experiment.VisitorRecord) (*Report, error) {
	if err := experiment.Validate(records, e.variants); err != nil {
		return nil, err
	}

	report := &Report{Confidence: e.confidence}

	overall := Aggregate(records, ByGroup)
	report.Groups = e.groupSummaries(overall, report)
	report.Significance = e.significance(report.Groups)
	if err := report.Significance.Err; err != nil {
		report.addIssue("significance", err)
	}
	report.Daily = dailySummaries(Aggregate(records, ByDayGroup), report.Groups)
	report.Segments = segmentSummaries(Aggregate(records, BySegmentGroup))

	for _, issue := range report.Issues {
		e.logger.Debug("undefined statistic", "scope", issue.Scope, "reason", issue.Reason)
	}
	e.logger.Debug("analysis complete",
		"visitors", len(records),
		"groups", len(report.Groups),
		"days", len(report.Daily),
		"segments", len(report.Segments),
	)

	return report, nil
}

func (e *Engine) groupLabels(overall []Row) []string {
	if len(e.variants) > 0 {
		labels := append([]string(nil), e.variants...)
		sort.Strings(labels)
		return labels
	}
	labels := make([]string, len(overall))
	for i, row := range overall {
		labels[i] = row.Group
	}
	return labels
}

func (e *Engine) groupSummaries(overall []Row, report *Report) []GroupSummary {
	byGroup := make(map[string]Row, len(overall))
	for _, row := range overall {
		byGroup[row.Group] = row
	}

	labels := e.groupLabels(overall)
	groups := make([]GroupSummary, len(labels))
	for i, label := range labels {
		row, ok := byGroup[label]
		if !ok {
			row = Row{Key: Key{Group: label}}
		}

		g := GroupSummary{
			Group:       label,
			Visitors:    row.Visitors,
			Conversions: row.Conversions,
			Revenue:     row.Revenue,
			CR:          row.CR,
			RPV:         row.RPV,
		}

		lower, upper, err := stats.WilsonInterval(row.Conversions, row.Visitors, e.confidence)
		if err != nil {
			report.addIssue("group "+label, err)
		} else {
			g.CRLow, g.CRHigh = Defined(lower), Defined(upper)
		}

		groups[i] = g
	}
	return groups
}

func (e *Engine) significance(groups []GroupSummary) Significance {
	if len(groups) != 2 {
		err := fmt.Errorf("significance test: %w: %d groups, need exactly 2", ErrNotApplicable, len(groups))
		return Significance{Status: StatusNotApplicable, Reason: err.Error(), Err: err}
	}

	control, treatment := groups[0], groups[1]
	if len(e.variants) == 2 && e.variants[0] != control.Group {
		control, treatment = treatment, control
	}

	sig := Significance{
		Control:   control.Group,
		Treatment: treatment.Group,
	}

	if crC, ok := control.CR.Value(); ok {
		if crT, ok := treatment.CR.Value(); ok {
			sig.Lift = Defined(crT - crC)
		}
	}

	res, err := stats.TwoProportionZTest(
		control.Conversions, control.Visitors,
		treatment.Conversions, treatment.Visitors,
	)
	if err != nil {
		sig.Status = StatusInsufficientData
		sig.Reason = err.Error()
		sig.Err = err
		return sig
	}

	sig.Status = StatusOK
	sig.Z = Defined(res.Z)
	sig.PValue = Defined(res.PValue)
	return sig
}

func dailySummaries(rows []Row, groups []GroupSummary) []DailySummary {
	cohort := make(map[string]int, len(groups))
	for _, g := range groups {
		cohort[g.Group] = g.Visitors
	}

	daily := make([]DailySummary, len(rows))
	for i, row := range rows {
		// Fixed cohort denominator: the group's overall visitor count.
		visitors := cohort[row.Group]
		daily[i] = DailySummary{
			Date:        row.Dim,
			Group:       row.Group,
			Conversions: row.Conversions,
			Revenue:     row.Revenue,
			Visitors:    visitors,
			CRDay:       Ratio(float64(row.Conversions), visitors),
		}
	}
	return daily
}

func segmentSummaries(rows []Row) []SegmentSummary {
	segments := make([]SegmentSummary, len(rows))
	for i, row := range rows {
		segments[i] = SegmentSummary{
			Segment:     row.Dim,
			Group:       row.Group,
			Visitors:    row.Visitors,
			Conversions: row.Conversions,
			Revenue:     row.Revenue,
			CR:          row.CR,
			RPV:         row.RPV,
		}
	}
	return segments
}

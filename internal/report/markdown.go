package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/headline-goat/ab-report/internal/analysis"
)

// MarkdownOptions controls the stakeholder report.
type MarkdownOptions struct {
	Title       string
	GeneratedAt time.Time // omitted when zero
	TopSegments int       // segments shown, by visitors; 0 shows all
	RecentDays  int       // most recent days shown; 0 shows all
	Currency    string
}

// Percent formats a rate as a percentage with two decimals, or NA.
func Percent(m analysis.Metric) string {
	v, ok := m.Value()
	if !ok {
		return analysis.NA
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

// Money formats an amount with thousands separators and two decimals.
func Money(v float64, currency string) string {
	if v < 0 {
		return "-" + currency + humanize.FormatFloat("#,###.##", -v)
	}
	return currency + humanize.FormatFloat("#,###.##", v)
}

func moneyMetric(m analysis.Metric, currency string) string {
	v, ok := m.Value()
	if !ok {
		return analysis.NA
	}
	return Money(v, currency)
}

// Markdown renders the stakeholder summary of a report.
func Markdown(r *analysis.Report, opts MarkdownOptions) string {
	var b strings.Builder

	title := opts.Title
	if title == "" {
		title = "Experiment"
	}
	fmt.Fprintf(&b, "# A/B Test Results: %s\n\n", title)
	if !opts.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "_Generated: %s_\n\n", opts.GeneratedAt.Format("2006-01-02 15:04 MST"))
	}

	b.WriteString("## Executive summary\n\n")
	writeHeadline(&b, r, opts)
	b.WriteString("\n---\n\n")

	b.WriteString("## Group summary\n\n")
	ciHeader := fmt.Sprintf("%.4g%% CI", r.Confidence*100)
	groupRows := make([][]string, len(r.Groups))
	for i, g := range r.Groups {
		groupRows[i] = []string{
			g.Group,
			humanize.Comma(int64(g.Visitors)),
			humanize.Comma(int64(g.Conversions)),
			Percent(g.CR),
			interval(g),
			moneyMetric(g.RPV, opts.Currency),
		}
	}
	writeTable(&b, []string{"Group", "Visitors", "Conversions", "CR", ciHeader, "RPV"}, groupRows)
	b.WriteString("\n*CR = Conversion Rate; RPV = Revenue per Visitor.*\n\n")

	daily := RecentDays(r.Daily, opts.RecentDays)
	if opts.RecentDays > 0 {
		fmt.Fprintf(&b, "## Recent daily performance (last %d days)\n\n", opts.RecentDays)
	} else {
		b.WriteString("## Daily performance\n\n")
	}
	if len(daily) == 0 {
		b.WriteString("_No conversions in the test window._\n\n")
	} else {
		dailyRows := make([][]string, len(daily))
		for i, d := range daily {
			dailyRows[i] = []string{
				d.Date,
				d.Group,
				humanize.Comma(int64(d.Conversions)),
				Money(d.Revenue, opts.Currency),
				Percent(d.CRDay),
			}
		}
		writeTable(&b, []string{"Date", "Group", "Conversions", "Revenue", "CR (of cohort)"}, dailyRows)
		b.WriteString("\n")
	}

	b.WriteString("## Top segments by visitors\n\n")
	segments := TopSegments(r.Segments, opts.TopSegments)
	segmentRows := make([][]string, len(segments))
	for i, s := range segments {
		segmentRows[i] = []string{
			s.Segment,
			s.Group,
			humanize.Comma(int64(s.Visitors)),
			humanize.Comma(int64(s.Conversions)),
			Percent(s.CR),
			moneyMetric(s.RPV, opts.Currency),
			Money(s.Revenue, opts.Currency),
		}
	}
	writeTable(&b, []string{"Segment", "Group", "Visitors", "Conversions", "CR", "RPV", "Revenue"}, segmentRows)

	if chart := GroupChart(r, 40); chart != "" {
		b.WriteString("\n## Visuals\n\n")
		fmt.Fprintf(&b, "Conversion rate by group with %.4g%% CI:\n\n```\n%s```\n", r.Confidence*100, chart)
	}

	b.WriteString("\n## Recommendation\n\n")
	sig := r.Significance
	switch {
	case sig.Significant(1 - r.Confidence):
		lift, _ := sig.Lift.Value()
		if lift > 0 {
			fmt.Fprintf(&b, "- Group %s shows a statistically significant lift over %s; consider rolling it out.\n", sig.Treatment, sig.Control)
		} else {
			fmt.Fprintf(&b, "- Group %s performs significantly worse than %s; keep the control experience.\n", sig.Treatment, sig.Control)
		}
	case sig.Status == analysis.StatusOK:
		b.WriteString("- The difference is not yet significant; continue the test to collect more visitors.\n")
	default:
		b.WriteString("- Continue to collect data until each group has enough visitors to evaluate CR with confidence intervals.\n")
	}
	b.WriteString("- Review segment performance: if certain states respond better, tailor creative and targeting there.\n")
	b.WriteString("- Track RPV and not just CR to avoid optimising for low-value conversions.\n")

	return b.String()
}

func writeHeadline(b *strings.Builder, r *analysis.Report, opts MarkdownOptions) {
	sig := r.Significance

	if sig.Control != "" {
		control, _ := r.Group(sig.Control)
		treatment, _ := r.Group(sig.Treatment)
		for _, g := range []analysis.GroupSummary{control, treatment} {
			fmt.Fprintf(b, "- **Group %s**: Visitors %s, CR %s, RPV %s\n",
				g.Group, humanize.Comma(int64(g.Visitors)), Percent(g.CR), moneyMetric(g.RPV, opts.Currency))
		}

		rpvLift := analysis.Undefined
		if c, ok := control.RPV.Value(); ok {
			if t, ok := treatment.RPV.Value(); ok {
				rpvLift = analysis.Defined(t - c)
			}
		}
		fmt.Fprintf(b, "- **Lift (%s vs %s)**: CR %s | RPV %s\n",
			sig.Treatment, sig.Control, Percent(sig.Lift), moneyMetric(rpvLift, opts.Currency))
	} else if best, ok := topGroup(r.Groups); ok {
		fmt.Fprintf(b, "- **Top group**: %s (CR %s, RPV %s)\n",
			best.Group, Percent(best.CR), moneyMetric(best.RPV, opts.Currency))
	}

	switch sig.Status {
	case analysis.StatusOK:
		verdict := "not significant"
		if sig.Significant(1 - r.Confidence) {
			verdict = "significant"
		}
		fmt.Fprintf(b, "- **Significance**: z = %.3f, p-value = %.4f (%s at %.4g%%)\n",
			mustValue(sig.Z), mustValue(sig.PValue), verdict, (1-r.Confidence)*100)
	case analysis.StatusInsufficientData:
		b.WriteString("- **Significance**: insufficient data\n")
	default:
		b.WriteString("- **Significance**: not applicable (requires exactly two groups)\n")
	}
}

func mustValue(m analysis.Metric) float64 {
	v, _ := m.Value()
	return v
}

func interval(g analysis.GroupSummary) string {
	if !g.CRLow.IsDefined() || !g.CRHigh.IsDefined() {
		return analysis.NA
	}
	return fmt.Sprintf("[%s, %s]", Percent(g.CRLow), Percent(g.CRHigh))
}

// topGroup returns the group with the highest defined CR.
func topGroup(groups []analysis.GroupSummary) (analysis.GroupSummary, bool) {
	var best analysis.GroupSummary
	found := false
	for _, g := range groups {
		cr, ok := g.CR.Value()
		if !ok {
			continue
		}
		if bestCR, _ := best.CR.Value(); !found || cr > bestCR {
			best, found = g, true
		}
	}
	return best, found
}

// TopSegments returns the n segment rows with the most visitors, ties
// broken by (segment, group). n <= 0 returns all rows in that order.
func TopSegments(segments []analysis.SegmentSummary, n int) []analysis.SegmentSummary {
	sorted := append([]analysis.SegmentSummary(nil), segments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Visitors != b.Visitors {
			return a.Visitors > b.Visitors
		}
		if a.Segment != b.Segment {
			return a.Segment < b.Segment
		}
		return a.Group < b.Group
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// RecentDays keeps the rows of the last n distinct dates. n <= 0 keeps all.
func RecentDays(daily []analysis.DailySummary, n int) []analysis.DailySummary {
	dates := distinctDates(daily)
	if n <= 0 || len(dates) <= n {
		return daily
	}
	cutoff := dates[len(dates)-n]

	var out []analysis.DailySummary
	for _, d := range daily {
		if d.Date >= cutoff {
			out = append(out, d)
		}
	}
	return out
}

func distinctDates(daily []analysis.DailySummary) []string {
	seen := make(map[string]bool)
	var dates []string
	for _, d := range daily {
		if !seen[d.Date] {
			seen[d.Date] = true
			dates = append(dates, d.Date)
		}
	}
	sort.Strings(dates)
	return dates
}

func writeTable(b *strings.Builder, header []string, rows [][]string) {
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, row := range rows {
		escaped := make([]string, len(row))
		for i, cell := range row {
			escaped[i] = strings.ReplaceAll(cell, "|", `\|`)
		}
		b.WriteString("| " + strings.Join(escaped, " | ") + " |\n")
	}
}

// SignificanceLine describes the significance test in one plain sentence,
// judged at alpha = 1 - confidence.
func SignificanceLine(r *analysis.Report) string {
	sig := r.Significance
	alpha := 1 - r.Confidence
	switch sig.Status {
	case analysis.StatusOK:
		verdict := "not significant"
		if sig.Significant(alpha) {
			verdict = "significant"
		}
		return fmt.Sprintf("Lift (%s vs %s) %s, z = %.3f, p-value = %.4f (%s at %.4g%%)",
			sig.Treatment, sig.Control, Percent(sig.Lift), mustValue(sig.Z), mustValue(sig.PValue), verdict, alpha*100)
	case analysis.StatusInsufficientData:
		return "Insufficient data: " + sig.Reason
	default:
		return fmt.Sprintf("Not applicable: requires exactly two groups, found %d", len(r.Groups))
	}
}

// Interval formats a group's confidence interval as "[lo%, hi%]", or NA.
func Interval(g analysis.GroupSummary) string {
	return interval(g)
}

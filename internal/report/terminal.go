package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/headline-goat/ab-report/internal/analysis"
)

// TerminalOptions controls the console view of a report.
type TerminalOptions struct {
	Title       string
	Currency    string
	TopSegments int
	ChartWidth  int
	ChartHeight int
}

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Yellow, asciigraph.Magenta, asciigraph.Cyan,
}

// Terminal writes a styled summary of r to w. Styling is dropped when w is
// not a terminal.
func Terminal(w io.Writer, r *analysis.Report, opts TerminalOptions) error {
	renderer := lipgloss.NewRenderer(w)
	titleStyle := renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	headerStyle := renderer.NewStyle().Bold(true)
	mutedStyle := renderer.NewStyle().Foreground(lipgloss.Color("#777777"))
	goodStyle := renderer.NewStyle().Foreground(lipgloss.Color("#04B575"))
	warnStyle := renderer.NewStyle().Foreground(lipgloss.Color("#FFAA00"))

	var b strings.Builder

	if opts.Title != "" {
		b.WriteString(titleStyle.Render("EXPERIMENT: "+opts.Title) + "\n\n")
	}

	ciHeader := fmt.Sprintf("%.4g%% CI", r.Confidence*100)
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-12s  %-9s  %-11s  %-8s  %-18s  %s",
		"GROUP", "VISITORS", "CONVERSIONS", "CR", ciHeader, "RPV")) + "\n")
	b.WriteString(strings.Repeat("─", 72) + "\n")

	for _, g := range r.Groups {
		fmt.Fprintf(&b, "%s  %-9s  %-11s  %-8s  %-18s  %s\n",
			fitLabel(g.Group, 12),
			humanize.Comma(int64(g.Visitors)),
			humanize.Comma(int64(g.Conversions)),
			Percent(g.CR),
			interval(g),
			moneyMetric(g.RPV, opts.Currency),
		)
	}
	b.WriteString("\n")

	sig := r.Significance
	switch sig.Status {
	case analysis.StatusOK:
		line := fmt.Sprintf("Lift (%s vs %s): %s   z = %.3f   p-value = %.4f",
			sig.Treatment, sig.Control, Percent(sig.Lift), mustValue(sig.Z), mustValue(sig.PValue))
		if sig.Significant(1 - r.Confidence) {
			b.WriteString(goodStyle.Render(line+"   (significant)") + "\n")
		} else {
			b.WriteString(line + "   " + mutedStyle.Render("(not yet significant)") + "\n")
		}
	case analysis.StatusInsufficientData:
		b.WriteString(warnStyle.Render("Statistical significance: insufficient data") + "\n")
	default:
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Statistical significance: not applicable (%d groups)", len(r.Groups))) + "\n")
	}

	if chart := GroupChart(r, 40); chart != "" {
		b.WriteString("\n" + mutedStyle.Render("CR by group with CI") + "\n" + chart)
	}

	color := renderer.ColorProfile() != termenv.Ascii
	if chart := DailyChart(r, opts.ChartWidth, opts.ChartHeight, color); chart != "" {
		b.WriteString("\n" + chart + "\n")
	}

	if segments := TopSegments(r.Segments, opts.TopSegments); len(segments) > 0 {
		b.WriteString("\n" + headerStyle.Render(fmt.Sprintf("%-12s  %-12s  %-9s  %-8s  %s", "SEGMENT", "GROUP", "VISITORS", "CR", "RPV")) + "\n")
		for _, s := range segments {
			fmt.Fprintf(&b, "%s  %s  %-9s  %-8s  %s\n",
				fitLabel(s.Segment, 12), fitLabel(s.Group, 12), humanize.Comma(int64(s.Visitors)), Percent(s.CR), moneyMetric(s.RPV, opts.Currency))
		}
	}

	for _, issue := range r.Issues {
		b.WriteString(mutedStyle.Render("note: "+issue.Scope+": "+issue.Reason) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// DailyChart plots cumulative conversion rate per group over the test
// window. It returns "" when there are fewer than two days of data.
func DailyChart(r *analysis.Report, width, height int, color bool) string {
	dates := distinctDates(r.Daily)
	if len(dates) < 2 || len(r.Groups) == 0 {
		return ""
	}
	if width < 20 {
		width = 60
	}
	if height < 3 {
		height = 10
	}

	dateIdx := make(map[string]int, len(dates))
	for i, d := range dates {
		dateIdx[d] = i
	}

	groups := make([]string, len(r.Groups))
	for i, g := range r.Groups {
		groups[i] = g.Group
	}
	sort.Strings(groups)
	groupIdx := make(map[string]int, len(groups))
	for i, g := range groups {
		groupIdx[g] = i
	}

	series := make([][]float64, len(groups))
	for i := range series {
		series[i] = make([]float64, len(dates))
	}
	for _, d := range r.Daily {
		if v, ok := d.CRDay.Value(); ok {
			series[groupIdx[d.Group]][dateIdx[d.Date]] += v * 100
		}
	}
	for _, s := range series {
		for i := 1; i < len(s); i++ {
			s[i] += s[i-1]
		}
	}

	options := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(2),
		asciigraph.Caption(fmt.Sprintf("cumulative CR %% (%s to %s): %s",
			dates[0], dates[len(dates)-1], strings.Join(groups, ", "))),
	}
	if color {
		colors := make([]asciigraph.AnsiColor, len(series))
		for i := range colors {
			colors[i] = seriesColors[i%len(seriesColors)]
		}
		options = append(options, asciigraph.SeriesColors(colors...))
	}

	return asciigraph.PlotMany(series, options...)
}

// fitLabel pads or truncates s to exactly width terminal cells.
func fitLabel(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "...")
	}
	return runewidth.FillRight(s, width)
}

// GroupChart draws one row per group: the CI as a horizontal bar with the
// point estimate marked, on a scale from 0 to the largest upper bound.
// Groups without a defined CR are skipped. It returns "" when nothing can
// be drawn.
func GroupChart(r *analysis.Report, width int) string {
	if width < 10 {
		width = 40
	}

	var groups []analysis.GroupSummary
	maxHigh := 0.0
	for _, g := range r.Groups {
		high, ok := g.CRHigh.Value()
		if !ok || !g.CR.IsDefined() || !g.CRLow.IsDefined() {
			continue
		}
		groups = append(groups, g)
		maxHigh = math.Max(maxHigh, high)
	}
	if len(groups) == 0 || maxHigh <= 0 {
		return ""
	}

	pos := func(m analysis.Metric) int {
		v := mustValue(m)
		p := int(math.Round(v / maxHigh * float64(width-1)))
		return min(max(p, 0), width-1)
	}

	var b strings.Builder
	for _, g := range groups {
		line := []rune(strings.Repeat(" ", width))
		lo, hi := pos(g.CRLow), pos(g.CRHigh)
		for i := lo; i <= hi; i++ {
			line[i] = '─'
		}
		line[lo], line[hi] = '├', '┤'
		line[pos(g.CR)] = '●'
		fmt.Fprintf(&b, "%s │%s│ %s %s\n", fitLabel(g.Group, 12), string(line), Percent(g.CR), interval(g))
	}
	top := Percent(analysis.Defined(maxHigh))
	fmt.Fprintf(&b, "%s  0%%%s%s\n", strings.Repeat(" ", 12), strings.Repeat(" ", max(width-2-len(top), 1)), top)
	return b.String()
}

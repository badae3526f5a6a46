package server

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/headline-goat/ab-report/internal/analysis"
	"github.com/headline-goat/ab-report/internal/dashboard"
	"github.com/headline-goat/ab-report/internal/report"
)

const (
	dashboardTopSegments = 10
	chartWidth           = 72
	chartHeight          = 12
)

// Dashboard template data structures
type layoutData struct {
	Title   string
	CSS     template.CSS
	Content template.HTML
}

type listData struct {
	Experiments []experimentListItem
}

type experimentListItem struct {
	Name           string
	State          string
	GroupCount     int
	Visitors       string
	ConversionRate string
	Winner         string
	CreatedAt      string
}

type detailData struct {
	Name             string
	State            string
	Winner           string
	Source           string
	CreatedAt        string
	ConfidenceLabel  string
	Groups           []detailGroup
	SignificanceLine string
	Significant      bool
	Chart            string
	Segments         []detailSegment
	Issues           []analysis.Issue
}

type detailGroup struct {
	Group       string
	Visitors    string
	Conversions string
	CR          string
	Interval    string
	Revenue     string
	RPV         string
}

type detailSegment struct {
	Segment     string
	Group       string
	Visitors    string
	Conversions string
	CR          string
	RPV         string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	// Handle logout
	if r.URL.Query().Get("logout") == "1" {
		http.SetCookie(w, &http.Cookie{
			Name:   tokenCookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	ctx := r.Context()

	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		http.Error(w, "Failed to load experiments", http.StatusInternalServerError)
		return
	}

	items := make([]experimentListItem, len(experiments))
	for i, e := range experiments {
		counts, err := s.store.GetGroupCounts(ctx, e.Name)
		if err != nil {
			s.logger.Error("failed to load group counts", "experiment", e.Name, "error", err)
			http.Error(w, "Failed to load experiments", http.StatusInternalServerError)
			return
		}

		totalVisitors := 0
		totalConversions := 0
		for _, c := range counts {
			totalVisitors += c.Visitors
			totalConversions += c.Conversions
		}

		items[i] = experimentListItem{
			Name:           e.Name,
			State:          string(e.State),
			GroupCount:     len(counts),
			Visitors:       humanize.Comma(int64(totalVisitors)),
			ConversionRate: report.Percent(analysis.Ratio(float64(totalConversions), totalVisitors)),
			Winner:         e.Winner,
			CreatedAt:      e.CreatedAt.Format("Jan 2, 2006"),
		}
	}

	s.renderDashboard(w, "Dashboard", "list.html", listData{Experiments: items})
}

func (s *Server) handleDashboardExperiment(w http.ResponseWriter, r *http.Request) {
	// Extract experiment name from path: /dashboard/experiment/<name>
	name := r.URL.Path[len("/dashboard/experiment/"):]
	if name == "" {
		http.NotFound(w, r)
		return
	}

	exp, rep, err := s.analyze(r.Context(), name)
	if err != nil {
		s.writeAnalyzeError(w, r, name, err)
		return
	}

	groups := make([]detailGroup, len(rep.Groups))
	for i, g := range rep.Groups {
		groups[i] = detailGroup{
			Group:       g.Group,
			Visitors:    humanize.Comma(int64(g.Visitors)),
			Conversions: humanize.Comma(int64(g.Conversions)),
			CR:          report.Percent(g.CR),
			Interval:    report.Interval(g),
			Revenue:     report.Money(g.Revenue, s.currency),
			RPV:         s.money(g.RPV),
		}
	}

	top := report.TopSegments(rep.Segments, dashboardTopSegments)
	segments := make([]detailSegment, len(top))
	for i, sg := range top {
		segments[i] = detailSegment{
			Segment:     sg.Segment,
			Group:       sg.Group,
			Visitors:    humanize.Comma(int64(sg.Visitors)),
			Conversions: humanize.Comma(int64(sg.Conversions)),
			CR:          report.Percent(sg.CR),
			RPV:         s.money(sg.RPV),
		}
	}

	data := detailData{
		Name:             exp.Name,
		State:            string(exp.State),
		Winner:           exp.Winner,
		Source:           exp.Source,
		CreatedAt:        exp.CreatedAt.Format("Jan 2, 2006"),
		ConfidenceLabel:  fmt.Sprintf("%.4g%%", rep.Confidence*100),
		Groups:           groups,
		SignificanceLine: report.SignificanceLine(rep),
		Significant:      rep.Significance.Significant(1 - rep.Confidence),
		Chart:            report.DailyChart(rep, chartWidth, chartHeight, false),
		Segments:         segments,
		Issues:           rep.Issues,
	}

	s.renderDashboard(w, exp.Name, "detail.html", data)
}

func (s *Server) money(m analysis.Metric) string {
	v, ok := m.Value()
	if !ok {
		return analysis.NA
	}
	return report.Money(v, s.currency)
}

func (s *Server) renderDashboard(w http.ResponseWriter, title, contentTemplate string, data any) {
	// Load CSS
	cssBytes, err := dashboard.Assets.ReadFile("assets/style.css")
	if err != nil {
		http.Error(w, "Failed to load styles", http.StatusInternalServerError)
		return
	}

	// Load and execute content template
	contentTmplBytes, err := dashboard.Templates.ReadFile("templates/" + contentTemplate)
	if err != nil {
		http.Error(w, "Failed to load template", http.StatusInternalServerError)
		return
	}

	contentTmpl, err := template.New("content").Parse(string(contentTmplBytes))
	if err != nil {
		http.Error(w, "Failed to parse template", http.StatusInternalServerError)
		return
	}

	var contentBuf bytes.Buffer
	if err := contentTmpl.Execute(&contentBuf, data); err != nil {
		http.Error(w, fmt.Sprintf("Failed to render template: %v", err), http.StatusInternalServerError)
		return
	}

	// Load and execute layout template
	layoutTmplBytes, err := dashboard.Templates.ReadFile("templates/layout.html")
	if err != nil {
		http.Error(w, "Failed to load layout", http.StatusInternalServerError)
		return
	}

	layoutTmpl, err := template.New("layout").Parse(string(layoutTmplBytes))
	if err != nil {
		http.Error(w, "Failed to parse layout", http.StatusInternalServerError)
		return
	}

	page := layoutData{
		Title:   title,
		CSS:     template.CSS(cssBytes),
		Content: template.HTML(contentBuf.String()),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := layoutTmpl.Execute(w, page); err != nil {
		s.logger.Error("failed to render page", "template", contentTemplate, "error", err)
	}
}

package analysis

// GroupSummary holds the overall KPIs of one variant.
type GroupSummary struct {
	Group       string  `json:"group"`
	Visitors    int     `json:"visitors"`
	Conversions int     `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	CR          Metric  `json:"cr"`
	RPV         Metric  `json:"rpv"`
	CRLow       Metric  `json:"cr_low"`
	CRHigh      Metric  `json:"cr_high"`
}

// DailySummary holds one day's conversions for a variant. Visitors is the
// variant's overall visitor count, so CRDay is a share of the whole cohort
// rather than of that day's active visitors.
type DailySummary struct {
	Date        string  `json:"date"`
	Group       string  `json:"group"`
	Conversions int     `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	Visitors    int     `json:"visitors"`
	CRDay       Metric  `json:"cr_day"`
}

// SegmentSummary holds the KPIs of one (segment, variant) cell.
type SegmentSummary struct {
	Segment     string  `json:"segment"`
	Group       string  `json:"group"`
	Visitors    int     `json:"visitors"`
	Conversions int     `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	CR          Metric  `json:"cr"`
	RPV         Metric  `json:"rpv"`
}

type SignificanceStatus string

const (
	StatusOK               SignificanceStatus = "ok"
	StatusInsufficientData SignificanceStatus = "insufficient_data"
	StatusNotApplicable    SignificanceStatus = "not_applicable"
)

// Significance is the two-proportion z-test of treatment against control.
// Lift is CR(treatment) - CR(control) and is defined whenever both rates
// are, even if the test itself is not.
type Significance struct {
	Status    SignificanceStatus `json:"status"`
	Control   string             `json:"control,omitempty"`
	Treatment string             `json:"treatment,omitempty"`
	Z         Metric             `json:"z"`
	PValue    Metric             `json:"p_value"`
	Lift      Metric             `json:"lift"`
	Reason    string             `json:"reason,omitempty"`
	Err       error              `json:"-"`
}

// Significant reports whether the test ran and its p-value is below alpha.
func (s Significance) Significant(alpha float64) bool {
	p, ok := s.PValue.Value()
	return ok && p < alpha
}

// Issue records a statistic that could not be computed.
type Issue struct {
	Scope  string `json:"scope"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Report is the complete result of one analysis run.
type Report struct {
	Confidence   float64          `json:"confidence"`
	Groups       []GroupSummary   `json:"groups"`
	Significance Significance     `json:"significance"`
	Daily        []DailySummary   `json:"daily"`
	Segments     []SegmentSummary `json:"segments"`
	Issues       []Issue          `json:"issues,omitempty"`
}

func (r *Report) addIssue(scope string, err error) {
	r.Issues = append(r.Issues, Issue{Scope: scope, Reason: err.Error(), Err: err})
}

// Group returns the summary for a label.
func (r *Report) Group(label string) (GroupSummary, bool) {
	for _, g := range r.Groups {
		if g.Group == label {
			return g, true
		}
	}
	return GroupSummary{}, false
}

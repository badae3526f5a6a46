// Package experiment defines the per-visitor exposure table an analysis
// runs over, together with its validation rules and CSV encodings.
package experiment

import "time"

// VisitorRecord is one visitor's exposure and outcome within the test window.
type VisitorRecord struct {
	VisitorID   string     `json:"visitor_id" validate:"required"`
	Group       string     `json:"group" validate:"required"`
	Segment     string     `json:"segment" validate:"required"`
	ExposedAt   time.Time  `json:"exposed_at" validate:"required"`
	Converted   bool       `json:"converted"`
	ConvertedAt *time.Time `json:"converted_at,omitempty" validate:"required_if=Converted true"`
	Revenue     float64    `json:"revenue" validate:"gte=0"`
}

// ConversionDate returns the calendar day of the first conversion, or ""
// for visitors that did not convert.
func (r VisitorRecord) ConversionDate() string {
	if r.ConvertedAt == nil {
		return ""
	}
	return r.ConvertedAt.Format(DateLayout)
}

// DateLayout is the layout used for day keys in daily breakdowns.
const DateLayout = "2006-01-02"

// Column names of the exposure table, in export order.
const (
	ColVisitorID   = "visitor_id"
	ColGroup       = "group"
	ColSegment     = "segment"
	ColExposedAt   = "exposed_at"
	ColConverted   = "converted"
	ColConvertedAt = "converted_at"
	ColRevenue     = "revenue"
)

// Columns lists every required column of the exposure table.
var Columns = []string{
	ColVisitorID, ColGroup, ColSegment, ColExposedAt, ColConverted, ColConvertedAt, ColRevenue,
}

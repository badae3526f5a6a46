package analysis

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/headline-goat/ab-report/internal/experiment"
)

// Key identifies one partition of the exposure table. Dim is empty for the
// overall per-group split and holds a date or segment otherwise.
type Key struct {
	Dim   string
	Group string
}

func (k Key) less(o Key) bool {
	if k.Dim != o.Dim {
		return k.Dim < o.Dim
	}
	return k.Group < o.Group
}

// KeyFunc maps a record to its partition. Returning false leaves the
// record out of the aggregation.
type KeyFunc func(experiment.VisitorRecord) (Key, bool)

// ByGroup partitions by variant.
func ByGroup(r experiment.VisitorRecord) (Key, bool) {
	return Key{Group: r.Group}, true
}

// ByDayGroup partitions converted visitors by conversion day and variant.
func ByDayGroup(r experiment.VisitorRecord) (Key, bool) {
	if r.ConvertedAt == nil {
		return Key{}, false
	}
	return Key{Dim: r.ConversionDate(), Group: r.Group}, true
}

// BySegmentGroup partitions by segment and variant.
func BySegmentGroup(r experiment.VisitorRecord) (Key, bool) {
	return Key{Dim: r.Segment, Group: r.Group}, true
}

// Row holds the KPIs of one partition.
type Row struct {
	Key
	Visitors    int
	Conversions int
	Revenue     float64
	CR          Metric
	RPV         Metric
}

type partition struct {
	visitors    map[string]struct{}
	conversions int
	revenues    []float64
}

// Aggregate reduces records to one Row per key present in the input,
// sorted by (Dim, Group). The result does not depend on record order.
func Aggregate(records []experiment.VisitorRecord, keyFn KeyFunc) []Row {
	parts := make(map[Key]*partition)
	for _, r := range records {
		key, ok := keyFn(r)
		if !ok {
			continue
		}
		p := parts[key]
		if p == nil {
			p = &partition{visitors: make(map[string]struct{})}
			parts[key] = p
		}
		p.visitors[r.VisitorID] = struct{}{}
		if r.Converted {
			p.conversions++
		}
		p.revenues = append(p.revenues, r.Revenue)
	}

	rows := make([]Row, 0, len(parts))
	for key, p := range parts {
		visitors := len(p.visitors)
		revenue := sumSorted(p.revenues)
		rows = append(rows, Row{
			Key:         key,
			Visitors:    visitors,
			Conversions: p.conversions,
			Revenue:     revenue,
			CR:          Ratio(float64(p.conversions), visitors),
			RPV:         Ratio(revenue, visitors),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Key.less(rows[j].Key) })
	return rows
}

// sumSorted adds values in ascending order so the float result is the same
// for any permutation of the input.
func sumSorted(values []float64) float64 {
	sort.Float64s(values)
	return floats.Sum(values)
}

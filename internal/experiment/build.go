package experiment

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Order is one purchase from the enriched orders table.
type Order struct {
	CustomerID  string
	State       string
	PurchasedAt time.Time // zero when the source had no timestamp
	Revenue     float64
}

// Columns of the enriched orders table. order_revenue is optional.
const (
	ColCustomerID   = "customer_unique_id"
	ColState        = "customer_state"
	ColPurchasedAt  = "order_purchase_timestamp"
	ColOrderRevenue = "order_revenue"
)

// ReadOrders reads the enriched orders table. Missing revenue counts as 0.
func ReadOrders(r io.Reader) ([]Order, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	schemaErr := &SchemaError{}
	idx := headerIndex(header, []string{ColCustomerID, ColState, ColPurchasedAt}, schemaErr)
	if err := schemaErr.err(); err != nil {
		return nil, err
	}
	revenueCol, hasRevenue := idx[ColOrderRevenue]

	var orders []Order
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row, err)
		}

		cell := func(i int) string {
			if i < len(fields) {
				return strings.TrimSpace(fields[i])
			}
			return ""
		}

		o := Order{
			CustomerID: cell(idx[ColCustomerID]),
			State:      cell(idx[ColState]),
		}
		if o.CustomerID == "" {
			schemaErr.add(row, ColCustomerID, "is required")
		}
		if v := cell(idx[ColPurchasedAt]); !isMissing(v) {
			if o.PurchasedAt, err = ParseTimestamp(v); err != nil {
				schemaErr.add(row, ColPurchasedAt, err.Error())
			}
		}
		if hasRevenue {
			if v := cell(revenueCol); !isMissing(v) {
				if o.Revenue, err = strconv.ParseFloat(v, 64); err != nil {
					schemaErr.add(row, ColOrderRevenue, fmt.Sprintf("not a number: %q", v))
				}
			}
		}

		orders = append(orders, o)
	}

	if err := schemaErr.err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// BuildOptions controls how an exposure table is derived from orders.
type BuildOptions struct {
	Start    time.Time
	End      time.Time // inclusive: the whole End day is in the window
	Seed     uint64
	Variants []string  // defaults to A, B
	Weights  []float64 // defaults to an even split
}

func (o *BuildOptions) normalize() error {
	if len(o.Variants) == 0 {
		o.Variants = []string{"A", "B"}
	}
	if len(o.Weights) == 0 {
		o.Weights = make([]float64, len(o.Variants))
		for i := range o.Weights {
			o.Weights[i] = 1 / float64(len(o.Variants))
		}
	} else {
		o.Weights = slices.Clone(o.Weights)
	}
	if len(o.Weights) != len(o.Variants) {
		return fmt.Errorf("got %d weights for %d variants", len(o.Weights), len(o.Variants))
	}

	total := 0.0
	for _, w := range o.Weights {
		if w < 0 {
			return fmt.Errorf("weights must be non-negative")
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("weights must sum to a positive value")
	}
	for i := range o.Weights {
		o.Weights[i] /= total
	}

	if o.Start.IsZero() || o.End.IsZero() {
		return fmt.Errorf("test window start and end are required")
	}
	if o.End.Before(o.Start) {
		return fmt.Errorf("test window ends (%s) before it starts (%s)",
			o.End.Format(DateLayout), o.Start.Format(DateLayout))
	}
	return nil
}

// Build derives one VisitorRecord per distinct customer. Customers are
// assigned to variants with a seeded generator in order of first
// appearance, so the same orders and seed always give the same table.
// A customer converts when any order falls inside the window; revenue is
// the sum of in-window orders and the segment is the first state seen.
func Build(orders []Order, opts BuildOptions) ([]VisitorRecord, error) {
	if err := opts.normalize(); err != nil {
		return nil, fmt.Errorf("invalid build options: %w", err)
	}

	windowEnd := time.Date(opts.End.Year(), opts.End.Month(), opts.End.Day(), 0, 0, 0, 0, opts.End.Location()).
		AddDate(0, 0, 1)

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))

	byID := make(map[string]int)
	var records []VisitorRecord
	for _, o := range orders {
		i, ok := byID[o.CustomerID]
		if !ok {
			i = len(records)
			byID[o.CustomerID] = i
			records = append(records, VisitorRecord{
				VisitorID: o.CustomerID,
				Group:     pick(rng, opts.Variants, opts.Weights),
				Segment:   o.State,
				ExposedAt: opts.Start,
			})
		}

		if o.PurchasedAt.IsZero() || o.PurchasedAt.Before(opts.Start) || !o.PurchasedAt.Before(windowEnd) {
			continue
		}

		rec := &records[i]
		rec.Converted = true
		rec.Revenue += o.Revenue
		if rec.ConvertedAt == nil || o.PurchasedAt.Before(*rec.ConvertedAt) {
			t := o.PurchasedAt
			rec.ConvertedAt = &t
		}
	}

	return records, nil
}

func pick(rng *rand.Rand, variants []string, weights []float64) string {
	u := rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if u < acc {
			return variants[i]
		}
	}
	return variants[len(variants)-1]
}

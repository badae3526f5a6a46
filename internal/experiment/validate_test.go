package experiment_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/ab-report/internal/experiment"
)

var exposed = time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC)

func convertedAt(day int) *time.Time {
	t := time.Date(2017, 8, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func validRecords() []experiment.VisitorRecord {
	return []experiment.VisitorRecord{
		{VisitorID: "v1", Group: "A", Segment: "SP", ExposedAt: exposed, Converted: true, ConvertedAt: convertedAt(3), Revenue: 10},
		{VisitorID: "v2", Group: "B", Segment: "RJ", ExposedAt: exposed},
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, experiment.Validate(validRecords(), nil))
	assert.NoError(t, experiment.Validate(validRecords(), []string{"A", "B"}))
	assert.NoError(t, experiment.Validate(nil, nil))
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	records := []experiment.VisitorRecord{
		{VisitorID: "", Group: "A", Segment: "SP", ExposedAt: exposed},
		{VisitorID: "v2", Group: "B", Segment: "RJ", ExposedAt: exposed, Converted: true},
		{VisitorID: "v3", Group: "A", Segment: "", ExposedAt: exposed, Revenue: -5},
		{VisitorID: "v4", Group: "B", Segment: "MG", ExposedAt: exposed, ConvertedAt: convertedAt(2)},
		{VisitorID: "v2", Group: "A", Segment: "MG"},
	}

	err := experiment.Validate(records, nil)

	var schemaErr *experiment.SchemaError
	require.True(t, errors.As(err, &schemaErr), "expected *SchemaError, got %v", err)

	assert.Contains(t, schemaErr.Fields, experiment.FieldError{Row: 1, Field: "visitor_id", Reason: "is required"})
	assert.Contains(t, schemaErr.Fields, experiment.FieldError{Row: 2, Field: "converted_at", Reason: "is required when converted is true"})
	assert.Contains(t, schemaErr.Fields, experiment.FieldError{Row: 3, Field: "segment", Reason: "is required"})
	assert.Contains(t, schemaErr.Fields, experiment.FieldError{Row: 3, Field: "revenue", Reason: "must be >= 0"})
	assert.Contains(t, schemaErr.Fields, experiment.FieldError{Row: 4, Field: "converted_at", Reason: "must be empty when converted is false"})
	assert.Contains(t, schemaErr.Fields, experiment.FieldError{Row: 5, Field: "visitor_id", Reason: "duplicate of row 2"})
	assert.Contains(t, schemaErr.Fields, experiment.FieldError{Row: 5, Field: "exposed_at", Reason: "is required"})

	assert.Equal(t,
		[]string{"converted_at", "exposed_at", "revenue", "segment", "visitor_id"},
		schemaErr.FieldNames())
}

func TestValidate_NonFiniteRevenue(t *testing.T) {
	for _, revenue := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		records := validRecords()
		records[1].Revenue = revenue

		var schemaErr *experiment.SchemaError
		require.ErrorAs(t, experiment.Validate(records, nil), &schemaErr)
		assert.Equal(t, []string{"revenue"}, schemaErr.FieldNames())
	}
}

func TestValidate_UndeclaredVariant(t *testing.T) {
	records := validRecords()
	records[1].Group = "C"

	var schemaErr *experiment.SchemaError
	require.ErrorAs(t, experiment.Validate(records, []string{"A", "B"}), &schemaErr)
	require.Len(t, schemaErr.Fields, 1)
	assert.Equal(t, "group", schemaErr.Fields[0].Field)
	assert.Equal(t, 2, schemaErr.Fields[0].Row)
}

func TestSchemaError_MessageIsTruncated(t *testing.T) {
	schemaErr := &experiment.SchemaError{}
	for i := 1; i <= 12; i++ {
		schemaErr.Fields = append(schemaErr.Fields, experiment.FieldError{Row: i, Field: "revenue", Reason: "must be >= 0"})
	}

	msg := schemaErr.Error()
	assert.Contains(t, msg, "row 1 revenue: must be >= 0")
	assert.Contains(t, msg, "and 2 more")
	assert.NotContains(t, msg, "row 11")
}

package experiment

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the layout used when writing timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	time.RFC3339Nano,
	TimestampLayout,
	"2006-01-02T15:04:05",
	DateLayout,
}

// ParseTimestamp parses the timestamp formats produced by common CSV
// exporters. Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseBool accepts 0/1 and true/false in any letter case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes":
		return true, nil
	case "0", "false", "f", "no":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// isMissing reports whether a cell holds no value. Pandas writes missing
// timestamps as empty cells, some tools as NaN/NaT.
func isMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "nat", "null", "none":
		return true
	}
	return false
}

// headerIndex maps lower-cased column names to their position and reports
// required columns that are absent.
func headerIndex(header, required []string, schemaErr *SchemaError) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			schemaErr.add(0, col, "missing column")
		}
	}
	return idx
}

// ReadCSV reads an exposure table. Column order is free and extra columns
// are ignored. Missing columns and cells of the wrong type are reported
// together in a *SchemaError.
func ReadCSV(r io.Reader) ([]VisitorRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &SchemaError{Fields: []FieldError{{Field: "header", Reason: "empty input"}}}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	schemaErr := &SchemaError{}
	idx := headerIndex(header, Columns, schemaErr)
	if err := schemaErr.err(); err != nil {
		return nil, err
	}

	var records []VisitorRecord
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row, err)
		}

		cell := func(col string) string {
			if i := idx[col]; i < len(fields) {
				return fields[i]
			}
			return ""
		}

		rec := VisitorRecord{
			VisitorID: strings.TrimSpace(cell(ColVisitorID)),
			Group:     strings.TrimSpace(cell(ColGroup)),
			Segment:   strings.TrimSpace(cell(ColSegment)),
		}

		if v := cell(ColExposedAt); !isMissing(v) {
			if rec.ExposedAt, err = ParseTimestamp(v); err != nil {
				schemaErr.add(row, ColExposedAt, err.Error())
			}
		}

		if rec.Converted, err = ParseBool(cell(ColConverted)); err != nil {
			schemaErr.add(row, ColConverted, err.Error())
		}

		if v := cell(ColConvertedAt); !isMissing(v) {
			t, err := ParseTimestamp(v)
			if err != nil {
				schemaErr.add(row, ColConvertedAt, err.Error())
			} else {
				rec.ConvertedAt = &t
			}
		}

		if v := strings.TrimSpace(cell(ColRevenue)); v != "" {
			if rec.Revenue, err = strconv.ParseFloat(v, 64); err != nil {
				schemaErr.add(row, ColRevenue, fmt.Sprintf("not a number: %q", v))
			}
		}

		records = append(records, rec)
	}

	if err := schemaErr.err(); err != nil {
		return nil, err
	}
	return records, nil
}

// WriteCSV writes records in the column order of Columns.
func WriteCSV(w io.Writer, records []VisitorRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, rec := range records {
		convertedAt := ""
		if rec.ConvertedAt != nil {
			convertedAt = rec.ConvertedAt.Format(TimestampLayout)
		}
		converted := "0"
		if rec.Converted {
			converted = "1"
		}

		row := []string{
			rec.VisitorID,
			rec.Group,
			rec.Segment,
			rec.ExposedAt.Format(TimestampLayout),
			converted,
			convertedAt,
			strconv.FormatFloat(rec.Revenue, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

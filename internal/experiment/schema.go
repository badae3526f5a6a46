package experiment

import (
	"fmt"
	"sort"
	"strings"
)

// FieldError describes one invalid or missing value. Row is the 1-based
// position of the record in the table; 0 refers to the table header.
type FieldError struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (fe FieldError) String() string {
	if fe.Row == 0 {
		return fmt.Sprintf("%s: %s", fe.Field, fe.Reason)
	}
	return fmt.Sprintf("row %d %s: %s", fe.Row, fe.Field, fe.Reason)
}

// SchemaError reports an exposure table that cannot be analyzed. No report
// is produced for a table that fails with a SchemaError.
type SchemaError struct {
	Fields []FieldError
}

const maxReportedFields = 10

func (e *SchemaError) Error() string {
	parts := make([]string, 0, maxReportedFields)
	for i, fe := range e.Fields {
		if i == maxReportedFields {
			parts = append(parts, fmt.Sprintf("and %d more", len(e.Fields)-maxReportedFields))
			break
		}
		parts = append(parts, fe.String())
	}
	return "schema error: " + strings.Join(parts, "; ")
}

// FieldNames returns the distinct offending field names, sorted.
func (e *SchemaError) FieldNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, fe := range e.Fields {
		if !seen[fe.Field] {
			seen[fe.Field] = true
			names = append(names, fe.Field)
		}
	}
	sort.Strings(names)
	return names
}

func (e *SchemaError) add(row int, field, reason string) {
	e.Fields = append(e.Fields, FieldError{Row: row, Field: field, Reason: reason})
}

// err returns e when it holds at least one field error, nil otherwise.
func (e *SchemaError) err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

package experiment

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// recordValidate checks the per-field tag rules on VisitorRecord.
var recordValidate *validator.Validate

func init() {
	recordValidate = validator.New()

	// Report column names rather than Go field names.
	recordValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks every record of an exposure table and returns a
// *SchemaError listing all problems found. When variants is non-empty,
// each record's group must be one of them.
func Validate(records []VisitorRecord, variants []string) error {
	schemaErr := &SchemaError{}

	allowed := make(map[string]bool, len(variants))
	for _, v := range variants {
		allowed[v] = true
	}

	seen := make(map[string]int, len(records))
	for i, rec := range records {
		row := i + 1

		if err := recordValidate.Struct(rec); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return fmt.Errorf("failed to validate row %d: %w", row, err)
			}
			for _, fe := range verrs {
				schemaErr.add(row, fe.Field(), describe(fe))
			}
		}

		// gte already rejects NaN and -Inf.
		if math.IsInf(rec.Revenue, 1) {
			schemaErr.add(row, ColRevenue, "must be a finite number")
		}
		if !rec.Converted && rec.ConvertedAt != nil {
			schemaErr.add(row, ColConvertedAt, "must be empty when converted is false")
		}
		if len(allowed) > 0 && rec.Group != "" && !allowed[rec.Group] {
			schemaErr.add(row, ColGroup, fmt.Sprintf("%q is not a declared variant", rec.Group))
		}

		if rec.VisitorID != "" {
			if first, dup := seen[rec.VisitorID]; dup {
				schemaErr.add(row, ColVisitorID, fmt.Sprintf("duplicate of row %d", first))
			} else {
				seen[rec.VisitorID] = row
			}
		}
	}

	return schemaErr.err()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when converted is true"
	case "gte":
		return "must be >= " + fe.Param()
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

package analysis

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// NA is how an undefined Metric is written in tables.
const NA = "NA"

// Metric is a derived number that may be undefined, e.g. a rate over zero
// visitors. The zero value is Undefined.
type Metric struct {
	value   float64
	defined bool
}

// Undefined is the explicit "no value" sentinel.
var Undefined = Metric{}

// Defined wraps a computed value.
func Defined(v float64) Metric {
	return Metric{value: v, defined: true}
}

// Ratio returns num/den, or Undefined when den is zero.
func Ratio(num float64, den int) Metric {
	if den == 0 {
		return Undefined
	}
	return Defined(num / float64(den))
}

// Value returns the number and whether it is defined.
func (m Metric) Value() (float64, bool) {
	return m.value, m.defined
}

func (m Metric) IsDefined() bool {
	return m.defined
}

// String formats the value with the shortest exact representation, or NA.
func (m Metric) String() string {
	if !m.defined {
		return NA
	}
	return strconv.FormatFloat(m.value, 'g', -1, 64)
}

// MarshalJSON encodes an undefined metric as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Undefined
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Defined(v)
	return nil
}

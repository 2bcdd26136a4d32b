package validation

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// Number is a JSON value that should hold a finite number. It accepts JSON
// numbers and numeric strings and never fails decoding, so callers can
// report a missing or non-numeric value as a field validation error.
type Number struct {
	Value float64
	// Set is true when the field was present and not null.
	Set bool
	// Valid is true when the value parsed as a finite number.
	Valid bool
	raw   string
}

func NewNumber(v float64) Number {
	return Number{Value: v, Set: true, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	n.Set = true
	n.raw = string(b)

	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n.Value = v
	n.Valid = true
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Raw returns the undecoded JSON text, for error messages.
func (n Number) Raw() string {
	return n.raw
}

// Decimals returns the number of digits after the decimal point in the
// shortest representation of the value.
func (n Number) Decimals() int {
	s := strconv.FormatFloat(n.Value, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

// Check validates n as a required numeric field.
func (n Number) Check(field string) error {
	if !n.Set {
		return apperr.Required(field)
	}
	if !n.Valid {
		return apperr.Validation("%s must be a finite number, got %s", field, n.raw).WithDetail("field", field)
	}
	return nil
}

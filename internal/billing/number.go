package billing

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Number carries a raw numeric input exactly as the client sent it. It accepts
// JSON numbers, numeric strings, null and anything else without failing so
// that coercion can apply its defaults.
type Number struct {
	raw string
}

// NewNumber wraps a raw textual value.
func NewNumber(raw string) Number {
	return Number{raw: strings.TrimSpace(raw)}
}

// String returns the raw text.
func (n Number) String() string {
	return n.raw
}

// IsZero reports whether no value was supplied.
func (n Number) IsZero() bool {
	return n.raw == ""
}

// UnmarshalJSON never returns an error.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		n.raw = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			n.raw = ""
			return nil
		}
		n.raw = strings.TrimSpace(s)
		return nil
	}
	n.raw = string(data)
	return nil
}

// MarshalJSON emits the raw value as a string, or null when empty.
func (n Number) MarshalJSON() ([]byte, error) {
	if n.raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(n.raw)
}

// Inputs outside these bounds are treated as invalid. They keep every value
// inside a PostgreSQL NUMERIC and stop huge exponents from blowing up the
// arithmetic.
const (
	maxExponent = 20
	maxDigits   = 30
)

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// parseBounded parses raw as a decimal within maxExponent and maxDigits.
func parseBounded(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, false
	}
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return decimal.Decimal{}, false
	}
	coef := d.Coefficient()
	if len(coef.Abs(coef).Text(10)) > maxDigits {
		return decimal.Decimal{}, false
	}
	return d, true
}

// CoerceQuantity parses a quantity. Fractions are truncated; invalid, missing,
// out of range or values below one become 1.
func CoerceQuantity(raw string) int64 {
	d, ok := parseBounded(raw)
	if !ok || d.GreaterThan(maxQuantity) {
		return 1
	}
	q := d.IntPart()
	if q < 1 {
		return 1
	}
	return q
}

// CoerceRate parses a non-negative amount. Invalid, missing, out of range or
// negative input becomes zero.
func CoerceRate(raw string) decimal.Decimal {
	d, ok := parseBounded(raw)
	if !ok || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// CoerceTaxRate parses a tax rate. It follows CoerceRate; there is no upper
// clamp, so 150% stays 150.
func CoerceTaxRate(raw string) decimal.Decimal {
	return CoerceRate(raw)
}

package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// weightPlaces is the precision weights are entered, stored and shown with.
const weightPlaces = 2

// FormatWeight renders a weight with two decimal places.
func FormatWeight(w decimal.Decimal) string {
	return w.StringFixed(weightPlaces)
}

// ParseWeight reads a user-entered weight. Blank input is zero; more than
// two decimal places or a negative value is rejected.
func ParseWeight(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "weight", Message: "not a number"}
	}
	if d.IsNegative() {
		return decimal.Zero, &ValidationError{Field: "weight", Message: "must not be negative"}
	}
	if !d.Equal(d.Truncate(weightPlaces)) {
		return decimal.Zero, &ValidationError{Field: "weight", Message: "at most two decimal places"}
	}
	return d, nil
}

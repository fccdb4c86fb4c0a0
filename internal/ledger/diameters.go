package ledger

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var diameterListPattern = regexp.MustCompile(`^\d{2}(,\d{2})*$`)

// ParseDiameters parses a comma separated list of two-digit diameters such
// as "20,22,24". One trailing comma is tolerated. Duplicates are kept in
// input order.
func ParseDiameters(s string) ([]int, error) {
	s = strings.TrimSuffix(s, ",")
	if !diameterListPattern.MatchString(s) {
		return nil, &ValidationError{Field: "diameters", Message: "invalid diameter list"}
	}

	tokens := strings.Split(s, ",")
	dias := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		dia, err := strconv.Atoi(tok)
		if err != nil {
			return nil, &ValidationError{Field: "diameters", Message: "invalid diameter list"}
		}
		dias = append(dias, dia)
	}
	return dias, nil
}

// RegisterDiameters parses s and appends a placeholder row holding one zero
// cell per diameter, in the parsed order. Existing rows are not back-filled
// with the new diameters. Nothing changes when s is rejected.
func (l *Ledger) RegisterDiameters(s string) ([]int, error) {
	dias, err := ParseDiameters(s)
	if err != nil {
		return nil, err
	}

	item := LineItem{ColorID: Placeholder, Details: make([]Detail, 0, len(dias))}
	for _, dia := range dias {
		item.Details = append(item.Details, Detail{Dia: dia, Weight: decimal.Zero})
	}
	l.items = append(l.items, item)
	return dias, nil
}

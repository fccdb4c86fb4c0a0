package ledger

import (
	"github.com/shopspring/decimal"
)

// Summary holds running totals over every cell of the Ledger.
type Summary struct {
	TotalRolls  int
	TotalWeight decimal.Decimal
}

// Subtotal holds totals for a single color.
type Subtotal struct {
	Rolls  int
	Weight decimal.Decimal
}

// Summary totals rolls and weight over every cell.
func (l *Ledger) Summary() Summary {
	s := Summary{TotalWeight: decimal.Zero}
	for _, it := range l.items {
		for _, d := range it.Details {
			s.TotalRolls += d.Rolls
			s.TotalWeight = s.TotalWeight.Add(d.Weight)
		}
	}
	return s
}

// Subtotal sums the cells of every row holding colorID, not only one row,
// so a duplicated color shows the combined quantity on each of its rows.
func (l *Ledger) Subtotal(colorID int) Subtotal {
	s := Subtotal{Weight: decimal.Zero}
	for _, it := range l.items {
		if it.ColorID != colorID {
			continue
		}
		for _, d := range it.Details {
			s.Rolls += d.Rolls
			s.Weight = s.Weight.Add(d.Weight)
		}
	}
	return s
}

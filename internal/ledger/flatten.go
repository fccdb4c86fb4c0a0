package ledger

import (
	"github.com/shopspring/decimal"
)

// FlatDetail is the row-per-cell shape exchanged with the inventory API.
type FlatDetail struct {
	ColorID int
	Dia     int
	Rolls   int
	Weight  decimal.Decimal
}

// FromDetails builds a Ledger from flat details, one row per color in
// first-seen order with cells in the order they arrive.
func FromDetails(details []FlatDetail) *Ledger {
	l := New()
	rowOf := make(map[int]int)
	for _, fd := range details {
		idx, ok := rowOf[fd.ColorID]
		if !ok {
			idx = len(l.items)
			rowOf[fd.ColorID] = idx
			l.items = append(l.items, LineItem{ColorID: fd.ColorID})
		}
		l.items[idx].Details = append(l.items[idx].Details, Detail{
			Dia:    fd.Dia,
			Rolls:  fd.Rolls,
			Weight: fd.Weight,
		})
	}
	return l
}

// Flatten returns one FlatDetail per cell, rows in order.
func (l *Ledger) Flatten() []FlatDetail {
	out := []FlatDetail{}
	for _, it := range l.items {
		for _, d := range it.Details {
			out = append(out, FlatDetail{
				ColorID: it.ColorID,
				Dia:     d.Dia,
				Rolls:   d.Rolls,
				Weight:  d.Weight,
			})
		}
	}
	return out
}

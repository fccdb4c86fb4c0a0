package ledger

import (
	"github.com/shopspring/decimal"
)

// Cell is one rendered (row, diameter) position. Present is false when the
// row has no detail for the column's diameter.
type Cell struct {
	Dia     int
	Rolls   int
	Weight  decimal.Decimal
	Present bool
}

// Row is one rendered line item.
type Row struct {
	Index    int
	ColorID  int
	Cells    []Cell
	Subtotal Subtotal
}

// Grid is the display form of a Ledger: one column per diameter.
type Grid struct {
	Diameters []int
	Rows      []Row
	Summary   Summary
}

// Grid lays every row out against the canonical diameter columns.
func (l *Ledger) Grid() Grid {
	dias := l.Diameters()
	g := Grid{
		Diameters: dias,
		Rows:      make([]Row, 0, len(l.items)),
		Summary:   l.Summary(),
	}
	for i, it := range l.items {
		row := Row{
			Index:    i,
			ColorID:  it.ColorID,
			Cells:    make([]Cell, 0, len(dias)),
			Subtotal: l.Subtotal(it.ColorID),
		}
		for _, dia := range dias {
			row.Cells = append(row.Cells, cellFor(it, dia))
		}
		g.Rows = append(g.Rows, row)
	}
	return g
}

func cellFor(it LineItem, dia int) Cell {
	for _, d := range it.Details {
		if d.Dia == dia {
			return Cell{Dia: dia, Rolls: d.Rolls, Weight: d.Weight, Present: true}
		}
	}
	return Cell{Dia: dia, Weight: decimal.Zero}
}

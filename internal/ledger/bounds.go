package ledger

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Key addresses a single (color, diameter) cell.
type Key struct {
	ColorID int
	Dia     int
}

// Bound is the ceiling for one cell.
type Bound struct {
	MaxRolls  int
	MaxWeight decimal.Decimal
}

// Bounds maps cells to their ceilings. A cell with no entry has a zero
// ceiling: nothing is available for it.
type Bounds map[Key]Bound

// NewBounds builds bounds from an available-stock listing. Repeated cells
// are summed.
func NewBounds(available []FlatDetail) Bounds {
	b := make(Bounds, len(available))
	b.add(available)
	return b
}

// EditBounds builds bounds for editing an existing record: what is still
// available from the source plus what the record itself already consumed,
// so the user can restore a quantity to its original level.
func EditBounds(available, consumed []FlatDetail) Bounds {
	b := make(Bounds, len(available))
	b.add(available)
	b.add(consumed)
	return b
}

func (b Bounds) add(details []FlatDetail) {
	for _, fd := range details {
		k := Key{ColorID: fd.ColorID, Dia: fd.Dia}
		cur, ok := b[k]
		if !ok {
			cur.MaxWeight = decimal.Zero
		}
		cur.MaxRolls += fd.Rolls
		cur.MaxWeight = cur.MaxWeight.Add(fd.Weight)
		b[k] = cur
	}
}

// Lookup returns the ceiling for a cell.
func (b Bounds) Lookup(colorID, dia int) Bound {
	bound, ok := b[Key{ColorID: colorID, Dia: dia}]
	if !ok {
		return Bound{MaxWeight: decimal.Zero}
	}
	return bound
}

// Colors returns the set of colors with at least one bounded cell.
func (b Bounds) Colors() map[int]struct{} {
	out := make(map[int]struct{})
	for k := range b {
		out[k.ColorID] = struct{}{}
	}
	return out
}

// Check validates a proposed update against the cell's ceiling. Negative
// values are rejected even when b is nil; a nil Bounds otherwise accepts
// everything.
func (b Bounds) Check(colorID, dia int, u DetailUpdate) error {
	if u.Rolls != nil && *u.Rolls < 0 {
		return &ValidationError{Field: "rolls", Message: "must not be negative"}
	}
	if u.Weight != nil && u.Weight.IsNegative() {
		return &ValidationError{Field: "weight", Message: "must not be negative"}
	}
	if b == nil {
		return nil
	}

	bound := b.Lookup(colorID, dia)
	if u.Rolls != nil && *u.Rolls > bound.MaxRolls {
		return &QuantityExceededError{
			ColorID: colorID,
			Dia:     dia,
			Field:   "rolls",
			Max:     strconv.Itoa(bound.MaxRolls),
		}
	}
	if u.Weight != nil && u.Weight.GreaterThan(bound.MaxWeight) {
		return &QuantityExceededError{
			ColorID: colorID,
			Dia:     dia,
			Field:   "weight",
			Max:     FormatWeight(bound.MaxWeight),
		}
	}
	return nil
}

// CheckAll validates every cell of items, returning the first violation.
// A cell repeated across rows, or within one row, is checked by its total.
func (b Bounds) CheckAll(items []LineItem) error {
	return b.CheckCells(items, nil)
}

// CheckCells is CheckAll limited to the given cells. A nil set checks every
// cell. Negative quantities are rejected wherever they appear.
func (b Bounds) CheckCells(items []LineItem, cells map[Key]struct{}) error {
	totals := make(map[Key]Detail)
	order := []Key{}
	for _, it := range items {
		for _, d := range it.Details {
			if d.Rolls < 0 {
				return &ValidationError{Field: "rolls", Message: "must not be negative"}
			}
			if d.Weight.IsNegative() {
				return &ValidationError{Field: "weight", Message: "must not be negative"}
			}
			k := Key{ColorID: it.ColorID, Dia: d.Dia}
			if cells != nil {
				if _, ok := cells[k]; !ok {
					continue
				}
			}
			cur, seen := totals[k]
			if !seen {
				order = append(order, k)
				cur.Weight = decimal.Zero
			}
			cur.Rolls += d.Rolls
			cur.Weight = cur.Weight.Add(d.Weight)
			totals[k] = cur
		}
	}

	for _, k := range order {
		sum := totals[k]
		rolls, weight := sum.Rolls, sum.Weight
		if err := b.Check(k.ColorID, k.Dia, DetailUpdate{Rolls: &rolls, Weight: &weight}); err != nil {
			return err
		}
	}
	return nil
}

// CellsOf returns the cells an item occupies.
func CellsOf(item LineItem) map[Key]struct{} {
	out := make(map[Key]struct{}, len(item.Details))
	for _, d := range item.Details {
		out[Key{ColorID: item.ColorID, Dia: d.Dia}] = struct{}{}
	}
	return out
}

// DuplicateCell returns the first cell that appears more than once across
// items, if any.
func DuplicateCell(items []LineItem) (Key, bool) {
	seen := make(map[Key]struct{})
	for _, it := range items {
		for _, d := range it.Details {
			k := Key{ColorID: it.ColorID, Dia: d.Dia}
			if _, ok := seen[k]; ok {
				return k, true
			}
			seen[k] = struct{}{}
		}
	}
	return Key{}, false
}

// Package ledger holds the line-item table a user composes while drafting a
// receipt or delivery: one row per color, one cell per diameter.
//
// A Ledger is owned by a single draft and performs no locking of its own.
package ledger

import (
	"github.com/shopspring/decimal"
)

// Placeholder is the color ID of a row whose color has not been picked yet.
const Placeholder = 0

// Detail is a single (diameter, rolls, weight) cell.
type Detail struct {
	Dia    int             `json:"dia"`
	Rolls  int             `json:"rolls"`
	Weight decimal.Decimal `json:"weight"`
}

// LineItem is one color's row.
type LineItem struct {
	ColorID int      `json:"colorId"`
	Details []Detail `json:"details"`
}

func (it LineItem) clone() LineItem {
	out := LineItem{ColorID: it.ColorID, Details: make([]Detail, len(it.Details))}
	copy(out.Details, it.Details)
	return out
}

func (it LineItem) hasDia(dia int) bool {
	for _, d := range it.Details {
		if d.Dia == dia {
			return true
		}
	}
	return false
}

// DetailUpdate carries the fields to change on a cell. Nil fields are left
// untouched.
type DetailUpdate struct {
	Rolls  *int
	Weight *decimal.Decimal
}

// Empty reports whether the update changes nothing.
func (u DetailUpdate) Empty() bool {
	return u.Rolls == nil && u.Weight == nil
}

// Ledger is the in-memory table of line items for one transaction draft.
type Ledger struct {
	items []LineItem
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{items: []LineItem{}}
}

// Len returns the number of rows.
func (l *Ledger) Len() int {
	return len(l.items)
}

// Items returns a deep copy of the rows in order.
func (l *Ledger) Items() []LineItem {
	out := make([]LineItem, len(l.items))
	for i, it := range l.items {
		out[i] = it.clone()
	}
	return out
}

// Item returns a copy of the row at index.
func (l *Ledger) Item(index int) (LineItem, bool) {
	if index < 0 || index >= len(l.items) {
		return LineItem{}, false
	}
	return l.items[index].clone(), true
}

// Clone returns an independent copy of the Ledger.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{items: l.Items()}
}

// IndexOf returns the first row holding colorID, or -1.
func (l *Ledger) IndexOf(colorID int) int {
	for i, it := range l.items {
		if it.ColorID == colorID {
			return i
		}
	}
	return -1
}

// Reset discards every row.
func (l *Ledger) Reset() {
	l.items = []LineItem{}
}

// AddItem appends a row. Color uniqueness is not enforced here; rows are
// expected to settle their color through SetColor before submission.
func (l *Ledger) AddItem(item LineItem) {
	l.items = append(l.items, item.clone())
}

// RemoveItem drops every row with the given color that carries a cell for
// dia, returning how many were removed. No match is a no-op.
func (l *Ledger) RemoveItem(colorID, dia int) int {
	kept := l.items[:0:0]
	removed := 0
	for _, it := range l.items {
		if it.ColorID == colorID && it.hasDia(dia) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	if removed > 0 {
		l.items = kept
	}
	return removed
}

// RemoveAt drops the row at index. Out of range is a no-op.
func (l *Ledger) RemoveAt(index int) bool {
	if index < 0 || index >= len(l.items) {
		return false
	}
	l.items = append(l.items[:index:index], l.items[index+1:]...)
	return true
}

// SetColor assigns colorID to the row at index. A non-placeholder color
// already held by a different row is rejected with a DuplicateColorError.
func (l *Ledger) SetColor(index, colorID int) error {
	if index < 0 || index >= len(l.items) {
		return ErrItemNotFound
	}
	if colorID != Placeholder {
		for i, it := range l.items {
			if i != index && it.ColorID == colorID {
				return &DuplicateColorError{ColorID: colorID, Index: i}
			}
		}
	}
	l.items[index].ColorID = colorID
	return nil
}

// UpdateDetail applies u to the dia cell of every row with colorID and
// returns how many cells changed. Bounds are the caller's concern.
func (l *Ledger) UpdateDetail(colorID, dia int, u DetailUpdate) int {
	if u.Empty() {
		return 0
	}
	touched := 0
	for i := range l.items {
		if l.items[i].ColorID != colorID {
			continue
		}
		details := l.items[i].Details
		for j := range details {
			if details[j].Dia != dia {
				continue
			}
			if u.Rolls != nil {
				details[j].Rolls = *u.Rolls
			}
			if u.Weight != nil {
				details[j].Weight = *u.Weight
			}
			touched++
		}
	}
	return touched
}

// Diameters returns the union of every row's diameters in first-seen order.
func (l *Ledger) Diameters() []int {
	seen := make(map[int]struct{})
	out := []int{}
	for _, it := range l.items {
		for _, d := range it.Details {
			if _, ok := seen[d.Dia]; ok {
				continue
			}
			seen[d.Dia] = struct{}{}
			out = append(out, d.Dia)
		}
	}
	return out
}

// UsedColors returns the set of non-placeholder colors, skipping the row at
// except (pass -1 to include every row).
func (l *Ledger) UsedColors(except int) map[int]struct{} {
	used := make(map[int]struct{})
	for i, it := range l.items {
		if i == except || it.ColorID == Placeholder {
			continue
		}
		used[it.ColorID] = struct{}{}
	}
	return used
}

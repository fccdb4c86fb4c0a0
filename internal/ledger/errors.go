package ledger

import (
	"errors"
	"fmt"
)

// ErrItemNotFound is returned when an operation addresses a row index that
// does not exist.
var ErrItemNotFound = errors.New("line item not found")

// ValidationError reports malformed input that was rejected before any
// mutation took place.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// QuantityExceededError reports a proposed rolls or weight value above the
// bound for its (color, diameter) cell. Max carries the limit as text so
// weights keep their two-decimal form.
type QuantityExceededError struct {
	ColorID int
	Dia     int
	Field   string
	Max     string
}

func (e *QuantityExceededError) Error() string {
	return fmt.Sprintf("%s for color %d dia %d must not exceed %s", e.Field, e.ColorID, e.Dia, e.Max)
}

// DuplicateColorError reports a color that is already held by another row.
type DuplicateColorError struct {
	ColorID int
	Index   int
}

func (e *DuplicateColorError) Error() string {
	return fmt.Sprintf("color %d is already used by line item %d", e.ColorID, e.Index)
}

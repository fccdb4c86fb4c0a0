package service

import (
	"errors"
	"fmt"
)

var (
	ErrDraftNotFound       = errors.New("draft not found")
	ErrDraftForbidden      = errors.New("draft belongs to another user")
	ErrDraftClosed         = errors.New("draft was closed")
	ErrEmptyDraft          = errors.New("draft has no line items")
	ErrUnresolvedColor     = errors.New("every line item needs a color before submitting")
	ErrSourceNotFound      = errors.New("source record not found")
	ErrInvalidDraftRequest = errors.New("invalid draft request")
)

// UpstreamError wraps a failure of the inventory system of record
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}

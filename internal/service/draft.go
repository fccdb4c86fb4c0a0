package service

import (
	"context"
	"sync"
	"time"

	"github.com/rongwang/fabricstock/internal/ledger"
	"github.com/rongwang/fabricstock/internal/models"
)

// Draft is one open add or edit form. It owns its Ledger; the mutex
// serializes requests addressed to the same draft.
type Draft struct {
	ID        string
	UserID    string
	Kind      models.TransactionKind
	RecordID  int64
	ReceiptID int64

	ctx    context.Context
	cancel context.CancelFunc
	ready  chan struct{}

	mu       sync.Mutex
	header   models.TransactionHeader
	ledger   *ledger.Ledger
	bounds   ledger.Bounds
	loadErr  error
	closed   bool
	lastUsed time.Time
}

// loadResult is what a draft's one-shot loader hands back
type loadResult struct {
	header  *models.TransactionHeader
	details []ledger.FlatDetail
	bounds  ledger.Bounds
}

type loader func(ctx context.Context) (loadResult, error)

func newDraft(id, userID string, req models.OpenDraftRequest, now time.Time) *Draft {
	ctx, cancel := context.WithCancel(context.Background())
	return &Draft{
		ID:        id,
		UserID:    userID,
		Kind:      req.Kind,
		RecordID:  req.RecordID,
		ReceiptID: req.ReceiptID,
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
		header:    req.Header,
		ledger:    ledger.New(),
		lastUsed:  now,
	}
}

// start runs load once in the background. A result that arrives after the
// draft was closed is dropped.
func (d *Draft) start(load loader, onDiscard func()) {
	if load == nil {
		close(d.ready)
		return
	}

	go func() {
		res, err := load(d.ctx)

		d.mu.Lock()
		defer d.mu.Unlock()
		defer close(d.ready)

		if d.closed || d.ctx.Err() != nil {
			d.loadErr = ErrDraftClosed
			if onDiscard != nil {
				onDiscard()
			}
			return
		}
		if err != nil {
			d.loadErr = err
			return
		}
		if res.header != nil {
			d.header = *res.header
		}
		if res.details != nil {
			d.ledger = ledger.FromDetails(res.details)
		}
		d.bounds = res.bounds
	}()
}

// await blocks until the loader finished or ctx is done
func (d *Draft) await(ctx context.Context) error {
	select {
	case <-d.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDraftClosed
	}
	return d.loadErr
}

// close tears the draft down. Must be called with d.mu held.
func (d *Draft) closeLocked() {
	if d.closed {
		return
	}
	d.closed = true
	d.cancel()
	d.ledger.Reset()
}

// DraftView is a read-only snapshot of a draft
type DraftView struct {
	ID        string
	Kind      models.TransactionKind
	RecordID  int64
	ReceiptID int64
	Header    models.TransactionHeader
	Bounded   bool
	Grid      ledger.Grid
}

func (d *Draft) viewLocked() *DraftView {
	return &DraftView{
		ID:        d.ID,
		Kind:      d.Kind,
		RecordID:  d.RecordID,
		ReceiptID: d.header.ReceiptID,
		Header:    d.header,
		Bounded:   d.bounds != nil,
		Grid:      d.ledger.Grid(),
	}
}

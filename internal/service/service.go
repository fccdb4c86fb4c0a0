package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rongwang/fabricstock/internal/ledger"
	"github.com/rongwang/fabricstock/internal/models"
	"github.com/rongwang/fabricstock/internal/repository"
	"github.com/rongwang/fabricstock/internal/utils"
)

// Service defines all the business logic operations
type Service interface {
	// Reference data
	ListReference(ctx context.Context, kind models.ReferenceKind) ([]models.Reference, error)

	// Draft lifecycle
	OpenDraft(ctx context.Context, userID string, req models.OpenDraftRequest) (*DraftView, error)
	Await(ctx context.Context, userID, draftID string) error
	GetDraft(ctx context.Context, userID, draftID string) (*DraftView, error)
	CloseDraft(ctx context.Context, userID, draftID string) error
	SubmitDraft(ctx context.Context, userID, draftID string) (*models.SubmitResponse, error)

	// Ledger editing
	SetHeader(ctx context.Context, userID, draftID string, header models.TransactionHeader) (*DraftView, error)
	RegisterDiameters(ctx context.Context, userID, draftID, diameters string) (*DraftView, error)
	AddItem(ctx context.Context, userID, draftID string, item ledger.LineItem) (*DraftView, error)
	RemoveItem(ctx context.Context, userID, draftID string, colorID, dia int) (*DraftView, error)
	RemoveItemAt(ctx context.Context, userID, draftID string, index int) (*DraftView, error)
	SetColor(ctx context.Context, userID, draftID string, index, colorID int) (*DraftView, error)
	UpdateDetail(ctx context.Context, userID, draftID string, colorID, dia int, u ledger.DetailUpdate) (*DraftView, error)
	AvailableColors(ctx context.Context, userID, draftID string, index int) ([]models.Reference, error)

	// Housekeeping
	Sweep(now time.Time) int
}

// Options tunes a DefaultService
type Options struct {
	IdleTTL time.Duration
	Now     func() time.Time
	Logger  *utils.Logger
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo    repository.Repository
	drafts  *DraftStore
	idleTTL time.Duration
	now     func() time.Time
	log     *utils.Logger
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, opts Options) *DefaultService {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 2 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = utils.NopLogger()
	}
	return &DefaultService{
		repo:    repo,
		drafts:  NewDraftStore(),
		idleTTL: opts.IdleTTL,
		now:     opts.Now,
		log:     opts.Logger,
	}
}

// Drafts exposes the draft store
func (s *DefaultService) Drafts() *DraftStore {
	return s.drafts
}

// Reference data
func (s *DefaultService) ListReference(ctx context.Context, kind models.ReferenceKind) ([]models.Reference, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown reference kind %q", ErrInvalidDraftRequest, kind)
	}
	refs, err := s.repo.ListReference(ctx, kind)
	if err != nil {
		return nil, upstream("list "+string(kind), err)
	}
	return refs, nil
}

// Draft lifecycle
func (s *DefaultService) OpenDraft(ctx context.Context, userID string, req models.OpenDraftRequest) (*DraftView, error) {
	load, err := s.loaderFor(req)
	if err != nil {
		return nil, err
	}

	d := newDraft(uuid.New().String(), userID, req, s.now())
	if req.Kind == models.KindDelivery && req.RecordID == 0 {
		d.header.ReceiptID = req.ReceiptID
	}
	s.drafts.put(d)

	log := s.log.With("draft", d.ID, "kind", d.Kind, "record", d.RecordID)
	d.start(load, func() {
		log.Info("discarded load result for closed draft")
	})
	log.Info("draft opened", "user", userID)

	if err := d.await(ctx); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.discard(d)
		}
		return nil, err
	}
	return s.GetDraft(ctx, userID, d.ID)
}

// loaderFor picks what a new draft has to fetch before it can be edited
func (s *DefaultService) loaderFor(req models.OpenDraftRequest) (loader, error) {
	switch {
	case req.Kind == models.KindReceipt && req.RecordID == 0:
		return nil, nil

	case req.Kind == models.KindReceipt:
		return func(ctx context.Context) (loadResult, error) {
			receipt, err := s.fetchTransaction(ctx, models.KindReceipt, req.RecordID)
			if err != nil {
				return loadResult{}, err
			}
			return loadResult{
				header:  &receipt.TransactionHeader,
				details: models.ToFlat(receipt.Details),
			}, nil
		}, nil

	case req.Kind == models.KindDelivery && req.RecordID == 0:
		if req.ReceiptID <= 0 {
			return nil, fmt.Errorf("%w: a new delivery needs a source receipt", ErrInvalidDraftRequest)
		}
		return func(ctx context.Context) (loadResult, error) {
			receipt, err := s.fetchTransaction(ctx, models.KindReceipt, req.ReceiptID)
			if err != nil {
				return loadResult{}, err
			}
			stock, err := s.repo.GetAvailableStock(ctx, req.ReceiptID)
			if err != nil {
				return loadResult{}, upstream("load stock", err)
			}
			header := inheritHeader(req.Header, receipt)
			return loadResult{
				header:  &header,
				details: []ledger.FlatDetail{},
				bounds:  ledger.NewBounds(models.ToFlat(stock)),
			}, nil
		}, nil

	case req.Kind == models.KindDelivery:
		return func(ctx context.Context) (loadResult, error) {
			delivery, err := s.fetchTransaction(ctx, models.KindDelivery, req.RecordID)
			if err != nil {
				return loadResult{}, err
			}
			stock, err := s.repo.GetAvailableStock(ctx, delivery.ReceiptID)
			if err != nil {
				return loadResult{}, upstream("load stock", err)
			}
			consumed := models.ToFlat(delivery.Details)
			return loadResult{
				header:  &delivery.TransactionHeader,
				details: consumed,
				bounds:  ledger.EditBounds(models.ToFlat(stock), consumed),
			}, nil
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidDraftRequest, req.Kind)
}

func (s *DefaultService) fetchTransaction(ctx context.Context, kind models.TransactionKind, id int64) (*models.Transaction, error) {
	txn, err := s.repo.GetTransaction(ctx, kind, id)
	if err != nil {
		return nil, upstream("load "+string(kind), err)
	}
	if txn == nil {
		return nil, fmt.Errorf("%w: %s %d", ErrSourceNotFound, kind, id)
	}
	return txn, nil
}

// inheritHeader fills the master fields a new delivery leaves blank from its
// source receipt
func inheritHeader(h models.TransactionHeader, receipt *models.Transaction) models.TransactionHeader {
	if h.CompanyID == 0 {
		h.CompanyID = receipt.CompanyID
	}
	if h.StoreID == 0 {
		h.StoreID = receipt.StoreID
	}
	if h.FabricID == 0 {
		h.FabricID = receipt.FabricID
	}
	h.ReceiptID = receipt.ID
	return h
}

// Await blocks until the draft's initial load finished
func (s *DefaultService) Await(ctx context.Context, userID, draftID string) error {
	return s.withDraft(ctx, userID, draftID, func(d *Draft) error { return nil })
}

func (s *DefaultService) GetDraft(ctx context.Context, userID, draftID string) (*DraftView, error) {
	var view *DraftView
	err := s.withDraft(ctx, userID, draftID, func(d *Draft) error {
		view = d.viewLocked()
		return nil
	})
	return view, err
}

// CloseDraft discards a draft. Closing an unknown draft is not an error.
func (s *DefaultService) CloseDraft(ctx context.Context, userID, draftID string) error {
	d, ok := s.drafts.get(draftID)
	if !ok {
		return nil
	}
	if d.UserID != userID {
		return ErrDraftForbidden
	}
	s.discard(d)
	s.log.Info("draft closed", "draft", draftID)
	return nil
}

func (s *DefaultService) discard(d *Draft) {
	s.drafts.delete(d.ID)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

// withDraft resolves a draft, waits for its initial load and runs fn with
// the draft locked
func (s *DefaultService) withDraft(ctx context.Context, userID, draftID string, fn func(d *Draft) error) error {
	d, ok := s.drafts.get(draftID)
	if !ok {
		return ErrDraftNotFound
	}
	if d.UserID != userID {
		return ErrDraftForbidden
	}
	if err := d.await(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDraftNotFound
	}
	d.lastUsed = s.now()
	return fn(d)
}

// mutate runs fn and returns the resulting view
func (s *DefaultService) mutate(ctx context.Context, userID, draftID string, fn func(d *Draft) error) (*DraftView, error) {
	var view *DraftView
	err := s.withDraft(ctx, userID, draftID, func(d *Draft) error {
		if err := fn(d); err != nil {
			return err
		}
		view = d.viewLocked()
		return nil
	})
	return view, err
}

// Ledger editing
func (s *DefaultService) SetHeader(ctx context.Context, userID, draftID string, header models.TransactionHeader) (*DraftView, error) {
	return s.mutate(ctx, userID, draftID, func(d *Draft) error {
		if d.Kind == models.KindDelivery {
			// The source receipt is fixed once stock bounds were loaded for it
			header.ReceiptID = d.header.ReceiptID
		} else {
			header.ReceiptID = 0
		}
		d.header = header
		return nil
	})
}

func (s *DefaultService) RegisterDiameters(ctx context.Context, userID, draftID, diameters string) (*DraftView, error) {
	return s.mutate(ctx, userID, draftID, func(d *Draft) error {
		_, err := d.ledger.RegisterDiameters(diameters)
		return err
	})
}

// AddItem appends a row. A color already held by another row is rejected;
// the placeholder may repeat.
func (s *DefaultService) AddItem(ctx context.Context, userID, draftID string, item ledger.LineItem) (*DraftView, error) {
	return s.mutate(ctx, userID, draftID, func(d *Draft) error {
		if item.ColorID != ledger.Placeholder {
			if i := d.ledger.IndexOf(item.ColorID); i >= 0 {
				return &ledger.DuplicateColorError{ColorID: item.ColorID, Index: i}
			}
		}
		items := append(d.ledger.Items(), item)
		if err := d.bounds.CheckCells(items, ledger.CellsOf(item)); err != nil {
			return err
		}
		d.ledger.AddItem(item)
		return nil
	})
}

func (s *DefaultService) RemoveItem(ctx context.Context, userID, draftID string, colorID, dia int) (*DraftView, error) {
	return s.mutate(ctx, userID, draftID, func(d *Draft) error {
		d.ledger.RemoveItem(colorID, dia)
		return nil
	})
}

func (s *DefaultService) RemoveItemAt(ctx context.Context, userID, draftID string, index int) (*DraftView, error) {
	return s.mutate(ctx, userID, draftID, func(d *Draft) error {
		d.ledger.RemoveAt(index)
		return nil
	})
}

func (s *DefaultService) SetColor(ctx context.Context, userID, draftID string, index, colorID int) (*DraftView, error) {
	return s.mutate(ctx, userID, draftID, func(d *Draft) error {
		next := d.ledger.Clone()
		if err := next.SetColor(index, colorID); err != nil {
			return err
		}
		if d.bounds != nil && colorID != ledger.Placeholder {
			// Carried quantities must fit the new color's stock
			item, _ := next.Item(index)
			if err := d.bounds.CheckCells(next.Items(), ledger.CellsOf(item)); err != nil {
				return err
			}
		}
		d.ledger = next
		return nil
	})
}

// UpdateDetail applies a cell edit after checking it against the draft's
// bounds. The edit lands on every matching cell, so the check covers their
// total. A rejected edit leaves the stored value as it was.
func (s *DefaultService) UpdateDetail(ctx context.Context, userID, draftID string, colorID, dia int, u ledger.DetailUpdate) (*DraftView, error) {
	return s.mutate(ctx, userID, draftID, func(d *Draft) error {
		if err := d.bounds.Check(colorID, dia, u); err != nil {
			return err
		}
		next := d.ledger.Clone()
		next.UpdateDetail(colorID, dia, u)
		cell := map[ledger.Key]struct{}{{ColorID: colorID, Dia: dia}: {}}
		if err := d.bounds.CheckCells(next.Items(), cell); err != nil {
			return err
		}
		d.ledger = next
		return nil
	})
}

// AvailableColors lists the colors a row may switch to: every color not held
// by another row and, for deliveries, present in the source stock
func (s *DefaultService) AvailableColors(ctx context.Context, userID, draftID string, index int) ([]models.Reference, error) {
	var used, stocked map[int]struct{}
	err := s.withDraft(ctx, userID, draftID, func(d *Draft) error {
		used = d.ledger.UsedColors(index)
		if d.bounds != nil {
			stocked = d.bounds.Colors()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	colors, err := s.repo.ListReference(ctx, models.ReferenceColors)
	if err != nil {
		return nil, upstream("list colors", err)
	}

	out := make([]models.Reference, 0, len(colors))
	for _, c := range colors {
		if _, taken := used[int(c.ID)]; taken {
			continue
		}
		if stocked != nil {
			if _, ok := stocked[int(c.ID)]; !ok {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// SubmitDraft sends the draft to the inventory system. On failure the draft
// stays open and unchanged so the user can retry.
func (s *DefaultService) SubmitDraft(ctx context.Context, userID, draftID string) (*models.SubmitResponse, error) {
	var resp *models.SubmitResponse
	err := s.withDraft(ctx, userID, draftID, func(d *Draft) error {
		items := d.ledger.Items()
		if len(items) == 0 {
			return ErrEmptyDraft
		}
		for i, it := range items {
			if it.ColorID == ledger.Placeholder {
				return fmt.Errorf("%w (line item %d)", ErrUnresolvedColor, i)
			}
		}
		if k, dup := ledger.DuplicateCell(items); dup {
			if i := d.ledger.IndexOf(k.ColorID); i >= 0 && usedTwice(items, k.ColorID) {
				return &ledger.DuplicateColorError{ColorID: k.ColorID, Index: i}
			}
			return &ledger.ValidationError{
				Field:   "dia",
				Message: fmt.Sprintf("diameter %d appears more than once for color %d", k.Dia, k.ColorID),
			}
		}
		if err := d.bounds.CheckAll(items); err != nil {
			return err
		}

		txn := &models.Transaction{
			ID:                d.RecordID,
			Kind:              d.Kind,
			TransactionHeader: d.header,
			Details:           models.FromFlat(d.ledger.Flatten()),
		}
		sort.SliceStable(txn.Details, func(i, j int) bool {
			if txn.Details[i].ColorID != txn.Details[j].ColorID {
				return txn.Details[i].ColorID < txn.Details[j].ColorID
			}
			return txn.Details[i].Dia < txn.Details[j].Dia
		})

		var err error
		if d.RecordID == 0 {
			err = s.repo.CreateTransaction(ctx, txn)
		} else {
			err = s.repo.UpdateTransaction(ctx, txn)
		}
		if err != nil {
			s.log.Error("draft submission failed", "draft", d.ID, "error", err)
			return upstream("submit "+string(d.Kind), err)
		}

		resp = &models.SubmitResponse{
			Status:   "success",
			Kind:     d.Kind,
			RecordID: txn.ID,
			Lines:    len(txn.Details),
		}
		s.drafts.delete(d.ID)
		d.closeLocked()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("draft submitted", "draft", draftID, "kind", resp.Kind, "record", resp.RecordID, "lines", resp.Lines)
	return resp, nil
}

// Sweep closes drafts idle for longer than the configured TTL and returns
// how many were closed
func (s *DefaultService) Sweep(now time.Time) int {
	closed := 0
	for _, d := range s.drafts.snapshot() {
		d.mu.Lock()
		idle := now.Sub(d.lastUsed) > s.idleTTL
		if idle {
			s.drafts.delete(d.ID)
			d.closeLocked()
			closed++
		}
		d.mu.Unlock()
	}
	if closed > 0 {
		s.log.Info("swept idle drafts", "closed", closed, "open", s.drafts.Len())
	}
	return closed
}

func usedTwice(items []ledger.LineItem, colorID int) bool {
	n := 0
	for _, it := range items {
		if it.ColorID == colorID {
			n++
		}
	}
	return n > 1
}

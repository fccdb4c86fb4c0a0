package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rongwang/fabricstock/internal/ledger"
	"github.com/rongwang/fabricstock/internal/models"
	"github.com/rongwang/fabricstock/internal/repository"
)

const testUser = "user-1"

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time           { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// failingRepo rejects every write
type failingRepo struct {
	*repository.MemoryRepository
	err error
}

func (r *failingRepo) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.err
}

func (r *failingRepo) UpdateTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.err
}

// blockingRepo holds detail loads until released or cancelled
type blockingRepo struct {
	*repository.MemoryRepository
	release chan struct{}
}

func (r *blockingRepo) GetTransaction(ctx context.Context, kind models.TransactionKind, id int64) (*models.Transaction, error) {
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.MemoryRepository.GetTransaction(ctx, kind, id)
}

func newTestService(t *testing.T, repo repository.Repository) (*DefaultService, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewDefaultService(repo, Options{IdleTTL: 2 * time.Hour, Now: clock.now})
	return svc, clock
}

func w(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := w(s)
	return &d
}

func detail(color, dia, rolls int, weight string) models.TransactionDetail {
	return models.TransactionDetail{
		ColorID: models.FlexInt(color),
		Dia:     models.FlexInt(dia),
		Rolls:   models.FlexInt(rolls),
		Weight:  w(weight),
	}
}

// seedStock stores a receipt for colors 7 and 8 and returns its ID
func seedStock(repo *repository.MemoryRepository) int64 {
	return repo.SeedTransaction(models.Transaction{
		Kind: models.KindReceipt,
		TransactionHeader: models.TransactionHeader{
			CompanyID: 3,
			StoreID:   4,
			FabricID:  5,
			Number:    "R-100",
			Date:      "2024-02-20",
		},
		Details: []models.TransactionDetail{
			detail(7, 20, 10, "50.00"),
			detail(8, 22, 5, "20.00"),
		},
	})
}

func cellAt(t *testing.T, view *DraftView, row, dia int) ledger.Cell {
	t.Helper()
	require.Less(t, row, len(view.Grid.Rows))
	for _, c := range view.Grid.Rows[row].Cells {
		if c.Dia == dia {
			return c
		}
	}
	t.Fatalf("no cell for dia %d in row %d", dia, row)
	return ledger.Cell{}
}

func TestReceiptCreateAndSubmit(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	view, err := svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{
		Kind:   models.KindReceipt,
		Header: models.TransactionHeader{CompanyID: 1, StoreID: 2, FabricID: 3, Number: "R-1"},
	})
	require.NoError(t, err)
	assert.False(t, view.Bounded)
	assert.Empty(t, view.Grid.Rows)

	view, err = svc.RegisterDiameters(ctx, testUser, view.ID, "20,22,")
	require.NoError(t, err)
	assert.Equal(t, []int{20, 22}, view.Grid.Diameters)

	_, err = svc.SetColor(ctx, testUser, view.ID, 0, 5)
	require.NoError(t, err)

	view, err = svc.UpdateDetail(ctx, testUser, view.ID, 5, 20, ledger.DetailUpdate{Rolls: intPtr(3), Weight: decPtr("12.5")})
	require.NoError(t, err)
	assert.Equal(t, 3, view.Grid.Summary.TotalRolls)
	assert.Equal(t, "12.50", ledger.FormatWeight(view.Grid.Summary.TotalWeight))

	resp, err := svc.SubmitDraft(ctx, testUser, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.KindReceipt, resp.Kind)
	assert.Equal(t, 2, resp.Lines)
	assert.NotZero(t, resp.RecordID)

	saved, err := repo.GetTransaction(ctx, models.KindReceipt, resp.RecordID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "R-1", saved.Number)
	require.Len(t, saved.Details, 2)
	assert.Equal(t, models.FlexInt(3), saved.Details[0].Rolls)

	// Submitted drafts are gone
	_, err = svc.GetDraft(ctx, testUser, view.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestDeliveryCreateEnforcesBounds(t *testing.T) {
	repo := repository.NewMemoryRepository()
	receiptID := seedStock(repo)
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	view, err := svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{
		Kind:      models.KindDelivery,
		ReceiptID: receiptID,
	})
	require.NoError(t, err)
	assert.True(t, view.Bounded)
	assert.Equal(t, receiptID, view.ReceiptID)
	assert.Equal(t, int64(3), view.Header.CompanyID)
	assert.Equal(t, int64(5), view.Header.FabricID)

	_, err = svc.RegisterDiameters(ctx, testUser, view.ID, "20")
	require.NoError(t, err)
	_, err = svc.SetColor(ctx, testUser, view.ID, 0, 7)
	require.NoError(t, err)

	_, err = svc.UpdateDetail(ctx, testUser, view.ID, 7, 20, ledger.DetailUpdate{Rolls: intPtr(11)})
	var exceeded *ledger.QuantityExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, "rolls", exceeded.Field)
	assert.Equal(t, "10", exceeded.Max)

	// The rejected edit is not stored
	view, err = svc.GetDraft(ctx, testUser, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cellAt(t, view, 0, 20).Rolls)

	view, err = svc.UpdateDetail(ctx, testUser, view.ID, 7, 20, ledger.DetailUpdate{Rolls: intPtr(10), Weight: decPtr("49.99")})
	require.NoError(t, err)
	assert.Equal(t, 10, cellAt(t, view, 0, 20).Rolls)

	_, err = svc.UpdateDetail(ctx, testUser, view.ID, 7, 20, ledger.DetailUpdate{Weight: decPtr("50.01")})
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, "50.00", exceeded.Max)

	resp, err := svc.SubmitDraft(ctx, testUser, view.ID)
	require.NoError(t, err)

	saved, err := repo.GetTransaction(ctx, models.KindDelivery, resp.RecordID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, receiptID, saved.ReceiptID)

	stock, err := repo.GetAvailableStock(ctx, receiptID)
	require.NoError(t, err)
	assert.Equal(t, "0.01", stock[0].Weight.String())
	assert.Equal(t, models.FlexInt(0), stock[0].Rolls)
}

func TestDeliveryCannotOverdrawThroughRepeatedCells(t *testing.T) {
	repo := repository.NewMemoryRepository()
	receiptID := seedStock(repo)
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	view, err := svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{Kind: models.KindDelivery, ReceiptID: receiptID})
	require.NoError(t, err)

	full := ledger.LineItem{ColorID: 7, Details: []ledger.Detail{{Dia: 20, Rolls: 10, Weight: w("50.00")}}}
	_, err = svc.AddItem(ctx, testUser, view.ID, full)
	require.NoError(t, err)

	// A second row for the same color is refused
	_, err = svc.AddItem(ctx, testUser, view.ID, full)
	var dup *ledger.DuplicateColorError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 7, dup.ColorID)
	assert.Equal(t, 0, dup.Index)

	// Repeated diameters in one row are checked by their total
	_, err = svc.RemoveItemAt(ctx, testUser, view.ID, 0)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, testUser, view.ID, ledger.LineItem{ColorID: 7, Details: []ledger.Detail{
		{Dia: 20, Rolls: 6, Weight: w("20.00")},
		{Dia: 20, Rolls: 6, Weight: w("20.00")},
	}})
	var exceeded *ledger.QuantityExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, "rolls", exceeded.Field)

	_, err = svc.AddItem(ctx, testUser, view.ID, ledger.LineItem{ColorID: 7, Details: []ledger.Detail{
		{Dia: 20, Rolls: 5, Weight: w("20.00")},
		{Dia: 20, Rolls: 5, Weight: w("20.00")},
	}})
	require.NoError(t, err)

	// An edit writes every matching cell, so 6 + 6 is over the stock
	_, err = svc.UpdateDetail(ctx, testUser, view.ID, 7, 20, ledger.DetailUpdate{Rolls: intPtr(6)})
	require.ErrorAs(t, err, &exceeded)
	view, err = svc.GetDraft(ctx, testUser, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, view.Grid.Summary.TotalRolls)

	// Repeated cells are never submitted
	_, err = svc.SubmitDraft(ctx, testUser, view.ID)
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "dia", verr.Field)

	stock, err := repo.GetAvailableStock(ctx, receiptID)
	require.NoError(t, err)
	assert.Equal(t, models.FlexInt(10), stock[0].Rolls)
}

func TestReceiptRejectsRepeatedCellsOnSubmit(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	view, err := svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{Kind: models.KindReceipt})
	require.NoError(t, err)

	_, err = svc.RegisterDiameters(ctx, testUser, view.ID, "20,20")
	require.NoError(t, err)
	_, err = svc.SetColor(ctx, testUser, view.ID, 0, 5)
	require.NoError(t, err)

	_, err = svc.SubmitDraft(ctx, testUser, view.ID)
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)

	// Receipts are unbounded but still one row per color
	_, err = svc.AddItem(ctx, testUser, view.ID, ledger.LineItem{ColorID: 5, Details: []ledger.Detail{{Dia: 22, Rolls: 1}}})
	var dup *ledger.DuplicateColorError
	require.ErrorAs(t, err, &dup)

	_, err = svc.RemoveItemAt(ctx, testUser, view.ID, 0)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, testUser, view.ID, ledger.LineItem{ColorID: 5, Details: []ledger.Detail{{Dia: 20, Rolls: 4, Weight: w("8.00")}}})
	require.NoError(t, err)

	resp, err := svc.SubmitDraft(ctx, testUser, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Lines)
}

func TestDeliveryEditRestoresConsumedQuantity(t *testing.T) {
	repo := repository.NewMemoryRepository()
	receiptID := seedStock(repo)
	deliveryID := repo.SeedTransaction(models.Transaction{
		Kind:              models.KindDelivery,
		TransactionHeader: models.TransactionHeader{ReceiptID: receiptID, Number: "D-1"},
		Details:           []models.TransactionDetail{detail(7, 20, 4, "20.00")},
	})
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	view, err := svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{
		Kind:     models.KindDelivery,
		RecordID: deliveryID,
	})
	require.NoError(t, err)
	assert.Equal(t, receiptID, view.ReceiptID)
	require.Len(t, view.Grid.Rows, 1)
	assert.Equal(t, 4, cellAt(t, view, 0, 20).Rolls)

	// Available is 6 of 10; the delivery's own 4 can be restored
	view, err = svc.UpdateDetail(ctx, testUser, view.ID, 7, 20, ledger.DetailUpdate{Rolls: intPtr(10), Weight: decPtr("50")})
	require.NoError(t, err)
	assert.Equal(t, 10, cellAt(t, view, 0, 20).Rolls)

	_, err = svc.UpdateDetail(ctx, testUser, view.ID, 7, 20, ledger.DetailUpdate{Rolls: intPtr(11)})
	var exceeded *ledger.QuantityExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, "10", exceeded.Max)

	_, err = svc.SubmitDraft(ctx, testUser, view.ID)
	require.NoError(t, err)

	saved, err := repo.GetTransaction(ctx, models.KindDelivery, deliveryID)
	require.NoError(t, err)
	require.Len(t, saved.Details, 1)
	assert.Equal(t, models.FlexInt(10), saved.Details[0].Rolls)
}

func TestOpenDraftRejectsBadRequests(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{Kind: models.KindDelivery})
	assert.ErrorIs(t, err, ErrInvalidDraftRequest)

	_, err = svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{Kind: "transfer"})
	assert.ErrorIs(t, err, ErrInvalidDraftRequest)

	_, err = svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{Kind: models.KindReceipt, RecordID: 99})
	assert.ErrorIs(t, err, ErrSourceNotFound)

	// Failed loads do not leave drafts behind
	assert.Equal(t, 0, svc.Drafts().Len())
}

func TestDraftOwnership(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryRepository())
	ctx := context.Background()

	view, err := svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{Kind: models.KindReceipt})
	require.NoError(t, err)

	_, err = svc.GetDraft(ctx, "someone-else", view.ID)
	assert.ErrorIs(t, err, ErrDraftForbidden)
	_, err = svc.RegisterDiameters(ctx, "someone-else", view.ID, "20")
	assert.ErrorIs(t, err, ErrDraftForbidden)
	assert.ErrorIs(t, svc.CloseDraft(ctx, "someone-else", view.ID), ErrDraftForbidden)

	_, err = svc.GetDraft(ctx, testUser, "missing")
	assert.ErrorIs(t, err, ErrDraftNotFound)

	require.NoError(t, svc.CloseDraft(ctx, testUser, view.ID))
	require.NoError(t, svc.CloseDraft(ctx, testUser, view.ID))
	_, err = svc.GetDraft(ctx, testUser, view.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestSubmitFailureKeepsLedger(t *testing.T) {
	repo := &failingRepo{
		MemoryRepository: repository.NewMemoryRepository(),
		err:              errors.New("connection reset"),
	}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	view, err := svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{Kind: models.KindReceipt})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, testUser, view.ID, ledger.LineItem{
		ColorID: 2,
		Details: []ledger.Detail{{Dia: 24, Rolls: 6, Weight: w("30.25")}},
	})
	require.NoError(t, err)

	_, err = svc.SubmitDraft(ctx, testUser, view.ID)
	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.ErrorIs(t, err, repo.err)

	view, err = svc.GetDraft(ctx, testUser, view.ID)
	require.NoError(t, err)
	require.Len(t, view.Grid.Rows, 1)
	assert.Equal(t, 6, cellAt(t, view, 0, 24).Rolls)
	assert.Equal(t, "30.25", ledger.FormatWeight(view.Grid.Summary.TotalWeight))
}

func TestSubmitRejectsIncompleteDrafts(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryRepository())
	ctx := context.Background()

	view, err := svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{Kind: models.KindReceipt})
	require.NoError(t, err)

	_, err = svc.SubmitDraft(ctx, testUser, view.ID)
	assert.ErrorIs(t, err, ErrEmptyDraft)

	_, err = svc.RegisterDiameters(ctx, testUser, view.ID, "20")
	require.NoError(t, err)
	_, err = svc.SubmitDraft(ctx, testUser, view.ID)
	assert.ErrorIs(t, err, ErrUnresolvedColor)

	// Still open after both rejections
	_, err = svc.GetDraft(ctx, testUser, view.ID)
	assert.NoError(t, err)
}

func TestAvailableColorsExcludesUsedColors(t *testing.T) {
	repo := repository.NewMemoryRepository()
	repo.SeedReference(models.ReferenceColors,
		models.Reference{ID: 1, Name: "Black"},
		models.Reference{ID: 2, Name: "Navy"},
		models.Reference{ID: 3, Name: "White"},
	)
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	view, err := svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{Kind: models.KindReceipt})
	require.NoError(t, err)
	_, err = svc.RegisterDiameters(ctx, testUser, view.ID, "20")
	require.NoError(t, err)
	_, err = svc.RegisterDiameters(ctx, testUser, view.ID, "20")
	require.NoError(t, err)
	_, err = svc.SetColor(ctx, testUser, view.ID, 0, 1)
	require.NoError(t, err)

	colors, err := svc.AvailableColors(ctx, testUser, view.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, refIDs(colors))

	// A row may keep its own color
	colors, err = svc.AvailableColors(ctx, testUser, view.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, refIDs(colors))

	_, err = svc.SetColor(ctx, testUser, view.ID, 1, 1)
	var dup *ledger.DuplicateColorError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 0, dup.Index)
}

func TestAvailableColorsForDeliveryFollowStock(t *testing.T) {
	repo := repository.NewMemoryRepository()
	repo.SeedReference(models.ReferenceColors,
		models.Reference{ID: 7, Name: "Grey"},
		models.Reference{ID: 8, Name: "Olive"},
		models.Reference{ID: 9, Name: "Red"},
	)
	receiptID := seedStock(repo)
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	view, err := svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{Kind: models.KindDelivery, ReceiptID: receiptID})
	require.NoError(t, err)
	_, err = svc.RegisterDiameters(ctx, testUser, view.ID, "20")
	require.NoError(t, err)

	colors, err := svc.AvailableColors(ctx, testUser, view.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, refIDs(colors))
}

func refIDs(refs []models.Reference) []int64 {
	ids := make([]int64, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestLateLoadIsDiscardedAfterClose(t *testing.T) {
	release := make(chan struct{})
	discarded := make(chan struct{})

	d := newDraft("d-1", testUser, models.OpenDraftRequest{Kind: models.KindReceipt, RecordID: 1}, time.Now())
	d.start(func(ctx context.Context) (loadResult, error) {
		<-release
		return loadResult{
			details: []ledger.FlatDetail{{ColorID: 1, Dia: 20, Rolls: 3, Weight: w("1.50")}},
		}, nil
	}, func() { close(discarded) })

	d.mu.Lock()
	d.closeLocked()
	d.mu.Unlock()
	close(release)

	select {
	case <-discarded:
	case <-time.After(2 * time.Second):
		t.Fatal("late load result was not discarded")
	}

	assert.ErrorIs(t, d.await(context.Background()), ErrDraftClosed)
	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Equal(t, 0, d.ledger.Len())
}

func TestCloseCancelsPendingLoad(t *testing.T) {
	repo := &blockingRepo{MemoryRepository: repository.NewMemoryRepository(), release: make(chan struct{})}
	receiptID := repo.SeedTransaction(models.Transaction{
		Kind:    models.KindReceipt,
		Details: []models.TransactionDetail{detail(1, 20, 2, "4.00")},
	})
	svc, _ := newTestService(t, repo)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{Kind: models.KindReceipt, RecordID: receiptID})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The draft is still loading; closing it cancels the upstream call
	drafts := svc.Drafts().snapshot()
	require.Len(t, drafts, 1)
	d := drafts[0]
	require.NoError(t, svc.CloseDraft(context.Background(), testUser, d.ID))

	select {
	case <-d.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("loader did not observe cancellation")
	}
	assert.ErrorIs(t, d.await(context.Background()), ErrDraftClosed)
}

func TestSweepClosesIdleDrafts(t *testing.T) {
	svc, clock := newTestService(t, repository.NewMemoryRepository())
	ctx := context.Background()

	view, err := svc.OpenDraft(ctx, testUser, models.OpenDraftRequest{Kind: models.KindReceipt})
	require.NoError(t, err)

	clock.advance(time.Hour)
	_, err = svc.GetDraft(ctx, testUser, view.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, svc.Sweep(clock.t.Add(90*time.Minute)))
	assert.Equal(t, 1, svc.Sweep(clock.t.Add(3*time.Hour)))

	_, err = svc.GetDraft(ctx, testUser, view.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestNewSweeper(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryRepository())

	c, err := NewSweeper(svc, "@every 5m", svc.log)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = NewSweeper(svc, "every now and then", svc.log)
	assert.Error(t, err)
}

package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rongwang/fabricstock/internal/models"
)

// MemoryRepository keeps inventory data in process memory. It backs local
// development and tests.
type MemoryRepository struct {
	mu           sync.RWMutex
	references   map[models.ReferenceKind][]models.Reference
	transactions map[models.TransactionKind]map[int64]models.Transaction
	nextID       int64
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		references: map[models.ReferenceKind][]models.Reference{},
		transactions: map[models.TransactionKind]map[int64]models.Transaction{
			models.KindReceipt:  {},
			models.KindDelivery: {},
		},
	}
}

// Verify interface compliance
var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*HTTPRepository)(nil)
)

// SeedReference appends reference rows
func (r *MemoryRepository) SeedReference(kind models.ReferenceKind, refs ...models.Reference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.references[kind] = append(r.references[kind], refs...)
}

// SeedTransaction stores txn as is, keeping its ID when set
func (r *MemoryRepository) SeedTransaction(txn models.Transaction) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if txn.ID == 0 {
		r.nextID++
		txn.ID = r.nextID
	} else if txn.ID > r.nextID {
		r.nextID = txn.ID
	}
	r.transactions[txn.Kind][txn.ID] = cloneTransaction(txn)
	return txn.ID
}

func (r *MemoryRepository) ListReference(ctx context.Context, kind models.ReferenceKind) ([]models.Reference, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := append([]models.Reference{}, r.references[kind]...)
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func (r *MemoryRepository) GetTransaction(ctx context.Context, kind models.TransactionKind, id int64) (*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	byID, ok := r.transactions[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	txn, ok := byID[id]
	if !ok {
		return nil, nil // Transaction not found
	}
	out := cloneTransaction(txn)
	return &out, nil
}

func (r *MemoryRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.transactions[txn.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, txn.Kind)
	}
	r.nextID++
	txn.ID = r.nextID
	now := time.Now().UTC()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	byID[txn.ID] = cloneTransaction(*txn)
	return nil
}

func (r *MemoryRepository) UpdateTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.transactions[txn.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, txn.Kind)
	}
	existing, ok := byID[txn.ID]
	if !ok {
		return fmt.Errorf("%s %d not found", txn.Kind, txn.ID)
	}
	txn.CreatedAt = existing.CreatedAt
	txn.UpdatedAt = time.Now().UTC()
	byID[txn.ID] = cloneTransaction(*txn)
	return nil
}

// GetAvailableStock subtracts every delivery drawn from the receipt from the
// receipt's own detail lines
func (r *MemoryRepository) GetAvailableStock(ctx context.Context, receiptID int64) ([]models.TransactionDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	receipt, ok := r.transactions[models.KindReceipt][receiptID]
	if !ok {
		return []models.TransactionDetail{}, nil
	}

	type cell struct{ color, dia models.FlexInt }
	delivered := map[cell]models.TransactionDetail{}
	for _, d := range r.transactions[models.KindDelivery] {
		if d.ReceiptID != receiptID {
			continue
		}
		for _, dd := range d.Details {
			k := cell{dd.ColorID, dd.Dia}
			cur := delivered[k]
			cur.Rolls += dd.Rolls
			cur.Weight = cur.Weight.Add(dd.Weight)
			delivered[k] = cur
		}
	}

	stock := make([]models.TransactionDetail, 0, len(receipt.Details))
	for _, rd := range receipt.Details {
		used := delivered[cell{rd.ColorID, rd.Dia}]
		weight := rd.Weight.Sub(used.Weight)
		if weight.IsNegative() {
			weight = decimal.Zero
		}
		rolls := rd.Rolls - used.Rolls
		if rolls < 0 {
			rolls = 0
		}
		stock = append(stock, models.TransactionDetail{
			ColorID: rd.ColorID,
			Dia:     rd.Dia,
			Rolls:   rolls,
			Weight:  weight,
		})
	}
	return stock, nil
}

func cloneTransaction(txn models.Transaction) models.Transaction {
	out := txn
	out.Details = append([]models.TransactionDetail{}, txn.Details...)
	return out
}

package repository

import (
	"context"
	"errors"

	"github.com/rongwang/fabricstock/internal/models"
)

// ErrUnknownKind is returned for reference or transaction kinds the
// repository does not serve
var ErrUnknownKind = errors.New("unknown kind")

// Repository is the inventory system of record. It owns receipts,
// deliveries, reference data and the stock figures derived from them.
type Repository interface {
	// Reference data
	ListReference(ctx context.Context, kind models.ReferenceKind) ([]models.Reference, error)

	// Transactions; GetTransaction returns nil, nil when the record does not exist
	GetTransaction(ctx context.Context, kind models.TransactionKind, id int64) (*models.Transaction, error)
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	UpdateTransaction(ctx context.Context, tx *models.Transaction) error

	// Stock still available for delivery from a receipt, per (color, dia)
	GetAvailableStock(ctx context.Context, receiptID int64) ([]models.TransactionDetail, error)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rongwang/fabricstock/internal/models"
)

// PostgresRepository implements the Repository interface directly against
// the inventory database
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

var referenceTables = map[models.ReferenceKind]string{
	models.ReferenceFabrics:   "fabrics",
	models.ReferenceColors:    "colors",
	models.ReferenceStores:    "stores",
	models.ReferenceCompanies: "companies",
}

type transactionTables struct {
	master    string
	details   string
	parentKey string
}

var transactionTablesByKind = map[models.TransactionKind]transactionTables{
	models.KindReceipt:  {master: "receipts", details: "receipt_details", parentKey: "receipt_id"},
	models.KindDelivery: {master: "deliveries", details: "delivery_details", parentKey: "delivery_id"},
}

// Reference data
func (r *PostgresRepository) ListReference(ctx context.Context, kind models.ReferenceKind) ([]models.Reference, error) {
	table, ok := referenceTables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	refs := []models.Reference{}
	err := r.db.SelectContext(ctx, &refs, `SELECT id, name FROM `+table+` ORDER BY name`)
	if err != nil {
		return nil, err
	}

	return refs, nil
}

// Transaction methods
func (r *PostgresRepository) GetTransaction(ctx context.Context, kind models.TransactionKind, id int64) (*models.Transaction, error) {
	tables, ok := transactionTablesByKind[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	query := `SELECT id, company_id, store_id, fabric_id, number, to_char(date, 'YYYY-MM-DD') AS date, remarks, created_at, updated_at`
	if kind == models.KindDelivery {
		query += `, receipt_id`
	}
	query += ` FROM ` + tables.master + ` WHERE id = $1`

	var txn models.Transaction
	err := r.db.GetContext(ctx, &txn, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Transaction not found
		}
		return nil, err
	}
	txn.Kind = kind

	detailQuery := `
		SELECT color_id, dia, rolls, weight FROM ` + tables.details + `
		WHERE ` + tables.parentKey + ` = $1
		ORDER BY color_id, dia
	`
	txn.Details = []models.TransactionDetail{}
	if err := r.db.SelectContext(ctx, &txn.Details, detailQuery, id); err != nil {
		return nil, err
	}

	return &txn, nil
}

func (r *PostgresRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) (err error) {
	tables, ok := transactionTablesByKind[txn.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, txn.Kind)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	now := time.Now().UTC()
	txn.CreatedAt = now
	txn.UpdatedAt = now

	h := txn.TransactionHeader
	if txn.Kind == models.KindDelivery {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO deliveries (receipt_id, company_id, store_id, fabric_id, number, date, remarks, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, COALESCE(NULLIF($6, '')::date, CURRENT_DATE), $7, $8, $9)
			RETURNING id
		`, h.ReceiptID, h.CompanyID, h.StoreID, h.FabricID, h.Number, h.Date, h.Remarks, now, now).Scan(&txn.ID)
	} else {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO receipts (company_id, store_id, fabric_id, number, date, remarks, created_at, updated_at)
			VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5, '')::date, CURRENT_DATE), $6, $7, $8)
			RETURNING id
		`, h.CompanyID, h.StoreID, h.FabricID, h.Number, h.Date, h.Remarks, now, now).Scan(&txn.ID)
	}
	if err != nil {
		return err
	}

	if err = insertDetails(ctx, tx, tables, txn.ID, txn.Details); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) UpdateTransaction(ctx context.Context, txn *models.Transaction) (err error) {
	tables, ok := transactionTablesByKind[txn.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, txn.Kind)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	txn.UpdatedAt = time.Now().UTC()
	h := txn.TransactionHeader

	var res sql.Result
	if txn.Kind == models.KindDelivery {
		res, err = tx.ExecContext(ctx, `
			UPDATE deliveries
			SET receipt_id = $1, company_id = $2, store_id = $3, fabric_id = $4, number = $5, date = COALESCE(NULLIF($6, '')::date, date), remarks = $7, updated_at = $8
			WHERE id = $9
		`, h.ReceiptID, h.CompanyID, h.StoreID, h.FabricID, h.Number, h.Date, h.Remarks, txn.UpdatedAt, txn.ID)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE receipts
			SET company_id = $1, store_id = $2, fabric_id = $3, number = $4, date = COALESCE(NULLIF($5, '')::date, date), remarks = $6, updated_at = $7
			WHERE id = $8
		`, h.CompanyID, h.StoreID, h.FabricID, h.Number, h.Date, h.Remarks, txn.UpdatedAt, txn.ID)
	}
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = fmt.Errorf("%s %d not found", txn.Kind, txn.ID)
		return err
	}

	// Details are replaced wholesale
	_, err = tx.ExecContext(ctx, `DELETE FROM `+tables.details+` WHERE `+tables.parentKey+` = $1`, txn.ID)
	if err != nil {
		return err
	}

	if err = insertDetails(ctx, tx, tables, txn.ID, txn.Details); err != nil {
		return err
	}

	return tx.Commit()
}

func insertDetails(ctx context.Context, tx *sqlx.Tx, tables transactionTables, parentID int64, details []models.TransactionDetail) error {
	query := `
		INSERT INTO ` + tables.details + ` (` + tables.parentKey + `, color_id, dia, rolls, weight)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, d := range details {
		if _, err := tx.ExecContext(ctx, query, parentID, int(d.ColorID), int(d.Dia), int(d.Rolls), d.Weight); err != nil {
			return err
		}
	}
	return nil
}

// Stock
func (r *PostgresRepository) GetAvailableStock(ctx context.Context, receiptID int64) ([]models.TransactionDetail, error) {
	query := `
		WITH received AS (
			SELECT color_id, dia, SUM(rolls) AS rolls, SUM(weight) AS weight
			FROM receipt_details
			WHERE receipt_id = $1
			GROUP BY color_id, dia
		), delivered AS (
			SELECT dd.color_id, dd.dia, SUM(dd.rolls) AS rolls, SUM(dd.weight) AS weight
			FROM delivery_details dd
			JOIN deliveries d ON d.id = dd.delivery_id
			WHERE d.receipt_id = $1
			GROUP BY dd.color_id, dd.dia
		)
		SELECT r.color_id, r.dia,
			GREATEST(r.rolls - COALESCE(dv.rolls, 0), 0) AS rolls,
			GREATEST(r.weight - COALESCE(dv.weight, 0), 0) AS weight
		FROM received r
		LEFT JOIN delivered dv ON dv.color_id = r.color_id AND dv.dia = r.dia
		ORDER BY r.color_id, r.dia
	`

	stock := []models.TransactionDetail{}
	err := r.db.SelectContext(ctx, &stock, query, receiptID)
	if err != nil {
		return nil, err
	}

	return stock, nil
}

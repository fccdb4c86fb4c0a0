package config

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// CreateTables creates the inventory tables if they don't exist
func CreateTables(db *sqlx.DB) error {
	for _, table := range []string{"companies", "stores", "colors", "fabrics"} {
		_, err := db.Exec(`
			CREATE TABLE IF NOT EXISTS ` + table + ` (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(255) NOT NULL
			)
		`)
		if err != nil {
			return fmt.Errorf("create %s: %w", table, err)
		}
	}

	// Create receipts table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS receipts (
			id BIGSERIAL PRIMARY KEY,
			company_id BIGINT NOT NULL REFERENCES companies(id),
			store_id BIGINT NOT NULL REFERENCES stores(id),
			fabric_id BIGINT NOT NULL REFERENCES fabrics(id),
			number VARCHAR(64) NOT NULL DEFAULT '',
			date DATE NOT NULL DEFAULT CURRENT_DATE,
			remarks TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create receipt_details table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS receipt_details (
			receipt_id BIGINT NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
			color_id BIGINT NOT NULL REFERENCES colors(id),
			dia INTEGER NOT NULL,
			rolls INTEGER NOT NULL CHECK (rolls >= 0),
			weight NUMERIC(12, 2) NOT NULL CHECK (weight >= 0),
			PRIMARY KEY (receipt_id, color_id, dia)
		)
	`)
	if err != nil {
		return err
	}

	// Create deliveries table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS deliveries (
			id BIGSERIAL PRIMARY KEY,
			receipt_id BIGINT NOT NULL REFERENCES receipts(id),
			company_id BIGINT NOT NULL REFERENCES companies(id),
			store_id BIGINT NOT NULL REFERENCES stores(id),
			fabric_id BIGINT NOT NULL REFERENCES fabrics(id),
			number VARCHAR(64) NOT NULL DEFAULT '',
			date DATE NOT NULL DEFAULT CURRENT_DATE,
			remarks TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create delivery_details table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS delivery_details (
			delivery_id BIGINT NOT NULL REFERENCES deliveries(id) ON DELETE CASCADE,
			color_id BIGINT NOT NULL REFERENCES colors(id),
			dia INTEGER NOT NULL,
			rolls INTEGER NOT NULL CHECK (rolls >= 0),
			weight NUMERIC(12, 2) NOT NULL CHECK (weight >= 0),
			PRIMARY KEY (delivery_id, color_id, dia)
		)
	`)
	if err != nil {
		return err
	}

	return nil
}

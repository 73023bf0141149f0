package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/hkhalili/shopflow/internal/config"
	"github.com/hkhalili/shopflow/pkg/logger"
)

// Database represents a database connection
type Database struct {
	DB     *sqlx.DB
	logger logger.Logger
}

// New creates a new database connection
func New(cfg *config.Config, logger logger.Logger) (*Database, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDBConnString())

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to database", "host", cfg.DB.Host, "database", cfg.DB.Name)

	return &Database{
		DB:     db,
		logger: logger,
	}, nil
}

// Ping checks the database connection
func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

// RunMigrations runs database migrations
func (d *Database) RunMigrations() error {
	// For initial setup, just create tables directly
	// In a real project, you'd want to use a migration tool
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id VARCHAR(50) PRIMARY KEY,
		title VARCHAR(200) NOT NULL,
		sku VARCHAR(50) NOT NULL UNIQUE,
		price BIGINT NOT NULL CHECK (price >= 0),
		stock INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
		is_available BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS carts (
		id VARCHAR(50) PRIMARY KEY,
		user_id VARCHAR(50),
		session_id VARCHAR(100),
		promo_code_id VARCHAR(50),
		discount_amount BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		CHECK ((user_id IS NULL) <> (session_id IS NULL))
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_user ON carts(user_id) WHERE user_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS cart_items (
		id VARCHAR(50) PRIMARY KEY,
		cart_id VARCHAR(50) NOT NULL REFERENCES carts(id),
		product_id VARCHAR(50) NOT NULL REFERENCES products(id),
		quantity INT NOT NULL CHECK (quantity > 0),
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (cart_id, product_id)
	);

	CREATE TABLE IF NOT EXISTS promo_codes (
		id VARCHAR(50) PRIMARY KEY,
		code VARCHAR(50) NOT NULL UNIQUE,
		discount_type VARCHAR(20) NOT NULL,
		discount_value BIGINT NOT NULL,
		min_purchase BIGINT NOT NULL DEFAULT 0,
		max_discount BIGINT,
		valid_from TIMESTAMP NOT NULL,
		valid_to TIMESTAMP NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		max_uses INT,
		used_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		CHECK (max_uses IS NULL OR used_count <= max_uses)
	);

	CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(50) PRIMARY KEY,
		user_id VARCHAR(50) NOT NULL,
		status VARCHAR(25) NOT NULL,
		currency VARCHAR(3) NOT NULL DEFAULT 'IRR',
		total_amount BIGINT NOT NULL DEFAULT 0 CHECK (total_amount >= 0),
		phone_number VARCHAR(15) NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		tracking_code VARCHAR(100) NOT NULL DEFAULT '',
		shipping_method VARCHAR(50) NOT NULL DEFAULT '',
		shipping_cost BIGINT NOT NULL DEFAULT 0,
		discount_amount BIGINT NOT NULL DEFAULT 0,
		promo_code_id VARCHAR(50) REFERENCES promo_codes(id),
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

	CREATE TABLE IF NOT EXISTS order_items (
		id VARCHAR(50) PRIMARY KEY,
		order_id VARCHAR(50) NOT NULL REFERENCES orders(id),
		product_id VARCHAR(50) NOT NULL REFERENCES products(id),
		quantity INT NOT NULL CHECK (quantity > 0),
		price BIGINT NOT NULL CHECK (price >= 0),
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (order_id, product_id)
	);

	CREATE TABLE IF NOT EXISTS shipping_info (
		id VARCHAR(50) PRIMARY KEY,
		order_id VARCHAR(50) NOT NULL UNIQUE REFERENCES orders(id),
		address TEXT NOT NULL,
		city VARCHAR(100) NOT NULL,
		province VARCHAR(100) NOT NULL,
		postal_code VARCHAR(20) NOT NULL,
		recipient_name VARCHAR(200) NOT NULL,
		phone_number VARCHAR(15) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS order_status_history (
		id SERIAL PRIMARY KEY,
		order_id VARCHAR(50) NOT NULL REFERENCES orders(id),
		from_status VARCHAR(25) NOT NULL,
		to_status VARCHAR(25) NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_status_history_order ON order_status_history(order_id);

	CREATE TABLE IF NOT EXISTS payments (
		id VARCHAR(50) PRIMARY KEY,
		order_id VARCHAR(50) NOT NULL REFERENCES orders(id),
		amount BIGINT NOT NULL CHECK (amount >= 0),
		status VARCHAR(20) NOT NULL,
		gateway VARCHAR(50) NOT NULL,
		currency VARCHAR(3) NOT NULL DEFAULT 'IRR',
		reference_id VARCHAR(255),
		transaction_id VARCHAR(255),
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id);
	-- at most one completed payment per order
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_completed
		ON payments(order_id) WHERE status = 'COMPLETED';

	CREATE TABLE IF NOT EXISTS payment_transactions (
		id SERIAL PRIMARY KEY,
		payment_id VARCHAR(50) NOT NULL REFERENCES payments(id),
		amount BIGINT NOT NULL,
		transaction_id VARCHAR(255),
		provider_status VARCHAR(100),
		raw_request JSONB,
		raw_response JSONB,
		receipt_path VARCHAR(255),
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_payment_txns_payment ON payment_transactions(payment_id);

	CREATE TABLE IF NOT EXISTS invoices (
		id VARCHAR(50) PRIMARY KEY,
		order_id VARCHAR(50) NOT NULL UNIQUE REFERENCES orders(id),
		invoice_number VARCHAR(50) NOT NULL UNIQUE,
		status VARCHAR(25) NOT NULL,
		total_amount BIGINT NOT NULL,
		currency VARCHAR(3) NOT NULL DEFAULT 'IRR',
		shipping_address TEXT NOT NULL,
		phone_number VARCHAR(15) NOT NULL,
		pdf_path VARCHAR(255),
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS invoice_items (
		id SERIAL PRIMARY KEY,
		invoice_id VARCHAR(50) NOT NULL REFERENCES invoices(id),
		product_title VARCHAR(200) NOT NULL,
		product_sku VARCHAR(50) NOT NULL,
		quantity INT NOT NULL,
		price BIGINT NOT NULL
	);

	-- single-row counter serializing invoice number allocation
	CREATE TABLE IF NOT EXISTS invoice_sequence (
		id INT PRIMARY KEY CHECK (id = 1),
		last_number BIGINT NOT NULL
	);
	INSERT INTO invoice_sequence (id, last_number) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;

	-- Outbox table for message publishing
	CREATE TABLE IF NOT EXISTS outbox_messages (
		id SERIAL PRIMARY KEY,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(50) NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMP,
		processing_attempts INT NOT NULL DEFAULT 0,
		last_error TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages(status);
	CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox_messages(aggregate_type, aggregate_id);
	`

	_, err := d.DB.Exec(schema)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hkhalili/shopflow/internal/database"
	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/logger"
)

// InvoiceRepository handles database operations for invoices and their
// immutable item snapshots.
type InvoiceRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewInvoiceRepository creates a new InvoiceRepository
func NewInvoiceRepository(db *database.Database, logger logger.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// GetByOrderID retrieves the invoice for an order, if one exists
func (r *InvoiceRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Invoice, error) {
	query := `
		SELECT id, order_id, invoice_number, status, total_amount, currency,
		       shipping_address, phone_number, pdf_path, created_at
		FROM invoices
		WHERE order_id = $1
	`

	var invoice models.Invoice
	err := r.db.DB.GetContext(ctx, &invoice, query, orderID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get invoice by order ID", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &invoice, nil
}

// GetItems retrieves the snapshot lines of an invoice
func (r *InvoiceRepository) GetItems(ctx context.Context, invoiceID string) ([]*models.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, product_title, product_sku, quantity, price
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id ASC
	`

	var items []*models.InvoiceItem
	err := r.db.DB.SelectContext(ctx, &items, query, invoiceID)

	if err != nil {
		r.logger.Error("Failed to get invoice items", "error", err, "invoiceID", invoiceID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return items, nil
}

// Create persists a new invoice snapshot for an order in one transaction.
// The invoice number comes from the single-row invoice_sequence counter;
// the row-level lock taken by its UPDATE serializes concurrent
// generations so numbers are unique and strictly increasing. If another
// transaction created the invoice first, the unique constraint on
// order_id surfaces and the existing invoice is returned instead.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice, items []*models.InvoiceItem) (*models.Invoice, error) {
	tx, err := r.db.DB.BeginTxx(ctx, nil)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx, `
		UPDATE invoice_sequence
		SET last_number = last_number + 1
		WHERE id = 1
		RETURNING last_number
	`).Scan(&seq)

	if err != nil {
		r.logger.Error("Failed to advance invoice sequence", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	invoice.InvoiceNumber = models.FormatInvoiceNumber(seq)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (
			id, order_id, invoice_number, status, total_amount, currency,
			shipping_address, phone_number, pdf_path, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		invoice.ID, invoice.OrderID, invoice.InvoiceNumber, invoice.Status,
		invoice.TotalAmount, invoice.Currency, invoice.ShippingAddress,
		invoice.PhoneNumber, invoice.PDFPath, invoice.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			// Another completion won the race; hand back its invoice.
			tx.Rollback()
			return r.GetByOrderID(ctx, invoice.OrderID)
		}
		r.logger.Error("Failed to create invoice", "error", err, "orderID", invoice.OrderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	for _, item := range items {
		item.InvoiceID = invoice.ID

		_, err = tx.ExecContext(ctx, `
			INSERT INTO invoice_items (invoice_id, product_title, product_sku, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, item.InvoiceID, item.ProductTitle, item.ProductSKU, item.Quantity, item.Price)

		if err != nil {
			r.logger.Error("Failed to create invoice item", "error", err, "invoiceID", invoice.ID)
			return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
		}
	}

	event, err := models.NewInvoiceGeneratedEvent(invoice)

	if err != nil {
		return nil, fmt.Errorf("failed to build invoice generated event: %w", err)
	}

	if err := insertOutboxMessageTx(tx, event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit invoice creation", "error", err, "orderID", invoice.OrderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return invoice, nil
}

// SetPDFPath records the generated PDF artifact location
func (r *InvoiceRepository) SetPDFPath(ctx context.Context, invoiceID, path string) error {
	query := `UPDATE invoices SET pdf_path = $1 WHERE id = $2`

	_, err := r.db.DB.ExecContext(ctx, query, path, invoiceID)

	if err != nil {
		r.logger.Error("Failed to set invoice PDF path", "error", err, "invoiceID", invoiceID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint error
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

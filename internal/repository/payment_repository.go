package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hkhalili/shopflow/internal/database"
	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/logger"
)

// PaymentRepository handles database operations for payments and the
// payment transaction audit log.
type PaymentRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *database.Database, logger logger.Logger) *PaymentRepository {
	return &PaymentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new payment attempt
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (
			id, order_id, amount, status, gateway, currency,
			reference_id, transaction_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.DB.ExecContext(
		ctx,
		query,
		payment.ID,
		payment.OrderID,
		payment.Amount,
		payment.Status,
		payment.Gateway,
		payment.Currency,
		payment.ReferenceID,
		payment.TransactionID,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create payment", "error", err, "paymentID", payment.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	query := `
		SELECT id, order_id, amount, status, gateway, currency,
		       reference_id, transaction_id, created_at, updated_at
		FROM payments
		WHERE id = $1
	`

	var payment models.Payment
	err := r.db.DB.GetContext(ctx, &payment, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get payment by ID", "error", err, "paymentID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &payment, nil
}

// GetByOrderID retrieves all payment attempts for an order, newest first
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) ([]*models.Payment, error) {
	query := `
		SELECT id, order_id, amount, status, gateway, currency,
		       reference_id, transaction_id, created_at, updated_at
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at DESC
	`

	var payments []*models.Payment
	err := r.db.DB.SelectContext(ctx, &payments, query, orderID)

	if err != nil {
		r.logger.Error("Failed to get payments by order ID", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return payments, nil
}

// GetReusableForOrder finds an open payment attempt for the order and
// gateway that a retried request can reuse instead of creating a new row.
func (r *PaymentRepository) GetReusableForOrder(ctx context.Context, orderID, gateway string) (*models.Payment, error) {
	query := `
		SELECT id, order_id, amount, status, gateway, currency,
		       reference_id, transaction_id, created_at, updated_at
		FROM payments
		WHERE order_id = $1 AND gateway = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	var payment models.Payment
	err := r.db.DB.GetContext(ctx, &payment, query, orderID, gateway, models.PaymentStatusPending)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to look up reusable payment", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &payment, nil
}

// SetProcessing stores the gateway authority and moves the payment to PROCESSING
func (r *PaymentRepository) SetProcessing(ctx context.Context, payment *models.Payment, referenceID string) error {
	now := models.GetCurrentTime()

	query := `
		UPDATE payments
		SET status = $1, reference_id = $2, updated_at = $3
		WHERE id = $4
	`

	_, err := r.db.DB.ExecContext(ctx, query, models.PaymentStatusProcessing, referenceID, now, payment.ID)

	if err != nil {
		r.logger.Error("Failed to mark payment processing", "error", err, "paymentID", payment.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	payment.Status = models.PaymentStatusProcessing
	payment.ReferenceID = &referenceID
	payment.UpdatedAt = now
	return nil
}

// SetStatus updates the payment status only
func (r *PaymentRepository) SetStatus(ctx context.Context, payment *models.Payment, status models.PaymentStatus) error {
	now := models.GetCurrentTime()

	query := `
		UPDATE payments
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	_, err := r.db.DB.ExecContext(ctx, query, status, now, payment.ID)

	if err != nil {
		r.logger.Error("Failed to update payment status", "error", err, "paymentID", payment.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	payment.Status = status
	payment.UpdatedAt = now
	return nil
}

// Complete marks the payment COMPLETED and stores the provider's final
// transaction reference, in one transaction with the payment_completed
// outbox event. The guard clause plus the partial unique index on
// (order_id) WHERE status = 'COMPLETED' enforce at most one completed
// payment per order.
func (r *PaymentRepository) Complete(ctx context.Context, payment *models.Payment, transactionID string) error {
	tx, err := r.db.DB.BeginTxx(ctx, nil)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	now := models.GetCurrentTime()

	result, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, transaction_id = $2, updated_at = $3
		WHERE id = $4 AND status <> $1
	`, models.PaymentStatusCompleted, transactionID, now, payment.ID)

	if err != nil {
		r.logger.Error("Failed to complete payment", "error", err, "paymentID", payment.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	affected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if affected == 0 {
		return models.ErrAlreadyVerified
	}

	payment.Status = models.PaymentStatusCompleted
	payment.TransactionID = &transactionID
	payment.UpdatedAt = now

	event, err := models.NewPaymentCompletedEvent(payment)

	if err != nil {
		return fmt.Errorf("failed to build payment completed event: %w", err)
	}

	if err := insertOutboxMessageTx(tx, event); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit payment completion", "error", err, "paymentID", payment.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// CreateTransaction appends a gateway interaction audit row
func (r *PaymentRepository) CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions (
			payment_id, amount, transaction_id, provider_status,
			raw_request, raw_response, receipt_path, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.DB.QueryRowContext(
		ctx,
		query,
		txn.PaymentID,
		txn.Amount,
		txn.TransactionID,
		txn.ProviderStatus,
		nullableJSON(txn.RawRequest),
		nullableJSON(txn.RawResponse),
		txn.ReceiptPath,
		txn.CreatedAt,
	).Scan(&txn.ID)

	if err != nil {
		r.logger.Error("Failed to create payment transaction", "error", err, "paymentID", txn.PaymentID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// AttachVerification records the gateway's answer on an existing audit row
func (r *PaymentRepository) AttachVerification(ctx context.Context, txn *models.PaymentTransaction) error {
	query := `
		UPDATE payment_transactions
		SET raw_response = $1, provider_status = $2, transaction_id = $3
		WHERE id = $4
	`

	_, err := r.db.DB.ExecContext(
		ctx,
		query,
		nullableJSON(txn.RawResponse),
		txn.ProviderStatus,
		txn.TransactionID,
		txn.ID,
	)

	if err != nil {
		r.logger.Error("Failed to attach verification result", "error", err, "transactionID", txn.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// GetTransactions retrieves the audit rows for a payment, newest first
func (r *PaymentRepository) GetTransactions(ctx context.Context, paymentID string) ([]*models.PaymentTransaction, error) {
	query := `
		SELECT id, payment_id, amount, transaction_id, provider_status,
		       raw_request, raw_response, receipt_path, created_at
		FROM payment_transactions
		WHERE payment_id = $1
		ORDER BY created_at DESC
	`

	var txns []*models.PaymentTransaction
	err := r.db.DB.SelectContext(ctx, &txns, query, paymentID)

	if err != nil {
		r.logger.Error("Failed to get payment transactions", "error", err, "paymentID", paymentID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return txns, nil
}

// nullableJSON maps an empty payload to NULL so the JSONB column stays clean
func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

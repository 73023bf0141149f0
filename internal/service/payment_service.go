package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hkhalili/shopflow/internal/gateways"
	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/logger"
)

// PaymentStore is the slice of payment persistence reconciliation needs
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) ([]*models.Payment, error)
	GetReusableForOrder(ctx context.Context, orderID, gateway string) (*models.Payment, error)
	SetProcessing(ctx context.Context, payment *models.Payment, referenceID string) error
	SetStatus(ctx context.Context, payment *models.Payment, status models.PaymentStatus) error
	Complete(ctx context.Context, payment *models.Payment, transactionID string) error
	CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error
	AttachVerification(ctx context.Context, txn *models.PaymentTransaction) error
	GetTransactions(ctx context.Context, paymentID string) ([]*models.PaymentTransaction, error)
}

// OrderFlow is the order lifecycle surface reconciliation drives. Every
// status change still goes through the transition table.
type OrderFlow interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	MarkPaymentProcessing(ctx context.Context, orderID string) (*models.Order, error)
	MarkPaymentConfirmed(ctx context.Context, orderID string) (*models.Order, error)
	MarkAwaitingVerification(ctx context.Context, orderID string) (*models.Order, error)
}

// InvoiceGenerator produces the immutable invoice snapshot after a
// completed payment.
type InvoiceGenerator interface {
	GenerateForOrder(ctx context.Context, orderID string) (*models.Invoice, error)
}

// PaymentRequestOutcome is returned to the caller of RequestPayment. A
// provider decline shows up as Success=false with the provider message;
// it is not an error.
type PaymentRequestOutcome struct {
	Payment         *models.Payment `json:"payment"`
	PaymentURL      string          `json:"payment_url,omitempty"`
	RequiresReceipt bool            `json:"requires_receipt,omitempty"`
	Success         bool            `json:"success"`
	ErrorMessage    string          `json:"error_message,omitempty"`
}

// VerificationOutcome is returned to the caller of VerifyPayment
type VerificationOutcome struct {
	Payment      *models.Payment `json:"payment"`
	Order        *models.Order   `json:"order,omitempty"`
	Invoice      *models.Invoice `json:"invoice,omitempty"`
	Success      bool            `json:"success"`
	Canceled     bool            `json:"canceled,omitempty"`
	RefID        string          `json:"ref_id,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// PaymentService orchestrates the reconciliation flow between the order
// lifecycle, the payment gateways and the invoice generator. Gateway
// network calls happen outside any database transaction; the audit trail
// is written before and after each call so a crash mid-flight still
// leaves evidence.
type PaymentService struct {
	payments PaymentStore
	orders   OrderFlow
	invoices InvoiceGenerator
	registry *gateways.Registry
	logger   logger.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	payments PaymentStore,
	orders OrderFlow,
	invoices InvoiceGenerator,
	registry *gateways.Registry,
	logger logger.Logger,
) *PaymentService {
	return &PaymentService{
		payments: payments,
		orders:   orders,
		invoices: invoices,
		registry: registry,
		logger:   logger,
	}
}

func isPayable(status models.OrderStatus) bool {
	return status == models.OrderStatusPending || status == models.OrderStatusProcessing
}

// RequestPayment starts a payment attempt for the order. An open PENDING
// attempt for the same gateway is reused so retried requests do not pile
// up rows. On provider success the payment and the order move to
// PROCESSING and the redirect URL is returned; on a well-formed
// provider decline the payment moves to FAILED and the decline is
// reported in the outcome,
// never as an error. Infrastructure failures surface as errors, after a
// FAILED audit row is recorded.
func (s *PaymentService) RequestPayment(ctx context.Context, orderID, gatewayName string) (*PaymentRequestOutcome, error) {
	order, err := s.orders.GetOrder(ctx, orderID)

	if err != nil {
		return nil, err
	}

	if !isPayable(order.Status) {
		return nil, fmt.Errorf("%w: order %s is %s", models.ErrInvalidOrderState, order.ID, order.Status)
	}

	gateway, err := s.registry.Get(gatewayName)

	if err != nil {
		return nil, err
	}

	payment, err := s.payments.GetReusableForOrder(ctx, orderID, gateway.Name())

	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}

		payment = models.NewPayment(order, gateway.Name())

		if err := s.payments.Create(ctx, payment); err != nil {
			return nil, err
		}
	}

	// The outbound request goes on the audit trail before the network
	// call so a crash mid-flight still leaves evidence of the attempt.
	txn := &models.PaymentTransaction{
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		RawRequest: mustJSON(map[string]interface{}{
			"order_id": order.ID,
			"amount":   payment.Amount,
			"currency": payment.Currency,
			"gateway":  gateway.Name(),
		}),
		CreatedAt: models.GetCurrentTime(),
	}

	if err := s.payments.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	result, err := gateway.RequestPayment(ctx, order, payment)

	if err != nil {
		s.recordFailure(ctx, payment, txn, "request failed", err)
		return nil, err
	}

	txn.RawResponse = result.RawResponse
	txn.ProviderStatus = &result.ProviderStatus

	if err := s.payments.AttachVerification(ctx, txn); err != nil {
		return nil, err
	}

	if !result.Success {
		if err := s.payments.SetStatus(ctx, payment, models.PaymentStatusFailed); err != nil {
			return nil, err
		}

		s.logger.Warn("Payment request declined by provider",
			"paymentID", payment.ID,
			"orderID", order.ID,
			"providerStatus", result.ProviderStatus)

		return &PaymentRequestOutcome{
			Payment:      payment,
			Success:      false,
			ErrorMessage: result.ErrorMessage,
		}, nil
	}

	if result.RequiresReceipt {
		// Offline path: no redirect, the order waits for a receipt upload
		// and administrative approval.
		if _, err := s.orders.MarkAwaitingVerification(ctx, order.ID); err != nil {
			return nil, err
		}

		return &PaymentRequestOutcome{
			Payment:         payment,
			RequiresReceipt: true,
			Success:         true,
		}, nil
	}

	if err := s.payments.SetProcessing(ctx, payment, result.Authority); err != nil {
		return nil, err
	}

	// The order follows the open attempt into PROCESSING so verification
	// can confirm it through the transition table later. A retried
	// request on an already processing order is a no-op.
	if _, err := s.orders.MarkPaymentProcessing(ctx, order.ID); err != nil {
		return nil, err
	}

	s.logger.Info("Payment requested",
		"paymentID", payment.ID,
		"orderID", order.ID,
		"gateway", gateway.Name(),
		"authority", result.Authority)

	return &PaymentRequestOutcome{
		Payment:    payment,
		PaymentURL: result.PaymentURL,
		Success:    true,
	}, nil
}

// VerifyPayment settles a payment attempt from a provider callback. The
// idempotency guard rejects a payment that is already COMPLETED with
// ErrAlreadyVerified so duplicate callbacks are harmless. On confirmed
// success the payment completes, the order moves to CONFIRMED through
// the transition table, and the invoice is generated; a failed invoice
// generation is logged and retried out-of-band from the payment
// completed event. Cancellation and provider declines mark the payment
// FAILED and leave the order untouched so the user can retry.
func (s *PaymentService) VerifyPayment(ctx context.Context, paymentID string, data gateways.CallbackData, gatewayName string) (*VerificationOutcome, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)

	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusCompleted {
		return nil, models.ErrAlreadyVerified
	}

	if gatewayName == "" {
		gatewayName = payment.Gateway
	}

	gateway, err := s.registry.Get(gatewayName)

	if err != nil {
		return nil, err
	}

	rawCallback, _ := json.Marshal(data)

	txn := &models.PaymentTransaction{
		PaymentID:  payment.ID,
		Amount:     payment.Amount,
		RawRequest: rawCallback,
		CreatedAt:  models.GetCurrentTime(),
	}

	if err := s.payments.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	result, err := gateway.VerifyPayment(ctx, payment, data)

	if err != nil {
		s.recordFailure(ctx, payment, txn, "verification failed", err)
		return nil, err
	}

	txn.RawResponse = result.RawResponse
	txn.ProviderStatus = &result.ProviderStatus

	if !result.Success {
		if err := s.payments.AttachVerification(ctx, txn); err != nil {
			return nil, err
		}

		if err := s.payments.SetStatus(ctx, payment, models.PaymentStatusFailed); err != nil {
			return nil, err
		}

		s.logger.Info("Payment verification unsuccessful",
			"paymentID", payment.ID,
			"orderID", payment.OrderID,
			"canceled", result.Canceled,
			"providerStatus", result.ProviderStatus)

		return &VerificationOutcome{
			Payment:      payment,
			Success:      false,
			Canceled:     result.Canceled,
			ErrorMessage: result.ErrorMessage,
		}, nil
	}

	if err := s.payments.Complete(ctx, payment, result.RefID); err != nil {
		if errors.Is(err, models.ErrAlreadyVerified) {
			// Lost the race against a concurrent callback; that callback
			// owns the downstream effects.
			return nil, models.ErrAlreadyVerified
		}
		return nil, err
	}

	txn.TransactionID = &result.RefID

	if err := s.payments.AttachVerification(ctx, txn); err != nil {
		return nil, err
	}

	order, err := s.orders.MarkPaymentConfirmed(ctx, payment.OrderID)

	if err != nil {
		return nil, err
	}

	invoice, err := s.invoices.GenerateForOrder(ctx, payment.OrderID)

	if err != nil {
		// The payment completed event retries generation out-of-band.
		s.logger.Error("Invoice generation failed after payment completion",
			"error", err,
			"orderID", payment.OrderID)
		invoice = nil
	}

	s.logger.Info("Payment verified",
		"paymentID", payment.ID,
		"orderID", payment.OrderID,
		"refID", result.RefID)

	return &VerificationOutcome{
		Payment: payment,
		Order:   order,
		Invoice: invoice,
		Success: true,
		RefID:   result.RefID,
	}, nil
}

// ReplaySettledPayment builds the success outcome for a repeated
// callback on a payment that already completed. Nothing is written;
// the invoice comes from the idempotent generator.
func (s *PaymentService) ReplaySettledPayment(ctx context.Context, paymentID string) (*VerificationOutcome, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)

	if err != nil {
		return nil, err
	}

	if payment.Status != models.PaymentStatusCompleted {
		return nil, fmt.Errorf("payment %s is not settled", payment.ID)
	}

	order, err := s.orders.GetOrder(ctx, payment.OrderID)

	if err != nil {
		return nil, err
	}

	invoice, err := s.invoices.GenerateForOrder(ctx, payment.OrderID)

	if err != nil {
		s.logger.Error("Invoice lookup failed on replayed callback",
			"error", err,
			"orderID", payment.OrderID)
		invoice = nil
	}

	var refID string
	if payment.TransactionID != nil {
		refID = *payment.TransactionID
	}

	return &VerificationOutcome{
		Payment: payment,
		Order:   order,
		Invoice: invoice,
		Success: true,
		RefID:   refID,
	}, nil
}

// AttachReceipt records an uploaded receipt for a manual payment and
// parks the order in AWAITING_VERIFICATION until an administrator
// approves it.
func (s *PaymentService) AttachReceipt(ctx context.Context, paymentID, receiptPath string) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)

	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusCompleted {
		return nil, models.ErrAlreadyVerified
	}

	status := "RECEIPT_UPLOADED"
	txn := &models.PaymentTransaction{
		PaymentID:      payment.ID,
		Amount:         payment.Amount,
		ProviderStatus: &status,
		ReceiptPath:    &receiptPath,
		CreatedAt:      models.GetCurrentTime(),
	}

	if err := s.payments.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	if _, err := s.orders.MarkAwaitingVerification(ctx, payment.OrderID); err != nil && !errors.Is(err, models.ErrInvalidTransition) {
		return nil, err
	}

	s.logger.Info("Receipt attached to payment",
		"paymentID", payment.ID,
		"orderID", payment.OrderID)

	return payment, nil
}

// ApproveManualPayment is the administrative approval of an uploaded
// receipt; it runs the normal verification flow with the approval status.
func (s *PaymentService) ApproveManualPayment(ctx context.Context, paymentID string) (*VerificationOutcome, error) {
	return s.VerifyPayment(ctx, paymentID, gateways.CallbackData{
		Status: gateways.ManualStatusApproved,
	}, "")
}

// GetPayment retrieves a payment by ID
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.payments.GetByID(ctx, paymentID)
}

// ListOrderPayments retrieves every payment attempt for an order
func (s *PaymentService) ListOrderPayments(ctx context.Context, orderID string) ([]*models.Payment, error) {
	return s.payments.GetByOrderID(ctx, orderID)
}

// recordFailure attaches an infrastructure error to the audit row
// opened before the gateway call and marks the payment FAILED. Best
// effort: a second failure here is logged, not returned.
func (s *PaymentService) recordFailure(ctx context.Context, payment *models.Payment, txn *models.PaymentTransaction, stage string, cause error) {
	status := "ERROR"
	txn.ProviderStatus = &status
	txn.RawResponse = mustJSON(map[string]string{"error": fmt.Sprintf("%s: %v", stage, cause)})

	if err := s.payments.AttachVerification(ctx, txn); err != nil {
		s.logger.Error("Failed to record payment failure", "error", err, "paymentID", payment.ID)
	}

	if err := s.payments.SetStatus(ctx, payment, models.PaymentStatusFailed); err != nil {
		s.logger.Error("Failed to mark payment failed", "error", err, "paymentID", payment.ID)
	}
}

func mustJSON(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}

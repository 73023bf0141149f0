package models

import (
	"time"
)

// PaymentStatus represents the status of a payment attempt
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

// Payment is one attempt to collect money for an order via a gateway.
// An order may accumulate several failed attempts but at most one row
// ever reaches COMPLETED.
type Payment struct {
	ID            string        `db:"id" json:"id"`
	OrderID       string        `db:"order_id" json:"order_id"`
	Amount        int64         `db:"amount" json:"amount"`
	Status        PaymentStatus `db:"status" json:"status"`
	Gateway       string        `db:"gateway" json:"gateway"`
	Currency      string        `db:"currency" json:"currency"`
	ReferenceID   *string       `db:"reference_id" json:"reference_id,omitempty"`
	TransactionID *string       `db:"transaction_id" json:"transaction_id,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentTransaction is an append-only audit row for one gateway
// interaction (request or verify call). Raw payloads are stored opaque.
type PaymentTransaction struct {
	ID             int64     `db:"id" json:"id"`
	PaymentID      string    `db:"payment_id" json:"payment_id"`
	Amount         int64     `db:"amount" json:"amount"`
	TransactionID  *string   `db:"transaction_id" json:"transaction_id,omitempty"`
	ProviderStatus *string   `db:"provider_status" json:"provider_status,omitempty"`
	RawRequest     []byte    `db:"raw_request" json:"raw_request,omitempty"`
	RawResponse    []byte    `db:"raw_response" json:"raw_response,omitempty"`
	ReceiptPath    *string   `db:"receipt_path" json:"receipt_path,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// NewPayment creates a new pending payment for an order
func NewPayment(order *Order, gateway string) *Payment {
	now := GetCurrentTime()

	return &Payment{
		ID:        GenerateID("pay"),
		OrderID:   order.ID,
		Amount:    order.TotalAmount,
		Status:    PaymentStatusPending,
		Gateway:   gateway,
		Currency:  order.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

package models

import (
	"encoding/json"
	"time"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Event types written to the outbox alongside the rows they describe
const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
	EventPaymentCompleted   = "payment_completed"
	EventInvoiceGenerated   = "invoice_generated"
)

// OutboxMessage is a row in the transactional outbox. It is written in the
// same database transaction as the state change it announces and published
// to Kafka by the outbox processor afterwards.
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// OutboxMessageEvent is the envelope serialized into the payload column
type OutboxMessageEvent struct {
	EventType   string      `json:"event_type"`
	EventID     string      `json:"event_id"`
	AggregateID string      `json:"aggregate_id"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Data        interface{} `json:"data"`
}

func newOutboxMessage(aggregateType, aggregateID, eventType string, data interface{}) (*OutboxMessage, error) {
	event := OutboxMessageEvent{
		EventType:   eventType,
		EventID:     GenerateID("evt"),
		AggregateID: aggregateID,
		OccurredAt:  GetCurrentTime(),
		Data:        data,
	}

	payload, err := json.Marshal(event)

	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     GetCurrentTime(),
		Status:        OutboxStatusPending,
	}, nil
}

// NewOrderCreatedEvent announces a freshly assembled order
func NewOrderCreatedEvent(order *Order) (*OutboxMessage, error) {
	return newOutboxMessage("order", order.ID, EventOrderCreated, order)
}

// NewOrderStatusChangedEvent announces a validated status transition
func NewOrderStatusChangedEvent(order *Order, from, to OrderStatus) (*OutboxMessage, error) {
	return newOutboxMessage("order", order.ID, EventOrderStatusChanged, map[string]interface{}{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"from_status": from,
		"to_status":   to,
	})
}

// NewPaymentCompletedEvent announces a verified payment. The invoice-retry
// consumer uses it to regenerate missing invoices out-of-band.
func NewPaymentCompletedEvent(payment *Payment) (*OutboxMessage, error) {
	return newOutboxMessage("payment", payment.ID, EventPaymentCompleted, map[string]interface{}{
		"payment_id":     payment.ID,
		"order_id":       payment.OrderID,
		"amount":         payment.Amount,
		"currency":       payment.Currency,
		"gateway":        payment.Gateway,
		"transaction_id": payment.TransactionID,
	})
}

// NewInvoiceGeneratedEvent announces a generated invoice snapshot
func NewInvoiceGeneratedEvent(invoice *Invoice) (*OutboxMessage, error) {
	return newOutboxMessage("invoice", invoice.ID, EventInvoiceGenerated, map[string]interface{}{
		"invoice_id":     invoice.ID,
		"order_id":       invoice.OrderID,
		"invoice_number": invoice.InvoiceNumber,
		"total_amount":   invoice.TotalAmount,
	})
}

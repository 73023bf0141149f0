package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"

	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/logger"
)

// InvoiceGenerator regenerates the invoice snapshot for an order. The
// call is idempotent, so replayed events are harmless.
type InvoiceGenerator interface {
	GenerateForOrder(ctx context.Context, orderID string) (*models.Invoice, error)
}

// PaymentEventsHandler consumes the order event stream and reacts to
// payment completions. Its job is the out-of-band safety net: if invoice
// generation failed inline during verification, the replayed
// payment_completed event regenerates it here.
type PaymentEventsHandler struct {
	invoices InvoiceGenerator
	logger   logger.Logger
}

// NewPaymentEventsHandler creates a new PaymentEventsHandler
func NewPaymentEventsHandler(invoices InvoiceGenerator, logger logger.Logger) *PaymentEventsHandler {
	return &PaymentEventsHandler{
		invoices: invoices,
		logger:   logger,
	}
}

// HandleMessage handles an incoming Kafka message from the events topic
func (h *PaymentEventsHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event models.OutboxMessageEvent

	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("Failed to unmarshal event", "error", err)
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	switch event.EventType {
	case models.EventPaymentCompleted:
		return h.handlePaymentCompleted(ctx, event)
	case models.EventOrderCreated, models.EventOrderStatusChanged, models.EventInvoiceGenerated:
		h.logger.Debug("Ignoring event",
			"eventType", event.EventType,
			"aggregateID", event.AggregateID)
		return nil
	default:
		h.logger.Warn("Unknown event type", "eventType", event.EventType)
		return nil
	}
}

func (h *PaymentEventsHandler) handlePaymentCompleted(ctx context.Context, event models.OutboxMessageEvent) error {
	data, ok := event.Data.(map[string]interface{})

	if !ok {
		return fmt.Errorf("invalid payment completed event data")
	}

	orderID, _ := data["order_id"].(string)

	if orderID == "" {
		return fmt.Errorf("payment completed event without order_id")
	}

	invoice, err := h.invoices.GenerateForOrder(ctx, orderID)

	if err != nil {
		h.logger.Error("Failed to generate invoice from event",
			"error", err,
			"orderID", orderID,
			"eventID", event.EventID)
		return err
	}

	h.logger.Info("Invoice ensured for completed payment",
		"orderID", orderID,
		"invoiceNumber", invoice.InvoiceNumber)

	return nil
}

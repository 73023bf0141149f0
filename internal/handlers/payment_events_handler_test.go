package handlers

import (
	"context"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/logger"
)

type fakeInvoiceGenerator struct {
	generated []string
	err       error
}

func (f *fakeInvoiceGenerator) GenerateForOrder(ctx context.Context, orderID string) (*models.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.generated = append(f.generated, orderID)
	return &models.Invoice{OrderID: orderID, InvoiceNumber: "INV000001"}, nil
}

func consumerMessage(t *testing.T, msg *models.OutboxMessage) *sarama.ConsumerMessage {
	t.Helper()
	return &sarama.ConsumerMessage{Value: msg.Payload}
}

func TestHandleMessage_PaymentCompletedRegeneratesInvoice(t *testing.T) {
	invoices := &fakeInvoiceGenerator{}
	handler := NewPaymentEventsHandler(invoices, logger.NopLogger{})

	event, err := models.NewPaymentCompletedEvent(&models.Payment{
		ID:      "pay-1",
		OrderID: "ord-1",
		Amount:  250_000,
		Gateway: "zarinpal",
	})
	require.NoError(t, err)

	err = handler.HandleMessage(context.Background(), consumerMessage(t, event))

	require.NoError(t, err)
	assert.Equal(t, []string{"ord-1"}, invoices.generated)
}

func TestHandleMessage_OtherEventsIgnored(t *testing.T) {
	invoices := &fakeInvoiceGenerator{}
	handler := NewPaymentEventsHandler(invoices, logger.NopLogger{})

	event, err := models.NewOrderStatusChangedEvent(
		&models.Order{ID: "ord-1", UserID: "user-1"},
		models.OrderStatusPending,
		models.OrderStatusCancelled,
	)
	require.NoError(t, err)

	err = handler.HandleMessage(context.Background(), consumerMessage(t, event))

	require.NoError(t, err)
	assert.Empty(t, invoices.generated)
}

func TestHandleMessage_GenerationFailureIsReturned(t *testing.T) {
	invoices := &fakeInvoiceGenerator{err: assert.AnError}
	handler := NewPaymentEventsHandler(invoices, logger.NopLogger{})

	event, err := models.NewPaymentCompletedEvent(&models.Payment{ID: "pay-1", OrderID: "ord-1"})
	require.NoError(t, err)

	err = handler.HandleMessage(context.Background(), consumerMessage(t, event))

	// the error propagates so the consumer can retry the offset
	assert.ErrorIs(t, err, assert.AnError)
}

func TestHandleMessage_MalformedPayload(t *testing.T) {
	handler := NewPaymentEventsHandler(&fakeInvoiceGenerator{}, logger.NopLogger{})

	err := handler.HandleMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("{not json")})

	assert.Error(t, err)
}

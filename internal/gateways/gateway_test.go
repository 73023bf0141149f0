package gateways

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkhalili/shopflow/pkg/logger"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry("manual")
	manual := NewManualGateway(logger.NopLogger{})
	registry.Register(manual)

	got, err := registry.Get("manual")
	require.NoError(t, err)
	assert.Equal(t, manual, got)

	// empty name resolves the default
	got, err = registry.Get("")
	require.NoError(t, err)
	assert.Equal(t, manual, got)

	_, err = registry.Get("zarinpal")
	assert.ErrorIs(t, err, ErrUnknownGateway)
}

func TestManualGateway_RequestRequiresReceipt(t *testing.T) {
	gw := NewManualGateway(logger.NopLogger{})

	result, err := gw.RequestPayment(context.Background(), testOrder(), testPayment())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.RequiresReceipt)
	assert.Empty(t, result.PaymentURL)
}

func TestManualGateway_Verify(t *testing.T) {
	gw := NewManualGateway(logger.NopLogger{})
	payment := testPayment()

	result, err := gw.VerifyPayment(context.Background(), payment, CallbackData{Status: ManualStatusApproved})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, payment.ID, result.RefID)

	result, err = gw.VerifyPayment(context.Background(), payment, CallbackData{Status: "REJECTED"})
	require.NoError(t, err)
	assert.False(t, result.Success)
}

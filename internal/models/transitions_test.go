package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_AllowedEdges(t *testing.T) {
	allowed := []struct {
		from OrderStatus
		to   OrderStatus
	}{
		{OrderStatusCart, OrderStatusPending},
		{OrderStatusPending, OrderStatusProcessing},
		{OrderStatusPending, OrderStatusAwaitingVerification},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusAwaitingVerification, OrderStatusConfirmed},
		{OrderStatusAwaitingVerification, OrderStatusCancelled},
		{OrderStatusProcessing, OrderStatusConfirmed},
		{OrderStatusProcessing, OrderStatusCancelled},
		{OrderStatusConfirmed, OrderStatusShipped},
		{OrderStatusConfirmed, OrderStatusCancelled},
		{OrderStatusShipped, OrderStatusDelivered},
		{OrderStatusShipped, OrderStatusReturned},
		{OrderStatusDelivered, OrderStatusReturned},
		{OrderStatusReturned, OrderStatusRefunded},
		{OrderStatusCancelled, OrderStatusRefunded},
	}

	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}
}

func TestCanTransition_DeniedEdges(t *testing.T) {
	denied := []struct {
		from OrderStatus
		to   OrderStatus
	}{
		{OrderStatusCart, OrderStatusConfirmed},
		{OrderStatusPending, OrderStatusShipped},
		{OrderStatusPending, OrderStatusDelivered},
		{OrderStatusConfirmed, OrderStatusDelivered},
		{OrderStatusShipped, OrderStatusCancelled},
		{OrderStatusDelivered, OrderStatusShipped},
		{OrderStatusDelivered, OrderStatusCancelled},
		{OrderStatusRefunded, OrderStatusPending},
		{OrderStatusRefunded, OrderStatusRefunded},
		{OrderStatusCancelled, OrderStatusPending},
		// same-status changes are not edges
		{OrderStatusPending, OrderStatusPending},
		{OrderStatusShipped, OrderStatusShipped},
	}

	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestRefundedIsTerminal(t *testing.T) {
	assert.Empty(t, AllowedTransitions(OrderStatusRefunded))
}

func TestOrderStatusHelpers(t *testing.T) {
	order := &Order{Status: OrderStatusConfirmed}
	assert.True(t, order.CanShip())
	assert.True(t, order.CanCancel())
	assert.False(t, order.CanDeliver())

	order.Status = OrderStatusShipped
	assert.True(t, order.CanDeliver())
	assert.False(t, order.CanCancel())

	order.Status = OrderStatusDelivered
	assert.False(t, order.CanShip())
	assert.False(t, order.CanCancel())
}

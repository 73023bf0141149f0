package models

// allowedTransitions is the directed edge set of the order status machine.
// REFUNDED is terminal; DELIVERED and CANCELLED only lead into the
// return/refund path.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCart:                 {OrderStatusPending},
	OrderStatusPending:              {OrderStatusProcessing, OrderStatusAwaitingVerification, OrderStatusCancelled},
	OrderStatusAwaitingVerification: {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusProcessing:           {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:            {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:              {OrderStatusDelivered, OrderStatusReturned},
	OrderStatusDelivered:            {OrderStatusReturned},
	OrderStatusReturned:             {OrderStatusRefunded},
	OrderStatusCancelled:            {OrderStatusRefunded},
}

// AllowedTransitions returns the statuses reachable from the current status
func AllowedTransitions(current OrderStatus) []OrderStatus {
	return allowedTransitions[current]
}

// CanTransition reports whether the status change is a legal edge.
// A same-status change is not an edge; callers that want idempotent
// replay semantics handle it as a no-op before consulting the table.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanCancel reports whether the order can still be cancelled.
// Computed from the transition table, never cached on the row.
func (o *Order) CanCancel() bool {
	return CanTransition(o.Status, OrderStatusCancelled)
}

// CanShip reports whether the order can be shipped
func (o *Order) CanShip() bool {
	return CanTransition(o.Status, OrderStatusShipped)
}

// CanDeliver reports whether the order can be marked delivered
func (o *Order) CanDeliver() bool {
	return CanTransition(o.Status, OrderStatusDelivered)
}

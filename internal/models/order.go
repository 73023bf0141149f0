package models

import (
	"time"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusCart                 OrderStatus = "CART"
	OrderStatusPending              OrderStatus = "PENDING"
	OrderStatusAwaitingVerification OrderStatus = "AWAITING_VERIFICATION"
	OrderStatusProcessing           OrderStatus = "PROCESSING"
	OrderStatusConfirmed            OrderStatus = "CONFIRMED"
	OrderStatusShipped              OrderStatus = "SHIPPED"
	OrderStatusDelivered            OrderStatus = "DELIVERED"
	OrderStatusCancelled            OrderStatus = "CANCELLED"
	OrderStatusRefunded             OrderStatus = "REFUNDED"
	OrderStatusReturned             OrderStatus = "RETURNED"
)

// Order represents a customer purchase progressing through the status lifecycle
type Order struct {
	ID             string      `db:"id" json:"id"`
	UserID         string      `db:"user_id" json:"user_id"`
	Status         OrderStatus `db:"status" json:"status"`
	Currency       string      `db:"currency" json:"currency"`
	TotalAmount    int64       `db:"total_amount" json:"total_amount"`
	PhoneNumber    string      `db:"phone_number" json:"phone_number"`
	Notes          string      `db:"notes" json:"notes,omitempty"`
	TrackingCode   string      `db:"tracking_code" json:"tracking_code,omitempty"`
	ShippingMethod string      `db:"shipping_method" json:"shipping_method"`
	ShippingCost   int64       `db:"shipping_cost" json:"shipping_cost"`
	DiscountAmount int64       `db:"discount_amount" json:"discount_amount"`
	PromoCodeID    *string     `db:"promo_code_id" json:"promo_code_id,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderItem is a snapshot of one product line at order-creation time.
// Price is frozen when the order is created and does not follow later
// product price changes.
type OrderItem struct {
	ID        string    `db:"id" json:"id"`
	OrderID   string    `db:"order_id" json:"order_id"`
	ProductID string    `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Price     int64     `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TotalPrice returns quantity times the frozen unit price
func (i *OrderItem) TotalPrice() int64 {
	return int64(i.Quantity) * i.Price
}

// ShippingInfo holds the delivery address attached to an order
type ShippingInfo struct {
	ID            string    `db:"id" json:"id"`
	OrderID       string    `db:"order_id" json:"order_id"`
	Address       string    `db:"address" json:"address"`
	City          string    `db:"city" json:"city"`
	Province      string    `db:"province" json:"province"`
	PostalCode    string    `db:"postal_code" json:"postal_code"`
	RecipientName string    `db:"recipient_name" json:"recipient_name"`
	PhoneNumber   string    `db:"phone_number" json:"phone_number"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// OrderStatusHistory is an append-only log row for one status transition
type OrderStatusHistory struct {
	ID         int64       `db:"id" json:"id"`
	OrderID    string      `db:"order_id" json:"order_id"`
	FromStatus OrderStatus `db:"from_status" json:"from_status"`
	ToStatus   OrderStatus `db:"to_status" json:"to_status"`
	Note       string      `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// NewOrder creates a new order in PENDING state
func NewOrder(userID, currency, phoneNumber, shippingMethod, notes string, shippingCost int64) *Order {
	now := GetCurrentTime()

	return &Order{
		ID:             GenerateID("ord"),
		UserID:         userID,
		Status:         OrderStatusPending,
		Currency:       currency,
		PhoneNumber:    phoneNumber,
		ShippingMethod: shippingMethod,
		ShippingCost:   shippingCost,
		Notes:          notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

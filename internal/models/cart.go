package models

import (
	"time"
)

// Cart is the mutable pre-order collection of product lines. Exactly one
// of UserID or SessionID is set; anonymous session carts are merged into
// a user cart on login.
type Cart struct {
	ID             string    `db:"id" json:"id"`
	UserID         *string   `db:"user_id" json:"user_id,omitempty"`
	SessionID      *string   `db:"session_id" json:"session_id,omitempty"`
	PromoCodeID    *string   `db:"promo_code_id" json:"promo_code_id,omitempty"`
	DiscountAmount int64     `db:"discount_amount" json:"discount_amount"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// CartItem is one product line in a cart. The (cart, product) pair is
// unique; adding the same product again bumps the quantity.
type CartItem struct {
	ID        string    `db:"id" json:"id"`
	CartID    string    `db:"cart_id" json:"cart_id"`
	ProductID string    `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewCart creates a cart for either a user or an anonymous session
func NewCart(userID, sessionID *string) *Cart {
	now := GetCurrentTime()

	return &Cart{
		ID:        GenerateID("crt"),
		UserID:    userID,
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

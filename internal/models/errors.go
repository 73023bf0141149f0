package models

import "errors"

// Domain rule violations. These are validation-class errors: the API layer
// recovers them and returns a structured 4xx response, state is left untouched.
var (
	ErrInvalidTransition     = errors.New("invalid order status transition")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrProductUnavailable    = errors.New("product is not available")
	ErrInvalidPromo          = errors.New("promo code is invalid or expired")
	ErrUsageLimitExceeded    = errors.New("promo code usage limit exceeded")
	ErrMinimumPurchase       = errors.New("order total below promo minimum purchase")
	ErrInvalidOrderState     = errors.New("order is not in a payable state")
	ErrAlreadyVerified       = errors.New("payment already verified")
	ErrInvalidShippingMethod = errors.New("invalid shipping method")
	ErrTrackingCodeRequired  = errors.New("tracking code is required")
)

package service

import (
	"context"
	"fmt"

	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/logger"
)

// OrderStore is the slice of order persistence the order service needs.
// The coarse-grained CreateFromCart and Transition methods own their
// transaction boundaries.
type OrderStore interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error)
	GetAll(ctx context.Context, limit, offset int) ([]*models.Order, error)
	GetItems(ctx context.Context, orderID string) ([]*models.OrderItem, error)
	GetShippingInfo(ctx context.Context, orderID string) (*models.ShippingInfo, error)
	GetStatusHistory(ctx context.Context, orderID string) ([]*models.OrderStatusHistory, error)
	CreateFromCart(ctx context.Context, order *models.Order, shipping *models.ShippingInfo, cartID string, cartItems []*models.CartItem, promo *models.PromoCode) ([]*models.OrderItem, error)
	Transition(ctx context.Context, order *models.Order, from, to models.OrderStatus, note string) error
}

// CartStore is the slice of cart persistence order assembly reads from
type CartStore interface {
	GetByID(ctx context.Context, id string) (*models.Cart, error)
	GetItems(ctx context.Context, cartID string) ([]*models.CartItem, error)
}

// ProductStore is the catalog slice used to price carts before checkout
type ProductStore interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Product, error)
}

// CreateOrderParams carries the checkout inputs for order assembly
type CreateOrderParams struct {
	UserID           string
	CartID           string
	Currency         string
	PhoneNumber      string
	Notes            string
	ShippingMethodID string
	Shipping         *models.ShippingInfo
}

// OrderDetail bundles an order with its related rows for read endpoints
type OrderDetail struct {
	Order    *models.Order                `json:"order"`
	Items    []*models.OrderItem          `json:"items"`
	Shipping *models.ShippingInfo         `json:"shipping,omitempty"`
	History  []*models.OrderStatusHistory `json:"history,omitempty"`
}

// OrderService owns the order lifecycle: assembly from a cart and every
// status transition. All status changes go through Transition so the
// transition table is enforced on a single path.
type OrderService struct {
	orders   OrderStore
	carts    CartStore
	products ProductStore
	promos   PromoStore
	shipping *ShippingCalculator
	logger   logger.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(
	orders OrderStore,
	carts CartStore,
	products ProductStore,
	promos PromoStore,
	shipping *ShippingCalculator,
	logger logger.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		carts:    carts,
		products: products,
		promos:   promos,
		shipping: shipping,
		logger:   logger,
	}
}

// CreateFromCart assembles a new PENDING order from the cart. The cart
// must be non-empty and the shipping method must serve the delivery
// province. Stock consumption, item snapshots, cart cleanup and promo
// redemption commit atomically in the store.
func (s *OrderService) CreateFromCart(ctx context.Context, params CreateOrderParams) (*OrderDetail, error) {
	cart, err := s.carts.GetByID(ctx, params.CartID)

	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	cartItems, err := s.carts.GetItems(ctx, params.CartID)

	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}

	if len(cartItems) == 0 {
		return nil, models.ErrEmptyCart
	}

	if err := s.shipping.ValidateShippingMethod(params.ShippingMethodID, params.Shipping.Province); err != nil {
		return nil, err
	}

	cartTotal, err := s.cartTotal(ctx, cartItems)

	if err != nil {
		return nil, err
	}

	shippingCost, err := s.shipping.CalculateShippingCost(params.ShippingMethodID, params.Shipping.Province, cartTotal)

	if err != nil {
		return nil, err
	}

	var promo *models.PromoCode
	if cart.PromoCodeID != nil {
		promo, err = s.promos.GetByID(ctx, *cart.PromoCodeID)

		if err != nil {
			return nil, fmt.Errorf("failed to load cart promo: %w", err)
		}
	}

	order := models.NewOrder(
		params.UserID,
		params.Currency,
		params.PhoneNumber,
		params.ShippingMethodID,
		params.Notes,
		shippingCost,
	)

	items, err := s.orders.CreateFromCart(ctx, order, params.Shipping, cart.ID, cartItems, promo)

	if err != nil {
		return nil, err
	}

	s.logger.Info("Order created",
		"orderID", order.ID,
		"userID", order.UserID,
		"total", order.TotalAmount,
		"items", len(items),
	)

	return &OrderDetail{
		Order:    order,
		Items:    items,
		Shipping: params.Shipping,
	}, nil
}

func (s *OrderService) cartTotal(ctx context.Context, cartItems []*models.CartItem) (int64, error) {
	ids := make([]string, 0, len(cartItems))
	for _, ci := range cartItems {
		ids = append(ids, ci.ProductID)
	}

	products, err := s.products.GetByIDs(ctx, ids)

	if err != nil {
		return 0, fmt.Errorf("failed to price cart: %w", err)
	}

	prices := make(map[string]int64, len(products))
	for _, p := range products {
		prices[p.ID] = p.Price
	}

	var total int64
	for _, ci := range cartItems {
		price, ok := prices[ci.ProductID]
		if !ok {
			return 0, fmt.Errorf("%w: product %s", models.ErrProductUnavailable, ci.ProductID)
		}
		total += int64(ci.Quantity) * price
	}

	return total, nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// GetOrderDetail retrieves an order with its items, shipping info and history
func (s *OrderService) GetOrderDetail(ctx context.Context, orderID string) (*OrderDetail, error) {
	order, err := s.orders.GetByID(ctx, orderID)

	if err != nil {
		return nil, err
	}

	items, err := s.orders.GetItems(ctx, orderID)

	if err != nil {
		return nil, err
	}

	shipping, err := s.orders.GetShippingInfo(ctx, orderID)

	if err != nil && !isNotFound(err) {
		return nil, err
	}

	history, err := s.orders.GetStatusHistory(ctx, orderID)

	if err != nil {
		return nil, err
	}

	return &OrderDetail{
		Order:    order,
		Items:    items,
		Shipping: shipping,
		History:  history,
	}, nil
}

// ListUserOrders retrieves a user's orders, newest first
func (s *OrderService) ListUserOrders(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	return s.orders.GetByUserID(ctx, userID, limit, offset)
}

// Transition validates and executes a status change. A transition to the
// current status is treated as an idempotent no-op so retried requests
// are harmless; anything outside the transition table fails with
// ErrInvalidTransition and leaves the order untouched.
func (s *OrderService) Transition(ctx context.Context, orderID string, to models.OrderStatus, note string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)

	if err != nil {
		return nil, err
	}

	return s.transition(ctx, order, to, note)
}

func (s *OrderService) transition(ctx context.Context, order *models.Order, to models.OrderStatus, note string) (*models.Order, error) {
	from := order.Status

	if from == to {
		s.logger.Debug("Order already in target status", "orderID", order.ID, "status", to)
		return order, nil
	}

	if !models.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}

	if err := s.orders.Transition(ctx, order, from, to, note); err != nil {
		return nil, err
	}

	s.logger.Info("Order status changed", "orderID", order.ID, "from", from, "to", to)

	return order, nil
}

// Cancel moves the order to CANCELLED when its current status allows it
func (s *OrderService) Cancel(ctx context.Context, orderID, note string) (*models.Order, error) {
	return s.Transition(ctx, orderID, models.OrderStatusCancelled, note)
}

// ConfirmShipping moves a CONFIRMED order to SHIPPED and records the
// carrier tracking code. An empty tracking code is rejected before any
// state is touched.
func (s *OrderService) ConfirmShipping(ctx context.Context, orderID, trackingCode string) (*models.Order, error) {
	if trackingCode == "" {
		return nil, models.ErrTrackingCodeRequired
	}

	order, err := s.orders.GetByID(ctx, orderID)

	if err != nil {
		return nil, err
	}

	order.TrackingCode = trackingCode

	return s.transition(ctx, order, models.OrderStatusShipped, "shipped with tracking code "+trackingCode)
}

// MarkDelivered moves a SHIPPED order to DELIVERED
func (s *OrderService) MarkDelivered(ctx context.Context, orderID string) (*models.Order, error) {
	return s.Transition(ctx, orderID, models.OrderStatusDelivered, "delivery confirmed")
}

// ProcessReturn moves a DELIVERED order to RETURNED
func (s *OrderService) ProcessReturn(ctx context.Context, orderID, note string) (*models.Order, error) {
	return s.Transition(ctx, orderID, models.OrderStatusReturned, note)
}

// ProcessRefund moves the order to REFUNDED
func (s *OrderService) ProcessRefund(ctx context.Context, orderID, note string) (*models.Order, error) {
	return s.Transition(ctx, orderID, models.OrderStatusRefunded, note)
}

// MarkPaymentProcessing moves the order to PROCESSING when a redirect
// payment attempt opens. A retried attempt on an order that is already
// processing falls into the no-op path.
func (s *OrderService) MarkPaymentProcessing(ctx context.Context, orderID string) (*models.Order, error) {
	return s.Transition(ctx, orderID, models.OrderStatusProcessing, "payment requested")
}

// MarkPaymentConfirmed moves the order to CONFIRMED after a verified
// payment. The reconciliation flow calls this instead of writing the
// status directly.
func (s *OrderService) MarkPaymentConfirmed(ctx context.Context, orderID string) (*models.Order, error) {
	return s.Transition(ctx, orderID, models.OrderStatusConfirmed, "payment verified")
}

// MarkAwaitingVerification parks the order while a manual payment
// receipt waits for admin review.
func (s *OrderService) MarkAwaitingVerification(ctx context.Context, orderID string) (*models.Order, error) {
	return s.Transition(ctx, orderID, models.OrderStatusAwaitingVerification, "receipt uploaded, awaiting review")
}

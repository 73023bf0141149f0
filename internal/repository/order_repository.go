package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hkhalili/shopflow/internal/database"
	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/logger"
)

// OrderRepository handles database operations for orders, order items,
// shipping info and the status history log.
type OrderRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *database.Database, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves an order by its ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `
		SELECT id, user_id, status, currency, total_amount, phone_number, notes,
		       tracking_code, shipping_method, shipping_cost, discount_amount,
		       promo_code_id, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var order models.Order
	err := r.db.DB.GetContext(ctx, &order, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get order by ID", "error", err, "orderID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &order, nil
}

// GetByUserID retrieves all orders for a user, newest first
func (r *OrderRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	query := `
		SELECT id, user_id, status, currency, total_amount, phone_number, notes,
		       tracking_code, shipping_method, shipping_cost, discount_amount,
		       promo_code_id, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, query, userID, limit, offset)

	if err != nil {
		r.logger.Error("Failed to get orders by user ID", "error", err, "userID", userID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return orders, nil
}

// GetAll retrieves all orders with optional limit and offset
func (r *OrderRepository) GetAll(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	query := `
		SELECT id, user_id, status, currency, total_amount, phone_number, notes,
		       tracking_code, shipping_method, shipping_cost, discount_amount,
		       promo_code_id, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, query, limit, offset)

	if err != nil {
		r.logger.Error("Failed to get all orders", "error", err, "limit", limit, "offset", offset)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return orders, nil
}

// GetItems retrieves the item snapshot rows for an order
func (r *OrderRepository) GetItems(ctx context.Context, orderID string) ([]*models.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, quantity, price, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC
	`

	var items []*models.OrderItem
	err := r.db.DB.SelectContext(ctx, &items, query, orderID)

	if err != nil {
		r.logger.Error("Failed to get order items", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return items, nil
}

// GetShippingInfo retrieves the shipping address for an order
func (r *OrderRepository) GetShippingInfo(ctx context.Context, orderID string) (*models.ShippingInfo, error) {
	query := `
		SELECT id, order_id, address, city, province, postal_code,
		       recipient_name, phone_number, created_at
		FROM shipping_info
		WHERE order_id = $1
	`

	var info models.ShippingInfo
	err := r.db.DB.GetContext(ctx, &info, query, orderID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get shipping info", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &info, nil
}

// GetStatusHistory retrieves the transition log for an order, newest first
func (r *OrderRepository) GetStatusHistory(ctx context.Context, orderID string) ([]*models.OrderStatusHistory, error) {
	query := `
		SELECT id, order_id, from_status, to_status, note, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at DESC
	`

	var history []*models.OrderStatusHistory
	err := r.db.DB.SelectContext(ctx, &history, query, orderID)

	if err != nil {
		r.logger.Error("Failed to get order status history", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return history, nil
}

// CreateFromCart persists a new order graph in one transaction: the order
// row, its shipping info, item snapshots priced from the current product
// rows, the stock decrements, the cart cleanup, the promo redemption and
// the order_created outbox event. Either everything commits or nothing
// does.
//
// Stock is consumed with a conditional decrement so two concurrent
// checkouts on the same low-stock product cannot both succeed.
func (r *OrderRepository) CreateFromCart(
	ctx context.Context,
	order *models.Order,
	shipping *models.ShippingInfo,
	cartID string,
	cartItems []*models.CartItem,
	promo *models.PromoCode,
) ([]*models.OrderItem, error) {
	tx, err := r.db.DB.BeginTxx(ctx, nil)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	items := make([]*models.OrderItem, 0, len(cartItems))
	var itemsTotal int64

	for _, ci := range cartItems {
		// Conditional decrement; zero affected rows means the loser of a
		// concurrent checkout or an unavailable product.
		var price int64
		err := tx.QueryRowContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = NOW()
			WHERE id = $2 AND stock >= $1 AND is_available
			RETURNING price
		`, ci.Quantity, ci.ProductID).Scan(&price)

		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.classifyStockFailure(ctx, tx, ci.ProductID)
		}
		if err != nil {
			r.logger.Error("Failed to decrement stock", "error", err, "productID", ci.ProductID)
			return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		item := &models.OrderItem{
			ID:        models.GenerateID("itm"),
			OrderID:   order.ID,
			ProductID: ci.ProductID,
			Quantity:  ci.Quantity,
			Price:     price,
			CreatedAt: models.GetCurrentTime(),
		}
		items = append(items, item)
		itemsTotal += item.TotalPrice()
	}

	discount := int64(0)
	if promo != nil {
		discount = promo.Discount(itemsTotal)
		if discount > itemsTotal {
			discount = itemsTotal
		}
	}

	order.DiscountAmount = discount
	order.TotalAmount = itemsTotal - discount + order.ShippingCost
	if promo != nil {
		order.PromoCodeID = &promo.ID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, status, currency, total_amount, phone_number, notes,
			tracking_code, shipping_method, shipping_cost, discount_amount,
			promo_code_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		order.ID, order.UserID, order.Status, order.Currency, order.TotalAmount,
		order.PhoneNumber, order.Notes, order.TrackingCode, order.ShippingMethod,
		order.ShippingCost, order.DiscountAmount, order.PromoCodeID,
		order.CreatedAt, order.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create order", "error", err, "orderID", order.ID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	shipping.ID = models.GenerateID("shp")
	shipping.OrderID = order.ID
	shipping.CreatedAt = models.GetCurrentTime()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO shipping_info (
			id, order_id, address, city, province, postal_code,
			recipient_name, phone_number, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		shipping.ID, shipping.OrderID, shipping.Address, shipping.City,
		shipping.Province, shipping.PostalCode, shipping.RecipientName,
		shipping.PhoneNumber, shipping.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create shipping info", "error", err, "orderID", order.ID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.ID, item.OrderID, item.ProductID, item.Quantity, item.Price, item.CreatedAt)

		if err != nil {
			r.logger.Error("Failed to create order item", "error", err, "orderID", order.ID)
			return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		r.logger.Error("Failed to clear cart", "error", err, "cartID", cartID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE carts SET promo_code_id = NULL, discount_amount = 0, updated_at = NOW()
		WHERE id = $1
	`, cartID); err != nil {
		r.logger.Error("Failed to reset cart promo", "error", err, "cartID", cartID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if promo != nil {
		result, err := tx.ExecContext(ctx, `
			UPDATE promo_codes
			SET used_count = used_count + 1
			WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)
		`, promo.ID)

		if err != nil {
			r.logger.Error("Failed to redeem promo code", "error", err, "promoID", promo.ID)
			return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		affected, err := result.RowsAffected()

		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		if affected == 0 {
			// Lost the race for the last redemption.
			return nil, models.ErrUsageLimitExceeded
		}
	}

	event, err := models.NewOrderCreatedEvent(order)

	if err != nil {
		return nil, fmt.Errorf("failed to build order created event: %w", err)
	}

	if err := insertOutboxMessageTx(tx, event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit order creation", "error", err, "orderID", order.ID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return items, nil
}

// classifyStockFailure decides which domain error a failed conditional
// decrement maps to.
func (r *OrderRepository) classifyStockFailure(ctx context.Context, tx *sqlx.Tx, productID string) error {
	var available bool
	err := tx.QueryRowContext(ctx, `SELECT is_available FROM products WHERE id = $1`, productID).Scan(&available)

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if !available {
		return models.ErrProductUnavailable
	}
	return models.ErrInsufficientStock
}

// Transition atomically updates the order status (and tracking code) and
// appends the status history row, guarded on the expected current status
// so a concurrent transition cannot be overwritten. The matching
// order_status_changed outbox event is written in the same transaction.
func (r *OrderRepository) Transition(ctx context.Context, order *models.Order, from, to models.OrderStatus, note string) error {
	tx, err := r.db.DB.BeginTxx(ctx, nil)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	now := models.GetCurrentTime()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, tracking_code = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`, to, order.TrackingCode, now, order.ID, from)

	if err != nil {
		r.logger.Error("Failed to update order status", "error", err, "orderID", order.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	affected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if affected == 0 {
		// Status moved underneath us; the validated transition is stale.
		return fmt.Errorf("%w: order %s is no longer in %s", models.ErrInvalidTransition, order.ID, from)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, from_status, to_status, note, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, order.ID, from, to, note, now)

	if err != nil {
		r.logger.Error("Failed to append status history", "error", err, "orderID", order.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	order.Status = to
	order.UpdatedAt = now

	event, err := models.NewOrderStatusChangedEvent(order, from, to)

	if err != nil {
		return fmt.Errorf("failed to build status changed event: %w", err)
	}

	if err := insertOutboxMessageTx(tx, event); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit status transition", "error", err, "orderID", order.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// Count counts the total number of orders
func (r *OrderRepository) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM orders`

	err := r.db.DB.GetContext(ctx, &count, query)

	if err != nil {
		r.logger.Error("Failed to count orders", "error", err)
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return count, nil
}

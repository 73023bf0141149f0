package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hkhalili/shopflow/internal/database"
	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/logger"
)

// CartRepository handles database operations for carts and cart items
type CartRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewCartRepository creates a new CartRepository
func NewCartRepository(db *database.Database, logger logger.Logger) *CartRepository {
	return &CartRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a cart by its ID
func (r *CartRepository) GetByID(ctx context.Context, id string) (*models.Cart, error) {
	query := `
		SELECT id, user_id, session_id, promo_code_id, discount_amount, created_at, updated_at
		FROM carts
		WHERE id = $1
	`

	var cart models.Cart
	err := r.db.DB.GetContext(ctx, &cart, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get cart by ID", "error", err, "cartID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &cart, nil
}

// GetOrCreateByUserID returns the user's cart, creating it if none exists.
// The partial unique index on user_id makes the insert race safe; on a
// conflict the existing row is fetched.
func (r *CartRepository) GetOrCreateByUserID(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := r.getByUserID(ctx, userID)

	if err == nil {
		return cart, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	fresh := models.NewCart(&userID, nil)

	query := `
		INSERT INTO carts (id, user_id, session_id, promo_code_id, discount_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) WHERE user_id IS NOT NULL DO NOTHING
	`

	result, err := r.db.DB.ExecContext(
		ctx,
		query,
		fresh.ID,
		fresh.UserID,
		fresh.SessionID,
		fresh.PromoCodeID,
		fresh.DiscountAmount,
		fresh.CreatedAt,
		fresh.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create cart", "error", err, "userID", userID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	affected, err := result.RowsAffected()

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if affected == 0 {
		return r.getByUserID(ctx, userID)
	}

	return fresh, nil
}

func (r *CartRepository) getByUserID(ctx context.Context, userID string) (*models.Cart, error) {
	query := `
		SELECT id, user_id, session_id, promo_code_id, discount_amount, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`

	var cart models.Cart
	err := r.db.DB.GetContext(ctx, &cart, query, userID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get cart by user ID", "error", err, "userID", userID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &cart, nil
}

// GetItems retrieves the product lines of a cart
func (r *CartRepository) GetItems(ctx context.Context, cartID string) ([]*models.CartItem, error) {
	query := `
		SELECT id, cart_id, product_id, quantity, created_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at ASC
	`

	var items []*models.CartItem
	err := r.db.DB.SelectContext(ctx, &items, query, cartID)

	if err != nil {
		r.logger.Error("Failed to get cart items", "error", err, "cartID", cartID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return items, nil
}

// UpsertItem adds a product line or bumps its quantity when the product
// is already in the cart.
func (r *CartRepository) UpsertItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`

	_, err := r.db.DB.ExecContext(
		ctx,
		query,
		item.ID,
		item.CartID,
		item.ProductID,
		item.Quantity,
		item.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to upsert cart item", "error", err, "cartID", item.CartID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return r.touch(ctx, item.CartID)
}

// UpdateQuantity sets the quantity of a product line
func (r *CartRepository) UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) error {
	query := `
		UPDATE cart_items
		SET quantity = $1
		WHERE cart_id = $2 AND product_id = $3
	`

	result, err := r.db.DB.ExecContext(ctx, query, quantity, cartID, productID)

	if err != nil {
		r.logger.Error("Failed to update cart item quantity", "error", err, "cartID", cartID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	affected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return r.touch(ctx, cartID)
}

// RemoveItem deletes a product line from the cart
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, productID string) error {
	query := `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	result, err := r.db.DB.ExecContext(ctx, query, cartID, productID)

	if err != nil {
		r.logger.Error("Failed to remove cart item", "error", err, "cartID", cartID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	affected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return r.touch(ctx, cartID)
}

// Clear removes all lines and resets the promo selection
func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	tx, err := r.db.DB.BeginTxx(ctx, nil)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		r.logger.Error("Failed to clear cart items", "error", err, "cartID", cartID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE carts
		SET promo_code_id = NULL, discount_amount = 0, updated_at = NOW()
		WHERE id = $1
	`, cartID)

	if err != nil {
		r.logger.Error("Failed to reset cart", "error", err, "cartID", cartID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// ApplyPromo records a validated promo code and its discount on the cart
func (r *CartRepository) ApplyPromo(ctx context.Context, cartID string, promoCodeID *string, discount int64) error {
	query := `
		UPDATE carts
		SET promo_code_id = $1, discount_amount = $2, updated_at = NOW()
		WHERE id = $3
	`

	_, err := r.db.DB.ExecContext(ctx, query, promoCodeID, discount, cartID)

	if err != nil {
		r.logger.Error("Failed to apply promo to cart", "error", err, "cartID", cartID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

func (r *CartRepository) touch(ctx context.Context, cartID string) error {
	_, err := r.db.DB.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

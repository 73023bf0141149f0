package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hkhalili/shopflow/internal/database"
	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/logger"
)

// PromoRepository handles database operations for promo codes
type PromoRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewPromoRepository creates a new PromoRepository
func NewPromoRepository(db *database.Database, logger logger.Logger) *PromoRepository {
	return &PromoRepository{
		db:     db,
		logger: logger,
	}
}

// GetActiveByCode finds an active promo code whose validity window
// contains the given instant. Inactive, expired or unknown codes all
// come back as ErrNotFound; the promo engine maps that to an invalid
// promo error.
func (r *PromoRepository) GetActiveByCode(ctx context.Context, code string, at time.Time) (*models.PromoCode, error) {
	query := `
		SELECT id, code, discount_type, discount_value, min_purchase, max_discount,
		       valid_from, valid_to, is_active, max_uses, used_count, created_at
		FROM promo_codes
		WHERE code = $1 AND is_active AND valid_from <= $2 AND valid_to >= $2
	`

	var promo models.PromoCode
	err := r.db.DB.GetContext(ctx, &promo, query, code, at)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get promo code", "error", err, "code", code)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &promo, nil
}

// GetByID retrieves a promo code by ID
func (r *PromoRepository) GetByID(ctx context.Context, id string) (*models.PromoCode, error) {
	query := `
		SELECT id, code, discount_type, discount_value, min_purchase, max_discount,
		       valid_from, valid_to, is_active, max_uses, used_count, created_at
		FROM promo_codes
		WHERE id = $1
	`

	var promo models.PromoCode
	err := r.db.DB.GetContext(ctx, &promo, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get promo code by ID", "error", err, "promoID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &promo, nil
}

// Create inserts a new promo code
func (r *PromoRepository) Create(ctx context.Context, promo *models.PromoCode) error {
	query := `
		INSERT INTO promo_codes (
			id, code, discount_type, discount_value, min_purchase, max_discount,
			valid_from, valid_to, is_active, max_uses, used_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.DB.ExecContext(
		ctx,
		query,
		promo.ID,
		promo.Code,
		promo.DiscountType,
		promo.DiscountValue,
		promo.MinPurchase,
		promo.MaxDiscount,
		promo.ValidFrom,
		promo.ValidTo,
		promo.IsActive,
		promo.MaxUses,
		promo.UsedCount,
		promo.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create promo code", "error", err, "code", promo.Code)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

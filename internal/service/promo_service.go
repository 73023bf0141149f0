package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/internal/repository"
	"github.com/hkhalili/shopflow/pkg/logger"
)

// PromoStore is the slice of promo persistence the promo engine needs
type PromoStore interface {
	GetActiveByCode(ctx context.Context, code string, at time.Time) (*models.PromoCode, error)
	GetByID(ctx context.Context, id string) (*models.PromoCode, error)
}

// PromoService validates promo codes and computes discounts
type PromoService struct {
	promos PromoStore
	logger logger.Logger
	now    func() time.Time
}

// NewPromoService creates a new PromoService
func NewPromoService(promos PromoStore, logger logger.Logger) *PromoService {
	return &PromoService{
		promos: promos,
		logger: logger,
		now:    models.GetCurrentTime,
	}
}

// ApplyPromoCode validates the code against its activity flag, validity
// window, usage cap and minimum purchase, then computes the discount for
// the given total. Unknown, inactive and out-of-window codes all map to
// ErrInvalidPromo so the caller cannot distinguish them.
func (s *PromoService) ApplyPromoCode(ctx context.Context, total int64, code string) (*models.PromoCode, int64, error) {
	promo, err := s.promos.GetActiveByCode(ctx, code, s.now())

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, models.ErrInvalidPromo
		}
		return nil, 0, fmt.Errorf("failed to look up promo code: %w", err)
	}

	if !promo.HasUsesLeft() {
		return nil, 0, models.ErrUsageLimitExceeded
	}

	if total < promo.MinPurchase {
		return nil, 0, fmt.Errorf("%w: minimum is %d", models.ErrMinimumPurchase, promo.MinPurchase)
	}

	discount := promo.Discount(total)

	s.logger.Debug("Promo code applied", "code", promo.Code, "total", total, "discount", discount)

	return promo, discount, nil
}

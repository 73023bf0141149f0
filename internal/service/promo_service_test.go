package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/internal/repository"
	"github.com/hkhalili/shopflow/pkg/logger"
)

type fakePromoStore struct {
	promos map[string]*models.PromoCode
}

func (f *fakePromoStore) GetActiveByCode(ctx context.Context, code string, at time.Time) (*models.PromoCode, error) {
	promo, ok := f.promos[code]

	if !ok || !promo.IsActive || at.Before(promo.ValidFrom) || at.After(promo.ValidTo) {
		return nil, repository.ErrNotFound
	}
	return promo, nil
}

func (f *fakePromoStore) GetByID(ctx context.Context, id string) (*models.PromoCode, error) {
	for _, promo := range f.promos {
		if promo.ID == id {
			return promo, nil
		}
	}
	return nil, repository.ErrNotFound
}

func newTestPromoService(promos ...*models.PromoCode) (*PromoService, *fakePromoStore) {
	store := &fakePromoStore{promos: make(map[string]*models.PromoCode)}
	for _, p := range promos {
		store.promos[p.Code] = p
	}

	svc := NewPromoService(store, logger.NopLogger{})
	return svc, store
}

func activePromo(code string) *models.PromoCode {
	now := time.Now()

	return &models.PromoCode{
		ID:            "promo-" + code,
		Code:          code,
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: 10,
		ValidFrom:     now.Add(-time.Hour),
		ValidTo:       now.Add(time.Hour),
		IsActive:      true,
	}
}

func TestApplyPromoCode_Success(t *testing.T) {
	svc, _ := newTestPromoService(activePromo("WELCOME10"))

	promo, discount, err := svc.ApplyPromoCode(context.Background(), 500_000, "WELCOME10")

	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", promo.Code)
	assert.Equal(t, int64(50_000), discount)
}

func TestApplyPromoCode_UnknownCode(t *testing.T) {
	svc, _ := newTestPromoService()

	_, _, err := svc.ApplyPromoCode(context.Background(), 500_000, "NOPE")

	assert.ErrorIs(t, err, models.ErrInvalidPromo)
}

func TestApplyPromoCode_OutsideValidityWindow(t *testing.T) {
	expired := activePromo("EXPIRED")
	expired.ValidTo = time.Now().Add(-time.Minute)

	svc, _ := newTestPromoService(expired)

	_, _, err := svc.ApplyPromoCode(context.Background(), 500_000, "EXPIRED")

	// expired codes are indistinguishable from unknown ones
	assert.ErrorIs(t, err, models.ErrInvalidPromo)
}

func TestApplyPromoCode_Inactive(t *testing.T) {
	disabled := activePromo("DISABLED")
	disabled.IsActive = false

	svc, _ := newTestPromoService(disabled)

	_, _, err := svc.ApplyPromoCode(context.Background(), 500_000, "DISABLED")

	assert.ErrorIs(t, err, models.ErrInvalidPromo)
}

func TestApplyPromoCode_UsageCapExhausted(t *testing.T) {
	capped := activePromo("CAPPED")
	maxUses := 3
	capped.MaxUses = &maxUses
	capped.UsedCount = 3

	svc, _ := newTestPromoService(capped)

	_, _, err := svc.ApplyPromoCode(context.Background(), 500_000, "CAPPED")

	assert.ErrorIs(t, err, models.ErrUsageLimitExceeded)
}

func TestApplyPromoCode_BelowMinimumPurchase(t *testing.T) {
	promo := activePromo("BIGSPEND")
	promo.MinPurchase = 1_000_000

	svc, _ := newTestPromoService(promo)

	_, _, err := svc.ApplyPromoCode(context.Background(), 500_000, "BIGSPEND")

	assert.ErrorIs(t, err, models.ErrMinimumPurchase)
}

func TestApplyPromoCode_MaxDiscountCap(t *testing.T) {
	promo := activePromo("HALF")
	promo.DiscountValue = 50
	maxDiscount := int64(100_000)
	promo.MaxDiscount = &maxDiscount

	svc, _ := newTestPromoService(promo)

	_, discount, err := svc.ApplyPromoCode(context.Background(), 500_000, "HALF")

	require.NoError(t, err)
	assert.Equal(t, int64(100_000), discount)
}

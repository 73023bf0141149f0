package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromoDiscount_Fixed(t *testing.T) {
	promo := &PromoCode{
		DiscountType:  DiscountTypeFixed,
		DiscountValue: 30_000,
	}

	assert.Equal(t, int64(30_000), promo.Discount(200_000))
	// fixed discounts are taken verbatim even above the total; the cart
	// layer clamps the payable amount at zero
	assert.Equal(t, int64(30_000), promo.Discount(10_000))
}

func TestPromoDiscount_Percentage(t *testing.T) {
	promo := &PromoCode{
		DiscountType:  DiscountTypePercentage,
		DiscountValue: 10,
	}

	assert.Equal(t, int64(50_000), promo.Discount(500_000))
	assert.Equal(t, int64(0), promo.Discount(0))
}

func TestPromoDiscount_PercentageCappedAtMaxDiscount(t *testing.T) {
	maxDiscount := int64(100_000)
	promo := &PromoCode{
		DiscountType:  DiscountTypePercentage,
		DiscountValue: 50,
		MaxDiscount:   &maxDiscount,
	}

	// 50% of 500,000 is 250,000 but the cap wins
	assert.Equal(t, int64(100_000), promo.Discount(500_000))
	// below the cap the percentage applies untouched
	assert.Equal(t, int64(50_000), promo.Discount(100_000))
}

func TestPromoHasUsesLeft(t *testing.T) {
	promo := &PromoCode{UsedCount: 99}
	assert.True(t, promo.HasUsesLeft(), "nil MaxUses means unlimited")

	maxUses := 100
	promo.MaxUses = &maxUses
	assert.True(t, promo.HasUsesLeft())

	promo.UsedCount = 100
	assert.False(t, promo.HasUsesLeft())
}

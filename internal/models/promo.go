package models

import (
	"time"
)

// DiscountType selects how a promo code computes its discount
type DiscountType string

const (
	DiscountTypeFixed      DiscountType = "fixed"
	DiscountTypePercentage DiscountType = "percentage"
)

// PromoCode is a discount rule bound by a validity window, a usage cap
// and a minimum purchase amount.
type PromoCode struct {
	ID            string       `db:"id" json:"id"`
	Code          string       `db:"code" json:"code"`
	DiscountType  DiscountType `db:"discount_type" json:"discount_type"`
	DiscountValue int64        `db:"discount_value" json:"discount_value"`
	MinPurchase   int64        `db:"min_purchase" json:"min_purchase"`
	MaxDiscount   *int64       `db:"max_discount" json:"max_discount,omitempty"`
	ValidFrom     time.Time    `db:"valid_from" json:"valid_from"`
	ValidTo       time.Time    `db:"valid_to" json:"valid_to"`
	IsActive      bool         `db:"is_active" json:"is_active"`
	MaxUses       *int         `db:"max_uses" json:"max_uses,omitempty"`
	UsedCount     int          `db:"used_count" json:"used_count"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// Discount computes the discount amount for the given total. Percentage
// discounts are capped at MaxDiscount when set; fixed discounts are taken
// verbatim and callers clamp the resulting total at zero.
func (p *PromoCode) Discount(total int64) int64 {
	if p.DiscountType == DiscountTypePercentage {
		discount := total * p.DiscountValue / 100
		if p.MaxDiscount != nil && discount > *p.MaxDiscount {
			discount = *p.MaxDiscount
		}
		return discount
	}
	return p.DiscountValue
}

// HasUsesLeft reports whether the usage cap still allows another redemption
func (p *PromoCode) HasUsesLeft() bool {
	return p.MaxUses == nil || p.UsedCount < *p.MaxUses
}

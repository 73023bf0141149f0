package service

import (
	"fmt"

	"github.com/hkhalili/shopflow/internal/models"
)

// Shipping method identifiers
const (
	ShippingMethodStandardPost = "standard_post"
	ShippingMethodExpress      = "express"
)

// Shipping rule constants. Amounts are in the smallest currency unit.
const (
	FreeShippingThreshold = 1_000_000
	StandardCostTehran    = 50_000
	StandardCostOther     = 70_000
	ExpressCost           = 80_000
	TehranProvince        = "تهران"
)

// ShippingMethod describes one delivery option for a given location and
// cart total. OriginalCost is retained for display when the cost drops
// to zero above the free-shipping threshold.
type ShippingMethod struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	Description           string   `json:"description"`
	Cost                  int64    `json:"cost"`
	OriginalCost          int64    `json:"original_cost"`
	IsFree                bool     `json:"is_free"`
	EstimatedDaysMin      int      `json:"estimated_delivery_days_min,omitempty"`
	EstimatedDaysMax      int      `json:"estimated_delivery_days_max,omitempty"`
	EstimatedHoursMin     int      `json:"estimated_delivery_hours_min,omitempty"`
	EstimatedHoursMax     int      `json:"estimated_delivery_hours_max,omitempty"`
	IsAvailable           bool     `json:"is_available"`
	AvailableForProvinces []string `json:"available_for_provinces,omitempty"`
}

// ShippingCalculator derives delivery options and costs from the
// location and cart total. It is stateless; every method is a pure
// function of its arguments.
type ShippingCalculator struct{}

// NewShippingCalculator creates a new ShippingCalculator
func NewShippingCalculator() *ShippingCalculator {
	return &ShippingCalculator{}
}

// GetShippingMethods returns the delivery options available for the
// given province and cart total. Standard post is available everywhere;
// express delivery only inside Tehran province.
func (c *ShippingCalculator) GetShippingMethods(province, city string, cartTotal int64) []ShippingMethod {
	isTehran := province == TehranProvince
	isFreeShipping := cartTotal >= FreeShippingThreshold

	standardCost := int64(StandardCostOther)
	if isTehran {
		standardCost = StandardCostTehran
	}

	cost := standardCost
	if isFreeShipping {
		cost = 0
	}

	methods := []ShippingMethod{
		{
			ID:               ShippingMethodStandardPost,
			Name:             "پست معمولی",
			Description:      "ارسال از طریق پست",
			Cost:             cost,
			OriginalCost:     standardCost,
			IsFree:           isFreeShipping,
			EstimatedDaysMin: 3,
			EstimatedDaysMax: 7,
			IsAvailable:      true,
		},
	}

	if isTehran {
		methods = append(methods, ShippingMethod{
			ID:                    ShippingMethodExpress,
			Name:                  "پیک موتوری",
			Description:           "ارسال سریع با پیک",
			Cost:                  ExpressCost,
			OriginalCost:          ExpressCost,
			IsFree:                false,
			EstimatedHoursMin:     2,
			EstimatedHoursMax:     4,
			IsAvailable:           true,
			AvailableForProvinces: []string{TehranProvince},
		})
	}

	return methods
}

// CalculateShippingCost returns the cost of a specific method for the
// given province and cart total. It follows the same rule table as
// GetShippingMethods.
func (c *ShippingCalculator) CalculateShippingCost(methodID, province string, cartTotal int64) (int64, error) {
	isTehran := province == TehranProvince

	switch methodID {
	case ShippingMethodStandardPost:
		if cartTotal >= FreeShippingThreshold {
			return 0, nil
		}
		if isTehran {
			return StandardCostTehran, nil
		}
		return StandardCostOther, nil

	case ShippingMethodExpress:
		if !isTehran {
			return 0, fmt.Errorf("%w: express shipping is only available in Tehran province", models.ErrInvalidShippingMethod)
		}
		return ExpressCost, nil

	default:
		return 0, fmt.Errorf("%w: %s", models.ErrInvalidShippingMethod, methodID)
	}
}

// ValidateShippingMethod reports whether a method can serve the province
func (c *ShippingCalculator) ValidateShippingMethod(methodID, province string) error {
	switch methodID {
	case ShippingMethodStandardPost:
		return nil
	case ShippingMethodExpress:
		if province != TehranProvince {
			return fmt.Errorf("%w: express shipping is only available in Tehran province", models.ErrInvalidShippingMethod)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", models.ErrInvalidShippingMethod, methodID)
	}
}

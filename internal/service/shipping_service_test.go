package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkhalili/shopflow/internal/models"
)

func TestCalculateShippingCost(t *testing.T) {
	calc := NewShippingCalculator()

	tests := []struct {
		name      string
		methodID  string
		province  string
		cartTotal int64
		want      int64
		wantErr   error
	}{
		{
			name:      "standard in Tehran below threshold",
			methodID:  ShippingMethodStandardPost,
			province:  TehranProvince,
			cartTotal: 500_000,
			want:      50_000,
		},
		{
			name:      "standard outside Tehran below threshold",
			methodID:  ShippingMethodStandardPost,
			province:  "اصفهان",
			cartTotal: 500_000,
			want:      70_000,
		},
		{
			name:      "standard free at threshold",
			methodID:  ShippingMethodStandardPost,
			province:  "اصفهان",
			cartTotal: 1_000_000,
			want:      0,
		},
		{
			name:      "standard free above threshold in Tehran",
			methodID:  ShippingMethodStandardPost,
			province:  TehranProvince,
			cartTotal: 2_000_000,
			want:      0,
		},
		{
			name:      "express in Tehran never free",
			methodID:  ShippingMethodExpress,
			province:  TehranProvince,
			cartTotal: 5_000_000,
			want:      80_000,
		},
		{
			name:      "express outside Tehran rejected",
			methodID:  ShippingMethodExpress,
			province:  "شیراز",
			cartTotal: 500_000,
			wantErr:   models.ErrInvalidShippingMethod,
		},
		{
			name:      "unknown method rejected",
			methodID:  "drone",
			province:  TehranProvince,
			cartTotal: 500_000,
			wantErr:   models.ErrInvalidShippingMethod,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cost, err := calc.CalculateShippingCost(tc.methodID, tc.province, tc.cartTotal)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, cost)
		})
	}
}

func TestGetShippingMethods_Tehran(t *testing.T) {
	calc := NewShippingCalculator()

	methods := calc.GetShippingMethods(TehranProvince, "تهران", 500_000)
	require.Len(t, methods, 2)

	standard := methods[0]
	assert.Equal(t, ShippingMethodStandardPost, standard.ID)
	assert.Equal(t, int64(50_000), standard.Cost)
	assert.False(t, standard.IsFree)

	express := methods[1]
	assert.Equal(t, ShippingMethodExpress, express.ID)
	assert.Equal(t, int64(80_000), express.Cost)
	assert.Equal(t, []string{TehranProvince}, express.AvailableForProvinces)
}

func TestGetShippingMethods_OtherProvince(t *testing.T) {
	calc := NewShippingCalculator()

	methods := calc.GetShippingMethods("اصفهان", "اصفهان", 500_000)
	require.Len(t, methods, 1, "express must not be offered outside Tehran")
	assert.Equal(t, ShippingMethodStandardPost, methods[0].ID)
	assert.Equal(t, int64(70_000), methods[0].Cost)
}

func TestGetShippingMethods_FreeShippingKeepsOriginalCost(t *testing.T) {
	calc := NewShippingCalculator()

	methods := calc.GetShippingMethods(TehranProvince, "تهران", 1_500_000)
	require.Len(t, methods, 2)

	standard := methods[0]
	assert.True(t, standard.IsFree)
	assert.Equal(t, int64(0), standard.Cost)
	assert.Equal(t, int64(50_000), standard.OriginalCost)

	// the free shipping threshold never applies to express
	express := methods[1]
	assert.False(t, express.IsFree)
	assert.Equal(t, int64(80_000), express.Cost)
}

func TestValidateShippingMethod(t *testing.T) {
	calc := NewShippingCalculator()

	assert.NoError(t, calc.ValidateShippingMethod(ShippingMethodStandardPost, "مشهد"))
	assert.NoError(t, calc.ValidateShippingMethod(ShippingMethodExpress, TehranProvince))
	assert.ErrorIs(t, calc.ValidateShippingMethod(ShippingMethodExpress, "مشهد"), models.ErrInvalidShippingMethod)
	assert.ErrorIs(t, calc.ValidateShippingMethod("pigeon", TehranProvince), models.ErrInvalidShippingMethod)
}

package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcrawler/internal/models"
)

func fptr(v float64) *float64 { return &v }

func TestResolveDiscount(t *testing.T) {
	tests := []struct {
		name       string
		current    *float64
		original   *float64
		couponText string
		dealText   string
		expected   float64
		source     models.DiscountSource
		isNil      bool
	}{
		{
			name:       "Coupon percent wins over price comparison",
			current:    fptr(80),
			original:   fptr(100),
			couponText: "Save 15% with coupon",
			expected:   15,
			source:     models.DiscountSourceCoupon,
		},
		{
			name:       "Coupon percent with decimals",
			couponText: "Apply 12.5% coupon at checkout",
			expected:   12.5,
			source:     models.DiscountSourceCoupon,
		},
		{
			name:       "Flat coupon amount measured against current price",
			current:    fptr(40),
			couponText: "Save $10.00 with coupon",
			expected:   25,
			source:     models.DiscountSourceCoupon,
		},
		{
			name:       "Flat coupon ignored without a current price",
			couponText: "Save $10.00 with coupon",
			isNil:      true,
			source:     models.DiscountSourceNone,
		},
		{
			name:     "Price comparison",
			current:  fptr(80),
			original: fptr(100),
			expected: 20,
			source:   models.DiscountSourcePriceCompare,
		},
		{
			name:     "Price comparison attributed to deal when deal text matches",
			current:  fptr(75),
			original: fptr(100),
			dealText: "Limited time deal",
			expected: 25,
			source:   models.DiscountSourceLimitedDeal,
		},
		{
			name:     "Original below current yields no price discount",
			current:  fptr(100),
			original: fptr(80),
			isNil:    true,
			source:   models.DiscountSourceNone,
		},
		{
			name:     "Deal percent as last resort",
			dealText: "Deal: 30% off",
			expected: 30,
			source:   models.DiscountSourceLimitedDeal,
		},
		{
			name:       "Oversized coupon percent clamped to 100",
			couponText: "120% off",
			expected:   100,
			source:     models.DiscountSourceCoupon,
		},
		{
			name:   "No signals at all",
			isNil:  true,
			source: models.DiscountSourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pct, source := ResolveDiscount(tt.current, tt.original, tt.couponText, tt.dealText)
			assert.Equal(t, tt.source, source)
			if tt.isNil {
				assert.Nil(t, pct)
				return
			}
			require.NotNil(t, pct)
			assert.InDelta(t, tt.expected, *pct, 0.001)
		})
	}
}

func TestResolveDiscountRounding(t *testing.T) {
	// 5 off 24.99 is 20.008...%, reported to two decimals.
	pct, source := ResolveDiscount(fptr(19.99), fptr(24.99), "", "")
	require.NotNil(t, pct)
	assert.Equal(t, 20.01, *pct)
	assert.Equal(t, models.DiscountSourcePriceCompare, source)
}

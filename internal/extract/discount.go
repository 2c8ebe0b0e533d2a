package extract

import (
	"math"
	"regexp"
	"strconv"

	"shopcrawler/internal/models"
)

var (
	percentToken  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	monetaryToken = regexp.MustCompile(`[$£€]\s*(\d+(?:\.\d{2})?)`)
	dealKeywords  = regexp.MustCompile(`(?i)limited[\s-]?time|deal|lightning`)
)

// ResolveDiscount combines the four discount signals into one percentage
// and a provenance tag. Rules fire in strict priority order; the first
// satisfied rule wins:
//
//  1. coupon text with a percent token
//  2. coupon text with a flat amount, measured against the current price
//  3. original-vs-current price comparison
//  4. limited-deal text with a percent token
//
// Rule 2 divides the flat amount by the current (already discounted)
// price; that is the established approximation, left as is.
func ResolveDiscount(current, original *float64, couponText, dealText string) (*float64, models.DiscountSource) {
	if pct := findPercent(couponText); pct != nil {
		return clampPercent(*pct), models.DiscountSourceCoupon
	}

	if amount := findAmount(couponText); amount != nil && current != nil && *current > 0 {
		pct := round2(100 * *amount / *current)
		return clampPercent(pct), models.DiscountSourceCoupon
	}

	if current != nil && original != nil && *original > 0 && *original > *current {
		pct := round2(100 * (*original - *current) / *original)
		source := models.DiscountSourcePriceCompare
		if dealKeywords.MatchString(dealText) {
			source = models.DiscountSourceLimitedDeal
		}
		return clampPercent(pct), source
	}

	if pct := findPercent(dealText); pct != nil {
		return clampPercent(*pct), models.DiscountSourceLimitedDeal
	}

	return nil, models.DiscountSourceNone
}

func findPercent(text string) *float64 {
	return parseToken(percentToken.FindStringSubmatch(text))
}

func findAmount(text string) *float64 {
	return parseToken(monetaryToken.FindStringSubmatch(text))
}

func parseToken(m []string) *float64 {
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

func clampPercent(pct float64) *float64 {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return &pct
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

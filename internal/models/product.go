package models

// DiscountSource identifies which signal produced a computed discount.
type DiscountSource string

const (
	DiscountSourceCoupon       DiscountSource = "coupon"
	DiscountSourceLimitedDeal  DiscountSource = "limited_deal"
	DiscountSourcePriceCompare DiscountSource = "price_compare"
	DiscountSourceNone         DiscountSource = "none"
)

// SearchCard is one result container from a listing page. Fields the page
// may omit are pointers; nil means the element was not present.
type SearchCard struct {
	Title             *string `json:"title"`
	PriceText         *string `json:"price_text"`
	HasCoupon         bool    `json:"has_coupon"`
	IsLimitedTimeDeal bool    `json:"is_limited_time_deal"`
	ProductURL        *string `json:"product_url"`
}

// SpecEntry is one row of a product specification table. Entries keep
// document order; labels are unique within one record.
type SpecEntry struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ProductRecord is the full extraction result for one detail page.
// Records are built once and never mutated afterwards.
type ProductRecord struct {
	Name             *string        `json:"name"`
	SellerName       *string        `json:"seller_name"`
	Description      *string        `json:"description"`
	IsInStock        *bool          `json:"is_in_stock"`
	ReturnPolicy     *string        `json:"return_policy"`
	ImagesDescriptor *string        `json:"images_descriptor"`
	Details          []SpecEntry    `json:"details"`
	HasRelatedDeals  bool           `json:"has_related_deals"`
	PriceCurrent     *float64       `json:"price_current"`
	PriceOriginal    *float64       `json:"price_original"`
	CouponText       *string        `json:"coupon_text"`
	LimitedDealText  *string        `json:"limited_deal_text"`
	DiscountPercent  *float64       `json:"discount_percent"`
	DiscountSource   DiscountSource `json:"discount_source"`
}

// Detail looks up a specification value by label.
func (r *ProductRecord) Detail(label string) (string, bool) {
	for _, e := range r.Details {
		if e.Label == label {
			return e.Value, true
		}
	}
	return "", false
}

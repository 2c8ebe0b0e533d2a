package selectors

import (
	"fmt"
	"regexp"
)

// Listing holds the selectors used to break a search/listing page into
// result cards. All selectors may be comma-separated alternatives.
type Listing struct {
	Container        string `json:"container"`
	Title            string `json:"title"`
	Price            string `json:"price"`
	CouponBadge      string `json:"coupon_badge"`
	LimitedDealBadge string `json:"limited_deal_badge"`
	ProductLink      string `json:"product_link"`
}

// Product holds the selectors for a detail page. DetailLabel and
// DetailValue are applied per row matched by DetailRows.
type Product struct {
	Title            string `json:"title"`
	Images           string `json:"images"`
	SellerName       string `json:"seller_name"`
	Description      string `json:"description"`
	Availability     string `json:"availability"`
	ReturnPolicy     string `json:"return_policy"`
	DetailRows       string `json:"detail_rows"`
	DetailLabel      string `json:"detail_label"`
	DetailValue      string `json:"detail_value"`
	RelatedDeals     string `json:"related_deals"`
	PriceCurrent     string `json:"price_current"`
	PriceOriginal    string `json:"price_original"`
	CouponBadge      string `json:"coupon_badge"`
	LimitedDealBadge string `json:"limited_deal_badge"`

	// StockPositivePattern is a case-insensitive regexp; availability text
	// matching it means the product is in stock.
	StockPositivePattern string `json:"stock_positive_pattern"`
}

// Set is the full selector configuration for one site layout. It is loaded
// once, validated, and read-only afterwards; callers targeting a different
// layout substitute a whole Set rather than patching individual fields.
type Set struct {
	Listing Listing `json:"listing"`
	Product Product `json:"product"`
}

// Default returns the selector table for the default target site.
func Default() Set {
	return Set{
		Listing: Listing{
			Container:        ".a-section.a-spacing-base.desktop-grid-content-view",
			Title:            "h2.a-size-base-plus.a-spacing-none.a-color-base.a-text-normal",
			Price:            `[data-a-size="xl"]`,
			CouponBadge:      ".a-size-base.s-highlighted-text-padding.s-coupon-highlight-color.aok-inline-block",
			LimitedDealBadge: `span[data-a-badge-color="sx-red-mvt"]`,
			ProductLink:      "a.a-link-normal.s-no-outline",
		},
		Product: Product{
			Title:        "#productTitle, h1#title",
			Images:       "#canvasCaption",
			SellerName:   "#sellerProfileTriggerId",
			Description:  "#feature-bullets",
			Availability: "#availability",
			ReturnPolicy: "#returnsInfoFeature_feature_div > div.offer-display-feature-text.a-size-small > span > a > span",
			DetailRows: "#productDetails_techSpec_section_1 tr, " +
				"#productDetails_detailBullets_sections1 tr, " +
				"#productDetails_techSpec_section_2 tr, " +
				"table.prodDetTable tr",
			DetailLabel:          "th, td.prodDetSectionEntry",
			DetailValue:          "td, td.prodDetAttrValue",
			RelatedDeals:         "#sp_detail_thematic-hercules_hybrid_deals_T1",
			PriceCurrent:         "#corePrice_feature_div .a-price .a-offscreen, #apex_desktop .a-price .a-offscreen",
			PriceOriginal:        ".basisPrice .a-price.a-text-price .a-offscreen, span.a-price.a-text-price[data-a-strike] .a-offscreen",
			CouponBadge:          ".promoPriceBlockMessage, #couponBadgeRegularVpc, label[id^=couponText]",
			LimitedDealBadge:     "#dealBadgeSupportingText, .dealBadgeTextColor",
			StockPositivePattern: "in stock|available|ships soon",
		},
	}
}

// Validate fails fast on a structurally incomplete selector set so a bad
// table is caught at startup, not mid-crawl.
func (s Set) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"listing.container", s.Listing.Container},
		{"listing.title", s.Listing.Title},
		{"listing.price", s.Listing.Price},
		{"listing.coupon_badge", s.Listing.CouponBadge},
		{"listing.limited_deal_badge", s.Listing.LimitedDealBadge},
		{"listing.product_link", s.Listing.ProductLink},
		{"product.title", s.Product.Title},
		{"product.images", s.Product.Images},
		{"product.seller_name", s.Product.SellerName},
		{"product.description", s.Product.Description},
		{"product.availability", s.Product.Availability},
		{"product.return_policy", s.Product.ReturnPolicy},
		{"product.detail_rows", s.Product.DetailRows},
		{"product.detail_label", s.Product.DetailLabel},
		{"product.detail_value", s.Product.DetailValue},
		{"product.related_deals", s.Product.RelatedDeals},
		{"product.price_current", s.Product.PriceCurrent},
		{"product.price_original", s.Product.PriceOriginal},
		{"product.coupon_badge", s.Product.CouponBadge},
		{"product.limited_deal_badge", s.Product.LimitedDealBadge},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("selector %s is required", r.name)
		}
	}

	if s.Product.StockPositivePattern == "" {
		return fmt.Errorf("selector product.stock_positive_pattern is required")
	}
	if _, err := regexp.Compile("(?i)" + s.Product.StockPositivePattern); err != nil {
		return fmt.Errorf("invalid stock_positive_pattern: %w", err)
	}

	return nil
}

package extract

import (
	"fmt"
	"regexp"

	"shopcrawler/internal/dom"
	"shopcrawler/internal/models"
	"shopcrawler/internal/selectors"
)

// ProductExtractor turns a detail page into a ProductRecord. Every field
// is read independently; a missing element degrades that one field to its
// zero/nil value instead of failing the extraction.
type ProductExtractor struct {
	sel     selectors.Product
	stockRe *regexp.Regexp
}

func NewProductExtractor(sel selectors.Product) (*ProductExtractor, error) {
	stockRe, err := regexp.Compile("(?i)" + sel.StockPositivePattern)
	if err != nil {
		return nil, fmt.Errorf("compile stock pattern: %w", err)
	}
	return &ProductExtractor{sel: sel, stockRe: stockRe}, nil
}

// Extract parses html and assembles the record, including normalized
// prices and the resolved discount.
func (pe *ProductExtractor) Extract(html string) (*models.ProductRecord, error) {
	root, err := dom.Parse(html)
	if err != nil {
		return nil, err
	}

	rec := &models.ProductRecord{
		Name:             root.Text(pe.sel.Title),
		SellerName:       root.Text(pe.sel.SellerName),
		Description:      root.Text(pe.sel.Description),
		IsInStock:        pe.stockStatus(root),
		ReturnPolicy:     root.Text(pe.sel.ReturnPolicy),
		ImagesDescriptor: root.Text(pe.sel.Images),
		Details:          pe.detailsTable(root),
		HasRelatedDeals:  root.Exists(pe.sel.RelatedDeals),
		CouponText:       root.Text(pe.sel.CouponBadge),
		LimitedDealText:  root.Text(pe.sel.LimitedDealBadge),
	}

	if t := root.Text(pe.sel.PriceCurrent); t != nil {
		rec.PriceCurrent = NormalizePrice(*t)
	}
	if t := root.Text(pe.sel.PriceOriginal); t != nil {
		rec.PriceOriginal = NormalizePrice(*t)
	}

	rec.DiscountPercent, rec.DiscountSource = ResolveDiscount(
		rec.PriceCurrent,
		rec.PriceOriginal,
		deref(rec.CouponText),
		deref(rec.LimitedDealText),
	)

	return rec, nil
}

// stockStatus distinguishes "no availability element" (unknown, nil) from
// "availability text that does not look positive" (false).
func (pe *ProductExtractor) stockStatus(root *dom.Accessor) *bool {
	avail := root.Text(pe.sel.Availability)
	if avail == nil {
		return nil
	}
	inStock := pe.stockRe.MatchString(*avail)
	return &inStock
}

// detailsTable pairs the label and value sub-selectors per matched row.
// Rows missing either side are skipped; the first occurrence of a label
// wins and document order is preserved.
func (pe *ProductExtractor) detailsTable(root *dom.Accessor) []models.SpecEntry {
	seen := map[string]bool{}
	entries := []models.SpecEntry{}
	root.Each(pe.sel.DetailRows, func(row *dom.Accessor) {
		label := row.Text(pe.sel.DetailLabel)
		value := row.Text(pe.sel.DetailValue)
		if label == nil || value == nil || *label == "" || *value == "" {
			return
		}
		if seen[*label] {
			return
		}
		seen[*label] = true
		entries = append(entries, models.SpecEntry{Label: *label, Value: *value})
	})
	return entries
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

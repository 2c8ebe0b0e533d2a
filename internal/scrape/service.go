// Package scrape composes the fetch layer with the extraction pipeline
// into the two operations the rest of the system consumes: listing pages
// to cards, detail pages to product records.
package scrape

import (
	"context"
	"log/slog"

	"shopcrawler/internal/extract"
	"shopcrawler/internal/fetcher"
	"shopcrawler/internal/models"
	"shopcrawler/internal/selectors"
)

type Service struct {
	fetcher  *fetcher.Fetcher
	cards    *extract.CardExtractor
	products *extract.ProductExtractor
	logger   *slog.Logger
}

func NewService(f *fetcher.Fetcher, sel selectors.Set, baseOrigin string, logger *slog.Logger) (*Service, error) {
	cards, err := extract.NewCardExtractor(sel.Listing, baseOrigin)
	if err != nil {
		return nil, err
	}
	products, err := extract.NewProductExtractor(sel.Product)
	if err != nil {
		return nil, err
	}
	return &Service{
		fetcher:  f,
		cards:    cards,
		products: products,
		logger:   logger.With("component", "scrape"),
	}, nil
}

// Search fetches a listing page and extracts its result cards. Zero cards
// is a valid result; the caller decides whether to treat it as a soft
// block.
func (s *Service) Search(ctx context.Context, url string) ([]models.SearchCard, error) {
	html, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	cards, err := s.cards.Extract(html)
	if err != nil {
		return nil, err
	}
	s.logger.Info("listing parsed", "url", url, "cards", len(cards))
	return cards, nil
}

// Product fetches a detail page and extracts the full record.
func (s *Service) Product(ctx context.Context, url string) (*models.ProductRecord, error) {
	html, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	rec, err := s.products.Extract(html)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product parsed", "url", url, "has_price", rec.PriceCurrent != nil)
	return rec, nil
}

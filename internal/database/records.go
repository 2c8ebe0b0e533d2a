package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"shopcrawler/internal/models"
)

// RecordStore persists extracted cards and product records. Re-scraping a
// URL upserts in place so the latest observation wins.
type RecordStore struct {
	db *DB
}

func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// Migrate creates the result tables if they do not exist yet.
func (s *RecordStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS search_cards (
			id BIGSERIAL PRIMARY KEY,
			job_id TEXT NOT NULL,
			listing_url TEXT NOT NULL,
			title TEXT,
			price_text TEXT,
			has_coupon BOOLEAN NOT NULL DEFAULT FALSE,
			is_limited_time_deal BOOLEAN NOT NULL DEFAULT FALSE,
			product_url TEXT,
			scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			product_url TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			name TEXT,
			seller_name TEXT,
			description TEXT,
			is_in_stock BOOLEAN,
			return_policy TEXT,
			images_descriptor TEXT,
			details JSONB NOT NULL DEFAULT '[]',
			has_related_deals BOOLEAN NOT NULL DEFAULT FALSE,
			price_current DOUBLE PRECISION,
			price_original DOUBLE PRECISION,
			coupon_text TEXT,
			limited_deal_text TEXT,
			discount_percent DOUBLE PRECISION,
			discount_source TEXT NOT NULL DEFAULT 'none',
			scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_search_cards_job ON search_cards (job_id)`,
		`CREATE INDEX IF NOT EXISTS idx_products_job ON products (job_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate record store: %w", err)
		}
	}
	return nil
}

// SaveCards inserts one row per card from a single listing fetch. The
// whole listing goes in one transaction so a mid-batch failure leaves no
// partial page behind.
func (s *RecordStore) SaveCards(ctx context.Context, jobID, listingURL string, cards []models.SearchCard) error {
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, c := range cards {
			_, err := tx.Exec(ctx,
				`INSERT INTO search_cards
					(job_id, listing_url, title, price_text, has_coupon, is_limited_time_deal, product_url)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				jobID, listingURL, c.Title, c.PriceText, c.HasCoupon, c.IsLimitedTimeDeal, c.ProductURL,
			)
			if err != nil {
				return fmt.Errorf("insert search card: %w", err)
			}
		}
		return nil
	})
}

// SaveProduct upserts one product record keyed by its URL.
func (s *RecordStore) SaveProduct(ctx context.Context, jobID, productURL string, rec *models.ProductRecord) error {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = s.db.pool.Exec(ctx,
		`INSERT INTO products
			(product_url, job_id, name, seller_name, description, is_in_stock,
			 return_policy, images_descriptor, details, has_related_deals,
			 price_current, price_original, coupon_text, limited_deal_text,
			 discount_percent, discount_source, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (product_url) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			name = EXCLUDED.name,
			seller_name = EXCLUDED.seller_name,
			description = EXCLUDED.description,
			is_in_stock = EXCLUDED.is_in_stock,
			return_policy = EXCLUDED.return_policy,
			images_descriptor = EXCLUDED.images_descriptor,
			details = EXCLUDED.details,
			has_related_deals = EXCLUDED.has_related_deals,
			price_current = EXCLUDED.price_current,
			price_original = EXCLUDED.price_original,
			coupon_text = EXCLUDED.coupon_text,
			limited_deal_text = EXCLUDED.limited_deal_text,
			discount_percent = EXCLUDED.discount_percent,
			discount_source = EXCLUDED.discount_source,
			scraped_at = EXCLUDED.scraped_at`,
		productURL, jobID, rec.Name, rec.SellerName, rec.Description, rec.IsInStock,
		rec.ReturnPolicy, rec.ImagesDescriptor, details, rec.HasRelatedDeals,
		rec.PriceCurrent, rec.PriceOriginal, rec.CouponText, rec.LimitedDealText,
		rec.DiscountPercent, string(rec.DiscountSource), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// CountByJob returns how many cards and products a job produced.
func (s *RecordStore) CountByJob(ctx context.Context, jobID string) (cards int64, products int64, err error) {
	if err = s.db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM search_cards WHERE job_id = $1`, jobID).Scan(&cards); err != nil {
		return 0, 0, fmt.Errorf("count cards: %w", err)
	}
	if err = s.db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE job_id = $1`, jobID).Scan(&products); err != nil {
		return 0, 0, fmt.Errorf("count products: %w", err)
	}
	return cards, products, nil
}

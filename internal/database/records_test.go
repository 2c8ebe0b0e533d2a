package database

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcrawler/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("test database not configured, set TEST_DB_HOST to run")
	}

	db, err := New(context.Background(), Config{
		Host:     host,
		Port:     5432,
		User:     envOr("TEST_DB_USER", "postgres"),
		Password: os.Getenv("TEST_DB_PASSWORD"),
		Database: envOr("TEST_DB_NAME", "shopcrawler_test"),
	})
	require.NoError(t, err)
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func strp(s string) *string { return &s }

func TestSaveCardsCommitsWholeListing(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	store := NewRecordStore(db)
	require.NoError(t, store.Migrate(ctx))

	jobID := uuid.New().String()
	cards := []models.SearchCard{
		{Title: strp("Mouse"), PriceText: strp("$24.99"), ProductURL: strp("https://www.example.com/dp/B0A")},
		{Title: strp("Keyboard"), HasCoupon: true, ProductURL: strp("https://www.example.com/dp/B0B")},
		{Title: strp("Hub"), IsLimitedTimeDeal: true},
	}

	require.NoError(t, store.SaveCards(ctx, jobID, "https://www.example.com/s?k=x", cards))

	gotCards, _, err := store.CountByJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(cards)), gotCards, "all rows of one listing commit together")
}

func TestSaveProductUpsertsByURL(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	store := NewRecordStore(db)
	require.NoError(t, store.Migrate(ctx))

	jobID := uuid.New().String()
	productURL := "https://www.example.com/dp/" + uuid.New().String()

	first := &models.ProductRecord{Name: strp("v1"), DiscountSource: models.DiscountSourceNone}
	require.NoError(t, store.SaveProduct(ctx, jobID, productURL, first))

	second := &models.ProductRecord{Name: strp("v2"), DiscountSource: models.DiscountSourceNone}
	require.NoError(t, store.SaveProduct(ctx, jobID, productURL, second))

	_, products, err := store.CountByJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), products, "re-scraping a URL updates in place")
}

package selectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateMissingSelector(t *testing.T) {
	s := Default()
	s.Listing.Container = ""
	err := s.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "listing.container")
}

func TestValidateMissingStockPattern(t *testing.T) {
	s := Default()
	s.Product.StockPositivePattern = ""
	assert.Error(t, s.Validate())
}

func TestValidateBadStockPattern(t *testing.T) {
	s := Default()
	s.Product.StockPositivePattern = "in stock|("
	err := s.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stock_positive_pattern")
}

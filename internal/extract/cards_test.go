package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcrawler/internal/selectors"
)

const listingFixture = `
<html><body>
<div class="a-section a-spacing-base desktop-grid-content-view">
	<h2 class="a-size-base-plus a-spacing-none a-color-base a-text-normal">Wireless   Mouse,
		Ergonomic</h2>
	<span data-a-size="xl">$24.99</span>
	<span class="a-size-base s-highlighted-text-padding s-coupon-highlight-color aok-inline-block">Save 5%</span>
	<a class="a-link-normal s-no-outline" href="/dp/B0MOUSE01?ref=sr_1"></a>
</div>
<div class="a-section a-spacing-base desktop-grid-content-view">
	<h2 class="a-size-base-plus a-spacing-none a-color-base a-text-normal">Mechanical Keyboard</h2>
	<span data-a-size="xl">$89.00</span>
	<span data-a-badge-color="sx-red-mvt">Limited time deal</span>
	<a class="a-link-normal s-no-outline" href="/slredirect/picassoRedirect.html?url=%2Fdp%2FB0KEYBRD2%3Fref%3Dsr_2&qualifier=123"></a>
</div>
<div class="a-section a-spacing-base desktop-grid-content-view">
	<span data-a-size="xl">$5.00</span>
</div>
</body></html>`

func newTestCardExtractor(t *testing.T) *CardExtractor {
	t.Helper()
	ce, err := NewCardExtractor(selectors.Default().Listing, "https://www.example.com")
	require.NoError(t, err)
	return ce
}

func TestCardExtractor(t *testing.T) {
	ce := newTestCardExtractor(t)

	cards, err := ce.Extract(listingFixture)
	require.NoError(t, err)
	require.Len(t, cards, 3)

	organic := cards[0]
	require.NotNil(t, organic.Title)
	assert.Equal(t, "Wireless Mouse, Ergonomic", *organic.Title)
	require.NotNil(t, organic.PriceText)
	assert.Equal(t, "$24.99", *organic.PriceText)
	assert.True(t, organic.HasCoupon)
	assert.False(t, organic.IsLimitedTimeDeal)
	require.NotNil(t, organic.ProductURL)
	assert.Equal(t, "https://www.example.com/dp/B0MOUSE01?ref=sr_1", *organic.ProductURL)

	sponsored := cards[1]
	assert.True(t, sponsored.IsLimitedTimeDeal)
	assert.False(t, sponsored.HasCoupon)
	require.NotNil(t, sponsored.ProductURL)
	// Ad redirect unwrapped to the real destination.
	assert.Equal(t, "https://www.example.com/dp/B0KEYBRD2?ref=sr_2", *sponsored.ProductURL)

	bare := cards[2]
	assert.Nil(t, bare.Title)
	assert.Nil(t, bare.ProductURL)
	require.NotNil(t, bare.PriceText)
	assert.Equal(t, "$5.00", *bare.PriceText)
}

func TestCardExtractorNoContainers(t *testing.T) {
	ce := newTestCardExtractor(t)

	cards, err := ce.Extract(`<html><body><p>Robot Check</p></body></html>`)
	require.NoError(t, err)
	assert.NotNil(t, cards)
	assert.Empty(t, cards)
}

func TestCardExtractorIdempotent(t *testing.T) {
	ce := newTestCardExtractor(t)

	first, err := ce.Extract(listingFixture)
	require.NoError(t, err)
	second, err := ce.Extract(listingFixture)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCardExtractorRejectsRelativeOrigin(t *testing.T) {
	_, err := NewCardExtractor(selectors.Default().Listing, "/not-absolute")
	assert.Error(t, err)
}

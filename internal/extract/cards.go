package extract

import (
	"fmt"
	"net/url"
	"strings"

	"shopcrawler/internal/dom"
	"shopcrawler/internal/models"
	"shopcrawler/internal/selectors"
)

const (
	// defaultSponsoredPathMarker flags ad-redirect wrapper links; the real
	// destination sits percent-encoded in the redirect query parameter.
	defaultSponsoredPathMarker = "/slredirect/"
	defaultRedirectParam       = "url"
)

// CardExtractor turns a listing page into an ordered sequence of
// SearchCards. It is stateless and safe for concurrent use across
// independent documents.
type CardExtractor struct {
	sel           selectors.Listing
	base          *url.URL
	sponsoredPath string
	redirectParam string
}

// NewCardExtractor binds a listing selector set to the site's base origin,
// used to absolutize relative links.
func NewCardExtractor(sel selectors.Listing, baseOrigin string) (*CardExtractor, error) {
	base, err := url.Parse(baseOrigin)
	if err != nil {
		return nil, fmt.Errorf("parse base origin: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base origin %q must be absolute", baseOrigin)
	}
	return &CardExtractor{
		sel:           sel,
		base:          base,
		sponsoredPath: defaultSponsoredPathMarker,
		redirectParam: defaultRedirectParam,
	}, nil
}

// SetSponsoredRedirect overrides the ad-redirect path marker and embedded
// destination parameter for sites with different wrapper conventions.
func (ce *CardExtractor) SetSponsoredRedirect(pathMarker, param string) {
	ce.sponsoredPath = pathMarker
	ce.redirectParam = param
}

// Extract builds one card per matching container element. A page with no
// containers yields an empty slice, never an error; interpreting that as a
// soft block is the caller's call.
func (ce *CardExtractor) Extract(html string) ([]models.SearchCard, error) {
	root, err := dom.Parse(html)
	if err != nil {
		return nil, err
	}

	cards := []models.SearchCard{}
	root.Each(ce.sel.Container, func(card *dom.Accessor) {
		cards = append(cards, models.SearchCard{
			Title:             card.Text(ce.sel.Title),
			PriceText:         card.Text(ce.sel.Price),
			HasCoupon:         card.Exists(ce.sel.CouponBadge),
			IsLimitedTimeDeal: card.Exists(ce.sel.LimitedDealBadge),
			ProductURL:        ce.normalizeLink(card.Attr(ce.sel.ProductLink, "href")),
		})
	})
	return cards, nil
}

// normalizeLink absolutizes href against the base origin and unwraps
// sponsored-click redirects to their embedded destination.
func (ce *CardExtractor) normalizeLink(href *string) *string {
	if href == nil || *href == "" {
		return nil
	}
	ref, err := url.Parse(*href)
	if err != nil {
		return nil
	}
	resolved := ce.base.ResolveReference(ref)

	if strings.Contains(resolved.Path, ce.sponsoredPath) {
		if inner := resolved.Query().Get(ce.redirectParam); inner != "" {
			innerURL, err := url.Parse(inner)
			if err == nil {
				resolved = ce.base.ResolveReference(innerURL)
			}
		}
	}

	out := resolved.String()
	return &out
}

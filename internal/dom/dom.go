// Package dom wraps goquery with the three read primitives the extractors
// need: existence, normalized text, and attribute lookup. All reads are
// pure; selectors may be comma-separated alternatives and the first match
// in document order wins.
package dom

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Accessor is a read-only view over a parsed document or sub-element.
type Accessor struct {
	sel *goquery.Selection
}

// Parse builds an Accessor for a whole document.
func Parse(html string) (*Accessor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Accessor{sel: doc.Selection}, nil
}

// Exists reports whether any element matches selector.
func (a *Accessor) Exists(selector string) bool {
	return a.sel.Find(selector).Length() > 0
}

// Text returns the normalized text of the first matching element:
// whitespace runs collapsed to single spaces, leading/trailing trimmed.
// nil when nothing matches.
func (a *Accessor) Text(selector string) *string {
	node := a.sel.Find(selector).First()
	if node.Length() == 0 {
		return nil
	}
	text := CleanText(node.Text())
	return &text
}

// Attr returns the named attribute of the first matching element, or nil
// when either the element or the attribute is absent.
func (a *Accessor) Attr(selector, name string) *string {
	node := a.sel.Find(selector).First()
	if node.Length() == 0 {
		return nil
	}
	val, ok := node.Attr(name)
	if !ok {
		return nil
	}
	return &val
}

// Each invokes fn with a sub-element Accessor for every match, in document
// order.
func (a *Accessor) Each(selector string, fn func(*Accessor)) {
	a.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		fn(&Accessor{sel: s})
	})
}

// CleanText collapses whitespace runs and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

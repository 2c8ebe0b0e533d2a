package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `
<html><body>
<div id="a"><span class="x">  first
	value </span><span class="x">second</span></div>
<div id="b"><a href="/link" rel="nofollow">go</a></div>
<div id="empty"></div>
</body></html>`

func TestAccessorText(t *testing.T) {
	root, err := Parse(fixture)
	require.NoError(t, err)

	got := root.Text(".x")
	require.NotNil(t, got)
	assert.Equal(t, "first value", *got, "whitespace runs collapse and first match wins")

	assert.Nil(t, root.Text(".missing"))

	empty := root.Text("#empty")
	require.NotNil(t, empty)
	assert.Equal(t, "", *empty)
}

func TestAccessorTextCommaAlternatives(t *testing.T) {
	root, err := Parse(fixture)
	require.NoError(t, err)

	// Comma alternatives resolve in document order, not listing order.
	got := root.Text("#b a, #a .x")
	require.NotNil(t, got)
	assert.Equal(t, "first value", *got)
}

func TestAccessorExists(t *testing.T) {
	root, err := Parse(fixture)
	require.NoError(t, err)

	assert.True(t, root.Exists("#a .x"))
	assert.False(t, root.Exists("#a .y"))
}

func TestAccessorAttr(t *testing.T) {
	root, err := Parse(fixture)
	require.NoError(t, err)

	href := root.Attr("#b a", "href")
	require.NotNil(t, href)
	assert.Equal(t, "/link", *href)

	assert.Nil(t, root.Attr("#b a", "target"), "missing attribute")
	assert.Nil(t, root.Attr("#missing", "href"), "missing element")
}

func TestAccessorEach(t *testing.T) {
	root, err := Parse(fixture)
	require.NoError(t, err)

	var texts []string
	root.Each(".x", func(el *Accessor) {
		texts = append(texts, CleanText(el.sel.Text()))
	})
	assert.Equal(t, []string{"first value", "second"}, texts)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", CleanText("  a \n\t b   c  "))
	assert.Equal(t, "", CleanText(" \n "))
}

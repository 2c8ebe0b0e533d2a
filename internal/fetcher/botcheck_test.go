package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotCheckDefaults(t *testing.T) {
	bc, err := NewBotCheck(nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    string
		blocked bool
	}{
		{
			name:    "Robot check page",
			body:    "<html><title>Robot Check</title></html>",
			blocked: true,
		},
		{
			name:    "Captcha challenge, mixed case",
			body:    "<p>Please solve this CAPTCHA to continue</p>",
			blocked: true,
		},
		{
			name:    "Character entry prompt",
			body:    "Enter the characters you see below",
			blocked: true,
		},
		{
			name:    "Not a robot phrasing",
			body:    "Confirm you are NOT A ROBOT",
			blocked: true,
		},
		{
			name:    "Regular product page",
			body:    "<html><body><span id=\"productTitle\">Desk Lamp</span></body></html>",
			blocked: false,
		},
		{
			name:    "Empty body",
			body:    "",
			blocked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.blocked, bc.Match(tt.body))
		})
	}
}

func TestBotCheckCustomPhrases(t *testing.T) {
	bc, err := NewBotCheck([]string{"access denied", "unusual traffic"})
	require.NoError(t, err)

	assert.True(t, bc.Match("We detected Unusual Traffic from your network"))
	// Custom phrases replace, not extend, the defaults.
	assert.False(t, bc.Match("Robot Check"))
}

func TestBotCheckQuotesMetaCharacters(t *testing.T) {
	bc, err := NewBotCheck([]string{"are you human?"})
	require.NoError(t, err)

	assert.True(t, bc.Match("ARE YOU HUMAN? prove it"))
	assert.False(t, bc.Match("are you humanX prove it"))
}

package fetcher

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultBotPhrases are the interdiction phrases the default target serves
// on its robot-check page. Target wording drifts, so the set is
// configuration rather than a constant.
var DefaultBotPhrases = []string{
	"robot check",
	"not a robot",
	"captcha",
	"enter the characters you see",
}

// BotCheck classifies response bodies as bot-interdiction pages by
// case-insensitive phrase match. It is a pure text predicate, independent
// of HTTP status and document structure.
type BotCheck struct {
	re *regexp.Regexp
}

func NewBotCheck(phrases []string) (*BotCheck, error) {
	if len(phrases) == 0 {
		phrases = DefaultBotPhrases
	}
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile("(?i)(" + strings.Join(quoted, "|") + ")")
	if err != nil {
		return nil, fmt.Errorf("compile bot phrases: %w", err)
	}
	return &BotCheck{re: re}, nil
}

// Match reports whether body looks like a bot-interdiction page.
func (b *BotCheck) Match(body string) bool {
	return b.re.MatchString(body)
}

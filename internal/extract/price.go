package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// pricePattern matches a digit run with an optional two-decimal fraction.
// Currency symbols and signs are ignored; only the digit sequence counts.
var pricePattern = regexp.MustCompile(`\d+(?:\.\d{2})?`)

// NormalizePrice converts free-text currency like "$1,234.56" to 1234.56.
// Thousands separators are stripped first. Returns nil when the text holds
// no usable number.
func NormalizePrice(text string) *float64 {
	cleaned := strings.ReplaceAll(text, ",", "")
	match := pricePattern.FindString(cleaned)
	if match == "" {
		return nil
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &v
}

package extract

import (
	"regexp"
	"strings"
)

// defaultPricePatterns mirror the price formats seen across supported
// storefronts: "$1,234.56", "1234.56$", "USD 1234.56", "1234.56 USD".
func defaultPricePatterns() []PricePattern {
	return []PricePattern{
		{re: regexp.MustCompile(`\$(\d+(?:,\d{3})*(?:\.\d{2})?)`), currency: "USD"},
		{re: regexp.MustCompile(`(\d+(?:,\d{3})*(?:\.\d{2})?)\s*\$`), currency: "USD"},
		{re: regexp.MustCompile(`USD\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`), currency: "USD"},
		{re: regexp.MustCompile(`(\d+(?:,\d{3})*(?:\.\d{2})?)\s*USD`), currency: "USD"},
	}
}

// parsePrice runs the secondary pattern pass over matched text, normalizing
// the first hit into a comma-free decimal string plus currency code. A miss
// returns ok=false, never an error.
func parsePrice(text string, patterns []PricePattern) (amount, currency string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}
	for _, p := range patterns {
		match := p.re.FindStringSubmatch(text)
		if len(match) < 2 {
			continue
		}
		return strings.ReplaceAll(match[1], ",", ""), p.currency, true
	}
	return "", "", false
}

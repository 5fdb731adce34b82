// Package pricetext normalizes price strings scraped from German marketplaces.
package pricetext

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var numberPattern = regexp.MustCompile(`\d[\d.,]*`)

// Parse extracts the first price in text, e.g. "ab 1.234,50 €" -> 1234.50.
// It reports false when no positive amount can be read.
func Parse(text string) (decimal.Decimal, bool) {
	raw := numberPattern.FindString(text)
	raw = strings.TrimRight(raw, ".,")
	if raw == "" {
		return decimal.Zero, false
	}

	normalized := normalize(raw)
	price, err := decimal.NewFromString(normalized)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}

// ParseParts combines a whole part such as "1.234," and a fraction such as
// "99" into one amount. Missing fractions count as zero cents.
func ParseParts(whole, fraction string) (decimal.Decimal, bool) {
	w := digitsOnly(whole)
	if w == "" {
		return decimal.Zero, false
	}
	f := digitsOnly(fraction)
	if f == "" {
		f = "00"
	}

	price, err := decimal.NewFromString(w + "." + f)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}

func normalize(raw string) string {
	lastDot := strings.LastIndex(raw, ".")
	lastComma := strings.LastIndex(raw, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// 1.234,50
			return strings.Replace(strings.ReplaceAll(raw, ".", ""), ",", ".", 1)
		}
		// 1,234.50
		return strings.ReplaceAll(raw, ",", "")

	case lastComma >= 0:
		if strings.Count(raw, ",") > 1 {
			return strings.ReplaceAll(raw, ",", "")
		}
		return strings.Replace(raw, ",", ".", 1)

	case lastDot >= 0:
		// A single dot followed by exactly three digits is a thousands separator.
		if strings.Count(raw, ".") > 1 || len(raw)-lastDot-1 == 3 {
			return strings.ReplaceAll(raw, ".", "")
		}
		return raw
	}

	return raw
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

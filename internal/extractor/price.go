package extractor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Plausibility band for the whole-page price scan, in won. Values
// outside this range are almost always review counts, dates or
// phone numbers.
const (
	minPlausiblePrice = 100
	maxPlausiblePrice = 100_000_000
)

var nonPriceChars = regexp.MustCompile(`[^\d,]`)

// currencyLikePattern matches grouped or plain numbers in page text,
// e.g. "1,234,567" or "25900".
var currencyLikePattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)

// parsePrice strips everything but digits and thousands separators
// and parses the remainder. Zero or non-numeric results report false:
// a price of 0 is treated as absent, not as an error.
func parsePrice(text string) (int64, bool) {
	clean := nonPriceChars.ReplaceAllString(text, "")
	clean = strings.ReplaceAll(clean, ",", "")
	if clean == "" {
		return 0, false
	}
	price, err := strconv.ParseInt(clean, 10, 64)
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

// scanTextForPrice is the last-resort heuristic when every price
// selector has drifted: scan the visible page text for currency-like
// numbers, filter to the plausible range, and take the largest value
// as the listed (non-discounted) price.
func scanTextForPrice(bodyText string) (int64, bool) {
	var best int64
	for _, match := range currencyLikePattern.FindAllString(bodyText, -1) {
		value, ok := parsePrice(match)
		if !ok || value < minPlausiblePrice || value > maxPlausiblePrice {
			continue
		}
		if value > best {
			best = value
		}
	}
	return best, best > 0
}

// discountRate derives the rounded discount percentage. Only computed
// when both values are present and the original price is higher.
func discountRate(original, current int64) (int, bool) {
	if original <= 0 || current <= 0 || original <= current {
		return 0, false
	}
	rate := float64(original-current) / float64(original) * 100
	return int(math.Round(rate)), true
}

// parseRating reads a decimal rating like "4.8".
func parseRating(text string) (float64, bool) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return 0, false
	}
	rating, err := strconv.ParseFloat(clean, 64)
	if err != nil || rating <= 0 || rating > 5 {
		return 0, false
	}
	return rating, true
}

// parseCount reads a count such as "1,234" or "리뷰 1,234건".
func parseCount(text string) (int64, bool) {
	return parsePrice(text)
}

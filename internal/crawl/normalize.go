// Package crawl turns candidate products with search URLs into scraped
// listings, routing each URL to its marketplace scraper under a shared global
// budget.
package crawl

import (
	"strconv"
	"strings"

	"github.com/salescout/discovery/internal/discovery"
)

// ParsePrice converts marketplace price text to a float. Vietnamese listings
// render prices like "120.000₫", "1.250.000 đ", or "₫95,000"; dots and commas
// are both thousands separators here.
func ParsePrice(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ParseCount converts sold/review counters like "1.2k", "3,4k", "15k+",
// "2.1tr" (Vietnamese "triệu", millions), or plain "857" to an integer.
func ParseCount(text string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.ReplaceAll(s, "đã bán", "")
	s = strings.ReplaceAll(s, "sold", "")
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "+"))

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "tr"):
		multiplier = 1_000_000
		s = strings.TrimSuffix(s, "tr")
	case strings.HasSuffix(s, "k"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "k")
	}

	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if multiplier == 1 {
		// "1.234" without a suffix is thousands-separated, not a decimal.
		s = strings.ReplaceAll(s, ".", "")
	}
	if s == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(value * multiplier), true
}

// DetectPlatform names the marketplace serving a URL, empty when unknown.
func DetectPlatform(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "shopee"):
		return discovery.PlatformShopee
	case strings.Contains(lower, "lazada"):
		return discovery.PlatformLazada
	case strings.Contains(lower, "tiki"):
		return discovery.PlatformTiki
	}
	return ""
}

// Package importer persists ranked listings as project products, skipping
// duplicates by normalized URL.
package importer

import (
	"net/url"
	"strings"
)

// marketplaceHosts are the domains whose listing URLs carry volatile tracking
// query strings. Identity for dedup is scheme://host/path on these hosts.
var marketplaceHosts = []string{"shopee.vn", "lazada.vn", "tiki.vn"}

// NormalizeURL strips the query string and fragment from known marketplace
// listing URLs so the same product crawled twice dedups to one record. URLs
// on other hosts only lose their fragment and trailing slash.
func NormalizeURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return strings.TrimSpace(raw)
	}

	parsed.Fragment = ""
	if isMarketplaceHost(parsed.Host) {
		parsed.RawQuery = ""
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed.String()
}

func isMarketplaceHost(host string) bool {
	host = strings.ToLower(host)
	for _, known := range marketplaceHosts {
		if host == known || strings.HasSuffix(host, "."+known) {
			return true
		}
	}
	return false
}

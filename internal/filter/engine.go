// Package filter applies extracted criteria to scraped listings. It is pure
// and deterministic: no I/O, no LLM, same inputs always produce the same
// verdicts.
package filter

import (
	"fmt"
	"strings"

	"github.com/salescout/discovery/internal/discovery"
)

// Apply evaluates every listing against criteria and returns the passing
// listings in their original order plus one verdict per listing. A listing is
// rejected with ALL of its failing reasons joined by "; ", never just the
// first. A nil criteria passes everything.
func Apply(listings []discovery.ScrapedListing, criteria *discovery.FilterCriteria) ([]discovery.ScrapedListing, []discovery.FilterVerdict) {
	passed := make([]discovery.ScrapedListing, 0, len(listings))
	verdicts := make([]discovery.FilterVerdict, 0, len(listings))

	for _, l := range listings {
		reasons := evaluate(l, criteria)
		if len(reasons) == 0 {
			passed = append(passed, l)
			verdicts = append(verdicts, discovery.FilterVerdict{
				Listing: l,
				Passed:  true,
				Reason:  "meets all criteria",
			})
			continue
		}
		verdicts = append(verdicts, discovery.FilterVerdict{
			Listing: l,
			Passed:  false,
			Reason:  strings.Join(reasons, "; "),
		})
	}
	return passed, verdicts
}

// evaluate returns every reason the listing fails criteria, empty when it
// passes. Constraints on fields the listing lacks (nil rating, nil review
// count) count as failures: an unknown value cannot satisfy a bound.
func evaluate(l discovery.ScrapedListing, c *discovery.FilterCriteria) []string {
	if c == nil {
		return nil
	}
	var reasons []string

	if c.MinRating != nil {
		if l.Rating == nil {
			reasons = append(reasons, fmt.Sprintf("no rating (need >= %.1f)", *c.MinRating))
		} else if *l.Rating < *c.MinRating {
			reasons = append(reasons, fmt.Sprintf("rating %.1f below %.1f", *l.Rating, *c.MinRating))
		}
	}
	if c.MaxRating != nil && l.Rating != nil && *l.Rating > *c.MaxRating {
		reasons = append(reasons, fmt.Sprintf("rating %.1f above %.1f", *l.Rating, *c.MaxRating))
	}

	if c.MinReviewCount != nil {
		if l.ReviewCount == nil {
			reasons = append(reasons, fmt.Sprintf("no review count (need >= %d)", *c.MinReviewCount))
		} else if *l.ReviewCount < *c.MinReviewCount {
			reasons = append(reasons, fmt.Sprintf("%d reviews below %d", *l.ReviewCount, *c.MinReviewCount))
		}
	}
	if c.MaxReviewCount != nil && l.ReviewCount != nil && *l.ReviewCount > *c.MaxReviewCount {
		reasons = append(reasons, fmt.Sprintf("%d reviews above %d", *l.ReviewCount, *c.MaxReviewCount))
	}

	if c.MinPrice != nil && l.Price < *c.MinPrice {
		reasons = append(reasons, fmt.Sprintf("price %.0f below %.0f", l.Price, *c.MinPrice))
	}
	if c.MaxPrice != nil && l.Price > *c.MaxPrice {
		reasons = append(reasons, fmt.Sprintf("price %.0f above %.0f", l.Price, *c.MaxPrice))
	}

	if c.MinSalesCount != nil {
		if l.SalesCount == nil {
			reasons = append(reasons, fmt.Sprintf("no sales count (need >= %d)", *c.MinSalesCount))
		} else if *l.SalesCount < *c.MinSalesCount {
			reasons = append(reasons, fmt.Sprintf("%d sold below %d", *l.SalesCount, *c.MinSalesCount))
		}
	}

	if c.MinTrustScore != nil {
		if l.TrustScore == nil {
			reasons = append(reasons, fmt.Sprintf("no trust score (need >= %.0f)", *c.MinTrustScore))
		} else if *l.TrustScore < *c.MinTrustScore {
			reasons = append(reasons, fmt.Sprintf("trust score %.0f below %.0f", *l.TrustScore, *c.MinTrustScore))
		}
	}

	if len(c.Platforms) > 0 && !containsFold(c.Platforms, l.Platform) {
		reasons = append(reasons, fmt.Sprintf("platform %s not in %v", l.Platform, c.Platforms))
	}

	name := strings.ToLower(l.Name)
	for _, kw := range c.RequiredKeywords {
		if kw != "" && !strings.Contains(name, strings.ToLower(kw)) {
			reasons = append(reasons, fmt.Sprintf("missing keyword %q", kw))
		}
	}
	for _, kw := range c.ExcludedKeywords {
		if kw != "" && strings.Contains(name, strings.ToLower(kw)) {
			reasons = append(reasons, fmt.Sprintf("contains excluded keyword %q", kw))
		}
	}

	if len(c.RequiredBrands) > 0 {
		if l.Brand == nil || !containsFold(c.RequiredBrands, *l.Brand) {
			reasons = append(reasons, fmt.Sprintf("brand not in %v", c.RequiredBrands))
		}
	}
	if len(c.ExcludedBrands) > 0 && l.Brand != nil && containsFold(c.ExcludedBrands, *l.Brand) {
		reasons = append(reasons, fmt.Sprintf("excluded brand %q", *l.Brand))
	}

	if len(c.TrustBadgeTypes) > 0 {
		if l.TrustBadgeType == nil || !containsFold(c.TrustBadgeTypes, *l.TrustBadgeType) {
			reasons = append(reasons, fmt.Sprintf("trust badge not in %v", c.TrustBadgeTypes))
		}
	}

	if len(c.SellerLocations) > 0 {
		if l.SellerLocation == nil || !matchesLocation(c.SellerLocations, *l.SellerLocation) {
			reasons = append(reasons, fmt.Sprintf("seller location not in %v", c.SellerLocations))
		}
	}

	if c.IsMall != nil && *c.IsMall && !l.IsMall {
		reasons = append(reasons, "not a mall store")
	}
	if c.IsVerifiedSeller != nil && *c.IsVerifiedSeller && !l.IsVerifiedSeller {
		reasons = append(reasons, "seller not verified")
	}

	return reasons
}

func containsFold(set []string, value string) bool {
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}

// matchesLocation accepts substring matches either way so "Ho Chi Minh"
// matches a listing location of "TP. Ho Chi Minh".
func matchesLocation(wanted []string, actual string) bool {
	actualLower := strings.ToLower(strings.TrimSpace(actual))
	for _, w := range wanted {
		wLower := strings.ToLower(strings.TrimSpace(w))
		if wLower == "" {
			continue
		}
		if strings.Contains(actualLower, wLower) || strings.Contains(wLower, actualLower) {
			return true
		}
	}
	return false
}

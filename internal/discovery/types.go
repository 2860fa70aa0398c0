// Package discovery defines the core types shared across the auto-discovery pipeline.
package discovery

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Known marketplace platforms.
const (
	PlatformShopee = "shopee"
	PlatformLazada = "lazada"
	PlatformTiki   = "tiki"
	PlatformAll    = "all"
)

// FilterCriteria is the structured, machine-checkable filter extracted from a
// user's free-text constraints. Nil fields mean "no constraint".
type FilterCriteria struct {
	MinRating        *float64 `json:"min_rating,omitempty" mapstructure:"min_rating"`
	MaxRating        *float64 `json:"max_rating,omitempty" mapstructure:"max_rating"`
	MinReviewCount   *int     `json:"min_review_count,omitempty" mapstructure:"min_review_count"`
	MaxReviewCount   *int     `json:"max_review_count,omitempty" mapstructure:"max_review_count"`
	MinPrice         *float64 `json:"min_price,omitempty" mapstructure:"min_price"`
	MaxPrice         *float64 `json:"max_price,omitempty" mapstructure:"max_price"`
	MinSalesCount    *int     `json:"min_sales_count,omitempty" mapstructure:"min_sales_count"`
	MinTrustScore    *float64 `json:"min_trust_score,omitempty" mapstructure:"min_trust_score"`
	Platforms        []string `json:"platforms,omitempty" mapstructure:"platforms"`
	RequiredKeywords []string `json:"required_keywords,omitempty" mapstructure:"required_keywords"`
	ExcludedKeywords []string `json:"excluded_keywords,omitempty" mapstructure:"excluded_keywords"`
	RequiredBrands   []string `json:"required_brands,omitempty" mapstructure:"required_brands"`
	ExcludedBrands   []string `json:"excluded_brands,omitempty" mapstructure:"excluded_brands"`
	TrustBadgeTypes  []string `json:"trust_badge_types,omitempty" mapstructure:"trust_badge_types"`
	SellerLocations  []string `json:"seller_locations,omitempty" mapstructure:"seller_locations"`
	IsMall           *bool    `json:"is_mall,omitempty" mapstructure:"is_mall"`
	IsVerifiedSeller *bool    `json:"is_verified_seller,omitempty" mapstructure:"is_verified_seller"`
}

// ValidateBounds rejects criteria whose paired min/max values are inverted.
// This is a local deterministic check run after extraction, never an LLM round.
func (c *FilterCriteria) ValidateBounds() error {
	if c == nil {
		return nil
	}
	if c.MinRating != nil && c.MaxRating != nil && *c.MinRating > *c.MaxRating {
		return fmt.Errorf("min_rating %.1f exceeds max_rating %.1f", *c.MinRating, *c.MaxRating)
	}
	if c.MinPrice != nil && c.MaxPrice != nil && *c.MinPrice > *c.MaxPrice {
		return fmt.Errorf("min_price %.0f exceeds max_price %.0f", *c.MinPrice, *c.MaxPrice)
	}
	if c.MinReviewCount != nil && c.MaxReviewCount != nil && *c.MinReviewCount > *c.MaxReviewCount {
		return fmt.Errorf("min_review_count %d exceeds max_review_count %d", *c.MinReviewCount, *c.MaxReviewCount)
	}
	return nil
}

// CandidateProduct is an ephemeral record produced by the search agent and
// consumed only by the crawl dispatcher. SearchURLs maps platform name to a
// marketplace search URL; the map may be empty when link generation fell back.
type CandidateProduct struct {
	Name           string            `json:"name"`
	EstimatedPrice float64           `json:"price,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	SearchURLs     map[string]string `json:"urls,omitempty"`
}

// ScrapedListing is one scraped product record from a marketplace, not yet
// persisted. It lives for a single pipeline run.
type ScrapedListing struct {
	Platform         string   `json:"platform"`
	Name             string   `json:"product_name"`
	URL              string   `json:"product_url"`
	Price            float64  `json:"price_current"`
	Rating           *float64 `json:"rating_score,omitempty"`
	ReviewCount      *int     `json:"review_count,omitempty"`
	SalesCount       *int     `json:"sales_count,omitempty"`
	IsMall           bool     `json:"is_mall"`
	IsVerifiedSeller bool     `json:"is_verified_seller"`
	TrustScore       *float64 `json:"trust_score,omitempty"`
	TrustBadgeType   *string  `json:"trust_badge_type,omitempty"`
	Brand            *string  `json:"brand,omitempty"`
	SellerLocation   *string  `json:"seller_location,omitempty"`
	ImageURLs        []string `json:"image_urls,omitempty"`
}

// FilterVerdict records the filter outcome for one listing, pass or reject,
// with a human-readable reason. Verdicts are returned in the run payload for
// observability and never persisted.
type FilterVerdict struct {
	Listing ScrapedListing `json:"listing"`
	Passed  bool           `json:"passed"`
	Reason  string         `json:"reason"`
}

// ListingSummary is the compact listing view embedded in event payloads and
// run results.
type ListingSummary struct {
	Name        string   `json:"product_name"`
	URL         string   `json:"product_url"`
	Platform    string   `json:"platform"`
	Price       float64  `json:"price"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`
	SalesCount  *int     `json:"sales_count,omitempty"`
	IsMall      bool     `json:"is_mall"`
	Brand       *string  `json:"brand,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

// Summarize builds the compact view of a listing, truncating very long names.
func Summarize(l ScrapedListing, reason string) ListingSummary {
	name := l.Name
	if len(name) > 100 {
		name = name[:100]
	}
	return ListingSummary{
		Name:        name,
		URL:         l.URL,
		Platform:    l.Platform,
		Price:       l.Price,
		Rating:      l.Rating,
		ReviewCount: l.ReviewCount,
		SalesCount:  l.SalesCount,
		IsMall:      l.IsMall,
		Brand:       l.Brand,
		Reason:      reason,
	}
}

// RunStatus is the terminal status of a pipeline run.
type RunStatus string

// Run statuses.
const (
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// RunResult is the terminal payload of one pipeline run.
type RunResult struct {
	Status             RunStatus        `json:"status"`
	Message            string           `json:"message"`
	ErrorType          ErrorType        `json:"error_type,omitempty"`
	FilterCriteria     *FilterCriteria  `json:"filter_criteria,omitempty"`
	ProductsFound      int              `json:"products_found"`
	ProductsFiltered   int              `json:"products_filtered"`
	ProductsImported   int              `json:"products_imported"`
	ImportedProductIDs []uuid.UUID      `json:"imported_product_ids,omitempty"`
	SuggestedPlatforms []string         `json:"suggested_platforms,omitempty"`
	RejectedProducts   []ListingSummary `json:"rejected_products,omitempty"`
	PassedProducts     []ListingSummary `json:"passed_products,omitempty"`
	CrawledSummary     []ListingSummary `json:"crawled_products_summary,omitempty"`
	RankingAnalysis    string           `json:"ai_analysis,omitempty"`
}

// Project is the sourcing project a discovery run imports into.
type Project struct {
	ID                    uuid.UUID `json:"id"`
	Name                  string    `json:"name"`
	Description           string    `json:"description,omitempty"`
	TargetProductName     string    `json:"target_product_name"`
	TargetProductCategory string    `json:"target_product_category,omitempty"`
	TargetBudget          *float64  `json:"target_budget_range,omitempty"`
	Currency              string    `json:"currency,omitempty"`
	Status                string    `json:"status,omitempty"`
}

// Product is the persisted record created for each imported listing.
type Product struct {
	ID           uuid.UUID `json:"id"`
	ProjectID    uuid.UUID `json:"project_id"`
	Name         string    `json:"name"`
	Brand        *string   `json:"brand,omitempty"`
	Platform     string    `json:"platform"`
	URL          string    `json:"url"`
	CurrentPrice float64   `json:"current_price"`
	Currency     string    `json:"currency"`
	DataSource   string    `json:"data_source"`
	CreatedBy    uuid.UUID `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

package scrape

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/salescout/discovery/internal/crawl"
	"github.com/salescout/discovery/internal/discovery"
)

// Tiki scrapes tiki.vn search pages.
type Tiki struct {
	fetcher *Fetcher
	logger  *zap.Logger
}

// NewTiki builds the Tiki scraper on the shared fetcher.
func NewTiki(fetcher *Fetcher, logger *zap.Logger) *Tiki {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tiki{fetcher: fetcher, logger: logger}
}

// Platform reports the marketplace this scraper serves.
func (s *Tiki) Platform() string { return discovery.PlatformTiki }

// CrawlSearchResults fetches one search page and extracts up to maxItems
// listings, promoting to a headless render once when the static page carries
// no product cards.
func (s *Tiki) CrawlSearchResults(ctx context.Context, pageURL string, maxItems int) ([]discovery.ScrapedListing, error) {
	body, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("tiki fetch: %w", err)
	}
	listings, err := s.parse(body, maxItems)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		rendered, renderErr := s.fetcher.FetchRendered(ctx, pageURL)
		if renderErr != nil {
			s.logger.Debug("tiki headless promotion unavailable", zap.Error(renderErr))
			return listings, nil
		}
		return s.parse(rendered, maxItems)
	}
	return listings, nil
}

func (s *Tiki) parse(body []byte, maxItems int) ([]discovery.ScrapedListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tiki parse: %w", err)
	}

	var listings []discovery.ScrapedListing
	doc.Find(`a[data-view-id="product_list_item"], a.product-item`).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if maxItems > 0 && len(listings) >= maxItems {
			return false
		}
		listing, ok := s.parseCard(card)
		if ok {
			listings = append(listings, listing)
		}
		return true
	})
	return listings, nil
}

func (s *Tiki) parseCard(card *goquery.Selection) (discovery.ScrapedListing, bool) {
	href := normalizeHref(card.AttrOr("href", ""), "https://tiki.vn")
	if href == "" {
		return discovery.ScrapedListing{}, false
	}

	name := strings.TrimSpace(card.Find(".name, h3").First().Text())
	if name == "" {
		name = strings.TrimSpace(card.Find("img[alt]").First().AttrOr("alt", ""))
	}
	if name == "" {
		return discovery.ScrapedListing{}, false
	}

	listing := discovery.ScrapedListing{
		Platform: discovery.PlatformTiki,
		Name:     name,
		URL:      href,
	}

	if price, ok := crawl.ParsePrice(card.Find(".price-discount__price, .price").First().Text()); ok {
		listing.Price = price
	} else if price, ok := crawl.ParsePrice(findTextContaining(card, "₫")); ok {
		listing.Price = price
	}

	if text := card.Find("[data-rating]").First().AttrOr("data-rating", ""); text != "" {
		if rating, err := strconv.ParseFloat(text, 64); err == nil {
			listing.Rating = &rating
		}
	}
	if text := card.Find(".review-count").First().Text(); text != "" {
		if count, ok := crawl.ParseCount(trimParens(text)); ok {
			listing.ReviewCount = &count
		}
	}
	if text := card.Find(".quantity-sold, .sold").First().Text(); text != "" {
		if count, ok := crawl.ParseCount(text); ok {
			listing.SalesCount = &count
		}
	}

	official := card.Find(".official-badge").Length() > 0 ||
		strings.Contains(strings.ToLower(card.Text()), "chính hãng")
	listing.IsMall = official
	if official {
		badge := "tiki_official"
		listing.TrustBadgeType = &badge
		listing.IsVerifiedSeller = true
	}
	if brand := strings.TrimSpace(card.Find(".brand").First().Text()); brand != "" {
		listing.Brand = &brand
	}
	if img, ok := card.Find("img[src]").First().Attr("src"); ok && img != "" {
		listing.ImageURLs = []string{normalizeHref(img, "https://tiki.vn")}
	}
	return listing, true
}

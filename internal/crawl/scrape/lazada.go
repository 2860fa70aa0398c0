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

// Lazada scrapes lazada.vn catalog search pages.
type Lazada struct {
	fetcher *Fetcher
	logger  *zap.Logger
}

// NewLazada builds the Lazada scraper on the shared fetcher.
func NewLazada(fetcher *Fetcher, logger *zap.Logger) *Lazada {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lazada{fetcher: fetcher, logger: logger}
}

// Platform reports the marketplace this scraper serves.
func (s *Lazada) Platform() string { return discovery.PlatformLazada }

// CrawlSearchResults fetches one search page and extracts up to maxItems
// listings. A page with no product cards promotes to a headless render once;
// still-empty results return an empty slice, not an error.
func (s *Lazada) CrawlSearchResults(ctx context.Context, pageURL string, maxItems int) ([]discovery.ScrapedListing, error) {
	body, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("lazada fetch: %w", err)
	}
	listings, err := s.parse(body, maxItems)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		rendered, renderErr := s.fetcher.FetchRendered(ctx, pageURL)
		if renderErr != nil {
			s.logger.Debug("lazada headless promotion unavailable", zap.Error(renderErr))
			return listings, nil
		}
		return s.parse(rendered, maxItems)
	}
	return listings, nil
}

func (s *Lazada) parse(body []byte, maxItems int) ([]discovery.ScrapedListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("lazada parse: %w", err)
	}

	var listings []discovery.ScrapedListing
	doc.Find(`[data-qa-locator="product-item"]`).EachWithBreak(func(_ int, card *goquery.Selection) bool {
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

func (s *Lazada) parseCard(card *goquery.Selection) (discovery.ScrapedListing, bool) {
	link := card.Find("a[href]").First()
	href, _ := link.Attr("href")
	href = normalizeHref(href, "https://www.lazada.vn")
	if href == "" {
		return discovery.ScrapedListing{}, false
	}

	name, _ := link.Attr("title")
	if name == "" {
		name, _ = card.Find("img[alt]").First().Attr("alt")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return discovery.ScrapedListing{}, false
	}

	listing := discovery.ScrapedListing{
		Platform: discovery.PlatformLazada,
		Name:     name,
		URL:      href,
	}

	if price, ok := crawl.ParsePrice(card.Find(".price").First().Text()); ok {
		listing.Price = price
	} else if price, ok := crawl.ParsePrice(findTextContaining(card, "₫")); ok {
		listing.Price = price
	}

	if text := card.Find(".rating").First().AttrOr("data-rating", ""); text != "" {
		if rating, err := strconv.ParseFloat(text, 64); err == nil {
			listing.Rating = &rating
		}
	}
	if text := card.Find(".review-count").First().Text(); text != "" {
		if count, ok := crawl.ParseCount(trimParens(text)); ok {
			listing.ReviewCount = &count
		}
	}
	if text := card.Find(".sold-count").First().Text(); text != "" {
		if count, ok := crawl.ParseCount(text); ok {
			listing.SalesCount = &count
		}
	}
	if loc := strings.TrimSpace(card.Find(".location").First().Text()); loc != "" {
		listing.SellerLocation = &loc
	}
	listing.IsMall = card.Find(".lazmall-badge").Length() > 0 ||
		strings.Contains(strings.ToLower(card.Text()), "lazmall")
	if listing.IsMall {
		badge := "lazmall"
		listing.TrustBadgeType = &badge
		listing.IsVerifiedSeller = true
	}
	if img, ok := card.Find("img[src]").First().Attr("src"); ok && img != "" {
		listing.ImageURLs = []string{normalizeHref(img, "https://www.lazada.vn")}
	}
	return listing, true
}

// normalizeHref resolves protocol-relative and path-relative hrefs.
func normalizeHref(href, base string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return base + href
	default:
		return href
	}
}

// findTextContaining returns the text of the first descendant span whose text
// contains the marker, a fallback for obfuscated class names.
func findTextContaining(sel *goquery.Selection, marker string) string {
	found := ""
	sel.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), marker) {
			found = s.Text()
			return false
		}
		return true
	})
	return found
}

func trimParens(text string) string {
	return strings.Trim(strings.TrimSpace(text), "()")
}

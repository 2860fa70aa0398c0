package crawl

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/salescout/discovery/internal/discovery"
)

// DefaultGlobalBudget caps listings collected across an entire run.
const DefaultGlobalBudget = 20

// DispatcherConfig controls crawl dispatch.
type DispatcherConfig struct {
	// GlobalBudget caps total listings per run across all URLs.
	GlobalBudget int
	// ExcludedPlatforms names marketplaces whose URLs are skipped entirely.
	ExcludedPlatforms []string
}

// Progress is invoked after each URL finishes, with running totals.
type Progress func(urlsDone, urlsTotal, collected int)

// Dispatcher fans candidate search URLs out to platform scrapers under a
// shared listing budget.
type Dispatcher struct {
	cfg     DispatcherConfig
	factory discovery.ScraperFactory
	logger  *zap.Logger
}

// NewDispatcher builds a dispatcher over the scraper factory.
func NewDispatcher(cfg DispatcherConfig, factory discovery.ScraperFactory, logger *zap.Logger) *Dispatcher {
	if cfg.GlobalBudget <= 0 {
		cfg.GlobalBudget = DefaultGlobalBudget
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{cfg: cfg, factory: factory, logger: logger}
}

// Crawl visits every crawlable search URL of every candidate and returns the
// collected listings, deduplicated by URL. The global budget is split evenly
// across URLs with a per-URL floor of one, and collection stops the moment
// the budget is reached. Per-URL failures are logged and skipped; only a
// canceled context aborts the whole crawl.
func (d *Dispatcher) Crawl(ctx context.Context, candidates []discovery.CandidateProduct, progress func(urlsDone, urlsTotal, collected int)) ([]discovery.ScrapedListing, error) {
	urls := d.collectURLs(candidates)
	if len(urls) == 0 {
		return nil, nil
	}

	perURL := d.cfg.GlobalBudget / len(urls)
	if perURL < 1 {
		perURL = 1
	}

	seen := make(map[string]struct{}, d.cfg.GlobalBudget)
	listings := make([]discovery.ScrapedListing, 0, d.cfg.GlobalBudget)

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return listings, fmt.Errorf("crawl canceled: %w", err)
		}
		if len(listings) >= d.cfg.GlobalBudget {
			break
		}

		remaining := d.cfg.GlobalBudget - len(listings)
		limit := perURL
		if limit > remaining {
			limit = remaining
		}

		scraper, err := d.factory.ScraperFor(u)
		if err != nil {
			d.logger.Warn("no scraper for url", zap.String("url", u), zap.Error(err))
			continue
		}

		found, err := scraper.CrawlSearchResults(ctx, u, limit)
		if err != nil {
			d.logger.Warn("crawl url failed",
				zap.String("url", u),
				zap.String("platform", scraper.Platform()),
				zap.Error(err),
			)
			if progress != nil {
				progress(i+1, len(urls), len(listings))
			}
			continue
		}

		for _, l := range found {
			if l.URL == "" {
				continue
			}
			if _, dup := seen[l.URL]; dup {
				continue
			}
			seen[l.URL] = struct{}{}
			listings = append(listings, l)
			if len(listings) >= d.cfg.GlobalBudget {
				break
			}
		}
		if progress != nil {
			progress(i+1, len(urls), len(listings))
		}
	}

	return listings, nil
}

// collectURLs flattens candidate search URLs in candidate order, dropping
// excluded platforms and candidates that came back from link generation with
// no URLs at all.
func (d *Dispatcher) collectURLs(candidates []discovery.CandidateProduct) []string {
	var urls []string
	seen := make(map[string]struct{})
	for _, c := range candidates {
		for _, u := range orderedURLs(c.SearchURLs) {
			if u == "" || d.isExcluded(u) {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	return urls
}

// orderedURLs returns the platform URLs of one candidate in a stable order so
// crawl runs are reproducible.
func orderedURLs(byPlatform map[string]string) []string {
	var urls []string
	for _, p := range []string{discovery.PlatformLazada, discovery.PlatformTiki, discovery.PlatformShopee} {
		if u, ok := byPlatform[p]; ok {
			urls = append(urls, u)
		}
	}
	for p, u := range byPlatform {
		switch p {
		case discovery.PlatformLazada, discovery.PlatformTiki, discovery.PlatformShopee:
		default:
			urls = append(urls, u)
		}
	}
	return urls
}

func (d *Dispatcher) isExcluded(url string) bool {
	lower := strings.ToLower(url)
	for _, p := range d.cfg.ExcludedPlatforms {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

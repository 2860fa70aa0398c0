package crawl

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/salescout/discovery/internal/discovery"
)

type fakeScraper struct {
	platform string

	mu       sync.Mutex
	requests []crawlRequest
	listings map[string][]discovery.ScrapedListing
	err      error
}

type crawlRequest struct {
	url      string
	maxItems int
}

func newFakeScraper(platform string) *fakeScraper {
	return &fakeScraper{
		platform: platform,
		listings: make(map[string][]discovery.ScrapedListing),
	}
}

func (f *fakeScraper) Platform() string { return f.platform }

func (f *fakeScraper) CrawlSearchResults(_ context.Context, url string, maxItems int) ([]discovery.ScrapedListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, crawlRequest{url: url, maxItems: maxItems})
	if f.err != nil {
		return nil, f.err
	}
	found := f.listings[url]
	if maxItems > 0 && len(found) > maxItems {
		found = found[:maxItems]
	}
	return found, nil
}

func (f *fakeScraper) stock(url string, n int) {
	for i := 0; i < n; i++ {
		f.listings[url] = append(f.listings[url], discovery.ScrapedListing{
			Platform: f.platform,
			Name:     fmt.Sprintf("%s item %d", url, i),
			URL:      fmt.Sprintf("%s/item-%d", url, i),
			Price:    float64(100000 + i),
		})
	}
}

func candidate(name string, urls map[string]string) discovery.CandidateProduct {
	return discovery.CandidateProduct{Name: name, SearchURLs: urls}
}

// TestCrawlSplitsBudgetAcrossURLs divides the global budget evenly with a
// floor of one per URL.
func TestCrawlSplitsBudgetAcrossURLs(t *testing.T) {
	t.Parallel()

	lazada := newFakeScraper(discovery.PlatformLazada)
	lazada.stock("https://www.lazada.vn/catalog/?q=a", 10)
	lazada.stock("https://www.lazada.vn/catalog/?q=b", 10)

	d := NewDispatcher(DispatcherConfig{GlobalBudget: 10}, NewFactory(lazada), nil)
	listings, err := d.Crawl(context.Background(), []discovery.CandidateProduct{
		candidate("a", map[string]string{"lazada": "https://www.lazada.vn/catalog/?q=a"}),
		candidate("b", map[string]string{"lazada": "https://www.lazada.vn/catalog/?q=b"}),
	}, nil)
	require.NoError(t, err)
	require.Len(t, listings, 10)
	require.Len(t, lazada.requests, 2)
	require.Equal(t, 5, lazada.requests[0].maxItems)
	require.Equal(t, 5, lazada.requests[1].maxItems)
}

// TestCrawlPerURLFloor keeps at least one listing per URL when URLs outnumber
// the budget.
func TestCrawlPerURLFloor(t *testing.T) {
	t.Parallel()

	lazada := newFakeScraper(discovery.PlatformLazada)
	var candidates []discovery.CandidateProduct
	for i := 0; i < 30; i++ {
		url := fmt.Sprintf("https://www.lazada.vn/catalog/?q=q%d", i)
		lazada.stock(url, 3)
		candidates = append(candidates, candidate(fmt.Sprintf("c%d", i), map[string]string{"lazada": url}))
	}

	d := NewDispatcher(DispatcherConfig{GlobalBudget: 20}, NewFactory(lazada), nil)
	listings, err := d.Crawl(context.Background(), candidates, nil)
	require.NoError(t, err)
	require.Len(t, listings, 20, "stops exactly at the global budget")
	for _, req := range lazada.requests {
		require.Equal(t, 1, req.maxItems)
	}
}

// TestCrawlSkipsExcludedPlatformsAndLinklessCandidates drops shopee URLs and
// candidates without links.
func TestCrawlSkipsExcludedPlatformsAndLinklessCandidates(t *testing.T) {
	t.Parallel()

	lazada := newFakeScraper(discovery.PlatformLazada)
	lazada.stock("https://www.lazada.vn/catalog/?q=a", 2)

	d := NewDispatcher(DispatcherConfig{
		GlobalBudget:      20,
		ExcludedPlatforms: []string{"shopee"},
	}, NewFactory(lazada), nil)

	listings, err := d.Crawl(context.Background(), []discovery.CandidateProduct{
		candidate("linked", map[string]string{
			"lazada": "https://www.lazada.vn/catalog/?q=a",
			"shopee": "https://shopee.vn/search?keyword=a",
		}),
		candidate("linkless", nil),
	}, nil)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	require.Len(t, lazada.requests, 1)
}

// TestCrawlContinuesPastFailures skips a failing URL and keeps crawling.
func TestCrawlContinuesPastFailures(t *testing.T) {
	t.Parallel()

	lazada := newFakeScraper(discovery.PlatformLazada)
	lazada.err = fmt.Errorf("blocked")
	tiki := newFakeScraper(discovery.PlatformTiki)
	tiki.stock("https://tiki.vn/search?q=a", 3)

	d := NewDispatcher(DispatcherConfig{GlobalBudget: 20}, NewFactory(lazada, tiki), nil)
	listings, err := d.Crawl(context.Background(), []discovery.CandidateProduct{
		candidate("a", map[string]string{
			"lazada": "https://www.lazada.vn/catalog/?q=a",
			"tiki":   "https://tiki.vn/search?q=a",
		}),
	}, nil)
	require.NoError(t, err)
	require.Len(t, listings, 3)
}

// TestCrawlDeduplicatesListings drops the same product URL seen twice.
func TestCrawlDeduplicatesListings(t *testing.T) {
	t.Parallel()

	lazada := newFakeScraper(discovery.PlatformLazada)
	dup := discovery.ScrapedListing{
		Platform: discovery.PlatformLazada,
		Name:     "same tumbler",
		URL:      "https://www.lazada.vn/products/same",
		Price:    100000,
	}
	lazada.listings["https://www.lazada.vn/catalog/?q=a"] = []discovery.ScrapedListing{dup}
	lazada.listings["https://www.lazada.vn/catalog/?q=b"] = []discovery.ScrapedListing{dup}

	d := NewDispatcher(DispatcherConfig{GlobalBudget: 20}, NewFactory(lazada), nil)
	listings, err := d.Crawl(context.Background(), []discovery.CandidateProduct{
		candidate("a", map[string]string{"lazada": "https://www.lazada.vn/catalog/?q=a"}),
		candidate("b", map[string]string{"lazada": "https://www.lazada.vn/catalog/?q=b"}),
	}, nil)
	require.NoError(t, err)
	require.Len(t, listings, 1)
}

// TestCrawlReportsProgress invokes the callback after every URL.
func TestCrawlReportsProgress(t *testing.T) {
	t.Parallel()

	lazada := newFakeScraper(discovery.PlatformLazada)
	lazada.stock("https://www.lazada.vn/catalog/?q=a", 2)
	lazada.stock("https://www.lazada.vn/catalog/?q=b", 2)

	d := NewDispatcher(DispatcherConfig{GlobalBudget: 20}, NewFactory(lazada), nil)
	var updates [][3]int
	_, err := d.Crawl(context.Background(), []discovery.CandidateProduct{
		candidate("a", map[string]string{"lazada": "https://www.lazada.vn/catalog/?q=a"}),
		candidate("b", map[string]string{"lazada": "https://www.lazada.vn/catalog/?q=b"}),
	}, func(done, total, collected int) {
		updates = append(updates, [3]int{done, total, collected})
	})
	require.NoError(t, err)
	require.Equal(t, [][3]int{{1, 2, 2}, {2, 2, 4}}, updates)
}

// TestFactoryRoutesByHost resolves scrapers by URL and defaults to Lazada for
// unknown hosts.
func TestFactoryRoutesByHost(t *testing.T) {
	t.Parallel()

	lazada := newFakeScraper(discovery.PlatformLazada)
	tiki := newFakeScraper(discovery.PlatformTiki)
	f := NewFactory(lazada, tiki)

	s, err := f.ScraperFor("https://tiki.vn/search?q=tumbler")
	require.NoError(t, err)
	require.Equal(t, discovery.PlatformTiki, s.Platform())

	s, err = f.ScraperFor("https://example.com/search?q=tumbler")
	require.NoError(t, err)
	require.Equal(t, discovery.PlatformLazada, s.Platform(), "unknown hosts fall back to the default scraper")

	_, err = f.ScraperFor("https://shopee.vn/search?keyword=tumbler")
	require.Error(t, err, "no shopee scraper registered")
}

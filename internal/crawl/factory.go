package crawl

import (
	"fmt"

	"github.com/salescout/discovery/internal/discovery"
)

// Factory routes search URLs to platform scrapers by hostname. URLs that
// match no known marketplace fall back to the default scraper, which keeps a
// slightly malformed model-generated URL crawlable instead of dropped.
type Factory struct {
	scrapers        map[string]discovery.Scraper
	defaultPlatform string
}

// NewFactory registers the given scrapers and picks Lazada as the fallback
// when present.
func NewFactory(scrapers ...discovery.Scraper) *Factory {
	f := &Factory{
		scrapers:        make(map[string]discovery.Scraper, len(scrapers)),
		defaultPlatform: discovery.PlatformLazada,
	}
	for _, s := range scrapers {
		f.scrapers[s.Platform()] = s
	}
	return f
}

// ScraperFor resolves the scraper serving url.
func (f *Factory) ScraperFor(url string) (discovery.Scraper, error) {
	platform := DetectPlatform(url)
	if platform == "" {
		platform = f.defaultPlatform
	}
	s, ok := f.scrapers[platform]
	if !ok {
		return nil, fmt.Errorf("no scraper registered for platform %q (url %s)", platform, url)
	}
	return s, nil
}

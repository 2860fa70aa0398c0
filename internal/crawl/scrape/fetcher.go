// Package scrape holds the marketplace scrapers and the shared page fetcher
// they are built on.
package scrape

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

// FetchConfig controls the shared fetcher.
type FetchConfig struct {
	UserAgent string
	Timeout   time.Duration
	// DomainRPS caps requests per second per host. Zero disables the limiter.
	DomainRPS       float64
	HeadlessEnabled bool
	HeadlessTimeout time.Duration
}

// Fetcher retrieves search-result pages. Static fetches go through a Colly
// collector with a per-host rate limiter; pages that come back as empty JS
// shells can be promoted to a headless render when enabled.
type Fetcher struct {
	cfg           FetchConfig
	baseCollector *colly.Collector
	renderer      *Renderer

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher builds the shared fetcher. The headless renderer is created
// lazily on first promotion, so enabling it costs nothing until a page
// actually needs JavaScript.
func NewFetcher(cfg FetchConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = false
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		limiters:      make(map[string]*rate.Limiter),
	}
}

// Close releases the headless renderer, if one was started.
func (f *Fetcher) Close() {
	f.mu.Lock()
	r := f.renderer
	f.mu.Unlock()
	if r != nil {
		r.Close()
	}
}

// Fetch performs one rate-limited static GET and returns the response body.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := f.waitForHost(ctx, pageURL); err != nil {
		return nil, err
	}

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", pageURL, err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", pageURL, fetchErr)
		}
		return body, nil
	}
}

// FetchRendered retrieves the page through headless Chrome, returning an
// error when headless is disabled.
func (f *Fetcher) FetchRendered(ctx context.Context, pageURL string) ([]byte, error) {
	if !f.cfg.HeadlessEnabled {
		return nil, fmt.Errorf("headless rendering disabled")
	}
	if err := f.waitForHost(ctx, pageURL); err != nil {
		return nil, err
	}
	r, err := f.rendererLazy()
	if err != nil {
		return nil, err
	}
	return r.Render(ctx, pageURL)
}

func (f *Fetcher) rendererLazy() (*Renderer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renderer != nil {
		return f.renderer, nil
	}
	r, err := NewRenderer(RendererConfig{
		UserAgent:         f.cfg.UserAgent,
		NavigationTimeout: f.cfg.HeadlessTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("start renderer: %w", err)
	}
	f.renderer = r
	return r, nil
}

func (f *Fetcher) waitForHost(ctx context.Context, pageURL string) error {
	if f.cfg.DomainRPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("parse url %q: %w", pageURL, err)
	}
	f.mu.Lock()
	limiter, ok := f.limiters[parsed.Host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(f.cfg.DomainRPS), 1)
		f.limiters[parsed.Host] = limiter
	}
	f.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", parsed.Host, err)
	}
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

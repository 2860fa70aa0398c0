package discovery

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// GenerateRequest captures one LLM call. JSONMode asks the model for a single
// JSON object; WebSearch enables live grounding where the provider supports it.
type GenerateRequest struct {
	Prompt    string
	JSONMode  bool
	WebSearch bool
	Timeout   time.Duration
}

// TokenUsage reports prompt/completion token counts for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// GroundingMetadata records the live-search context attached to a grounded
// call, kept for audit alongside the textual analysis.
type GroundingMetadata struct {
	Queries []string `json:"queries,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// GenerateResponse is the raw model output; callers parse Text themselves.
type GenerateResponse struct {
	Text      string
	Usage     TokenUsage
	Grounding *GroundingMetadata
}

// LLMClient is the language-model collaborator. Implementations must honor the
// request timeout and may return transport or rate-limit errors, which calling
// stages classify as retryable or terminal.
type LLMClient interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	ModelName() string
}

// Scraper crawls one marketplace's search-result pages. CrawlSearchResults
// must return an empty slice, not an error, when the page simply has no
// results; errors are reserved for unrecoverable transport failures.
type Scraper interface {
	Platform() string
	CrawlSearchResults(ctx context.Context, url string, maxItems int) ([]ScrapedListing, error)
}

// ScraperFactory resolves the scraper serving a given search URL.
type ScraperFactory interface {
	ScraperFor(url string) (Scraper, error)
}

// ProductStore persists imported products and answers the dedup lookup.
// FindByProjectURL returns ErrNotFound when no product matches; Create returns
// ErrDuplicate or ErrPermission as typed failures.
type ProductStore interface {
	FindByProjectURL(ctx context.Context, projectID uuid.UUID, normalizedURL string) (Product, error)
	Create(ctx context.Context, product Product) (uuid.UUID, error)
}

// ProjectStore loads the project a run imports into.
type ProjectStore interface {
	Get(ctx context.Context, id uuid.UUID) (Project, error)
}

// Publisher pushes run-completion notifications to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// ArtifactStore writes audit artifacts (grounding metadata, run results) and
// returns a URI.
type ArtifactStore interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used outside tests.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

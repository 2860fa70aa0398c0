// Package search implements the AI search agent: a market-analysis call that
// names concrete sellable products, followed by a link-generation call that
// attaches marketplace search URLs.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/salescout/discovery/internal/discovery"
	"github.com/salescout/discovery/internal/llm"
)

const (
	analyzeTimeout = 60 * time.Second
	linkTimeout    = 30 * time.Second
)

// Search URL templates the link-generation call is asked to follow.
const (
	shopeeSearchTemplate = "https://shopee.vn/search?keyword=%s"
	lazadaSearchTemplate = "https://www.lazada.vn/catalog/?q=%s"
	tikiSearchTemplate   = "https://tiki.vn/search?q=%s"
)

// Config tunes per-step retry behavior. The analyze and link steps carry
// separate knobs; both back off linearly (attempt x base).
type Config struct {
	AnalyzeRetries int
	AnalyzeBackoff time.Duration
	LinkRetries    int
	LinkBackoff    time.Duration
}

func (c *Config) applyDefaults() {
	if c.AnalyzeRetries <= 0 {
		c.AnalyzeRetries = 3
	}
	if c.AnalyzeBackoff <= 0 {
		c.AnalyzeBackoff = 2 * time.Second
	}
	if c.LinkRetries <= 0 {
		c.LinkRetries = 3
	}
	if c.LinkBackoff <= 0 {
		c.LinkBackoff = 500 * time.Millisecond
	}
}

// StageGrounding captures per-call grounding metadata for audit.
type StageGrounding struct {
	Analyze *discovery.GroundingMetadata `json:"step1_analysis,omitempty"`
	Links   *discovery.GroundingMetadata `json:"step2_links,omitempty"`
}

// Result is the agent's output. An empty Products slice with a non-empty
// RawError is a valid terminal state, not an exception: the orchestrator
// decides how to surface it.
type Result struct {
	Analysis  string
	Products  []discovery.CandidateProduct
	Grounding StageGrounding
	RawError  string
}

// Agent runs the two-step product search.
type Agent struct {
	llm    discovery.LLMClient
	cfg    Config
	logger *zap.Logger
	sleep  func(time.Duration)
}

// NewAgent wires the LLM collaborator, retry config, and logger.
func NewAgent(client discovery.LLMClient, cfg Config, logger *zap.Logger) *Agent {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{llm: client, cfg: cfg, logger: logger, sleep: time.Sleep}
}

type analyzePayload struct {
	Analysis string `json:"analysis"`
	Products []struct {
		Name   string  `json:"name"`
		Price  float64 `json:"price"`
		Reason string  `json:"reason"`
	} `json:"products"`
}

type linkPayload struct {
	Products []struct {
		Name string            `json:"name"`
		URLs map[string]string `json:"urls"`
	} `json:"products"`
}

// Search runs analysis then link generation. Platform scopes link generation
// to one marketplace or "all". The returned error is reserved for context
// cancellation; model failures degrade into the Result instead.
func (a *Agent) Search(ctx context.Context, query, description string, budget *float64, limit int, platform string) (Result, error) {
	analysis, products, grounding, rawErr := a.analyze(ctx, query, description, budget, limit)
	result := Result{
		Analysis: analysis,
		Products: products,
		RawError: rawErr,
	}
	result.Grounding.Analyze = grounding
	if ctx.Err() != nil {
		return result, fmt.Errorf("search canceled: %w", ctx.Err())
	}
	if len(products) == 0 {
		return result, nil
	}

	linked, linkGrounding, err := a.generateLinks(ctx, products, platform)
	if err != nil {
		// Exhausted retries: keep the analyzed products, just without URLs.
		a.logger.Warn("link generation exhausted retries, returning unlinked products", zap.Error(err))
		return result, nil
	}
	result.Products = linked
	result.Grounding.Links = linkGrounding
	return result, nil
}

func (a *Agent) analyze(ctx context.Context, query, description string, budget *float64, limit int) (string, []discovery.CandidateProduct, *discovery.GroundingMetadata, string) {
	prompt := buildAnalyzePrompt(query, description, budget, limit)

	var lastErr error
	for attempt := 1; attempt <= a.cfg.AnalyzeRetries; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		resp, err := a.llm.Generate(ctx, discovery.GenerateRequest{
			Prompt:    prompt,
			JSONMode:  true,
			WebSearch: true,
			Timeout:   analyzeTimeout,
		})
		if err == nil {
			var payload analyzePayload
			if decodeErr := llm.DecodeJSON(resp.Text, &payload); decodeErr != nil {
				err = decodeErr
			} else if len(payload.Products) == 0 {
				err = fmt.Errorf("analysis returned no products")
			} else {
				products := make([]discovery.CandidateProduct, 0, len(payload.Products))
				for _, p := range payload.Products {
					name := strings.TrimSpace(p.Name)
					if name == "" {
						continue
					}
					products = append(products, discovery.CandidateProduct{
						Name:           name,
						EstimatedPrice: p.Price,
						Reason:         p.Reason,
					})
				}
				if len(products) > 0 {
					return payload.Analysis, products, resp.Grounding, ""
				}
				err = fmt.Errorf("analysis products all unnamed")
			}
		}
		lastErr = err
		a.logger.Warn("search analysis attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", a.cfg.AnalyzeRetries),
			zap.Error(err),
		)
		if attempt < a.cfg.AnalyzeRetries {
			a.sleep(time.Duration(attempt) * a.cfg.AnalyzeBackoff)
		}
	}

	raw := ""
	if lastErr != nil {
		raw = lastErr.Error()
	}
	return "", nil, nil, raw
}

func (a *Agent) generateLinks(ctx context.Context, products []discovery.CandidateProduct, platform string) ([]discovery.CandidateProduct, *discovery.GroundingMetadata, error) {
	prompt := buildLinkPrompt(products, platform)

	var lastErr error
	for attempt := 1; attempt <= a.cfg.LinkRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("link generation canceled: %w", ctx.Err())
		}
		resp, err := a.llm.Generate(ctx, discovery.GenerateRequest{
			Prompt:   prompt,
			JSONMode: true,
			Timeout:  linkTimeout,
		})
		if err == nil {
			var payload linkPayload
			if decodeErr := llm.DecodeJSON(resp.Text, &payload); decodeErr != nil {
				err = decodeErr
			} else if linked, ok := attachLinks(products, payload); ok {
				return linked, resp.Grounding, nil
			} else {
				err = fmt.Errorf("link payload matched no products")
			}
		}
		lastErr = err
		a.logger.Warn("link generation attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", a.cfg.LinkRetries),
			zap.Error(err),
		)
		if attempt < a.cfg.LinkRetries {
			a.sleep(time.Duration(attempt) * a.cfg.LinkBackoff)
		}
	}
	return nil, nil, fmt.Errorf("link generation failed after %d attempts: %w", a.cfg.LinkRetries, lastErr)
}

// attachLinks maps generated URLs back onto candidates by case-insensitive
// name match. Products the model skipped keep an empty URL set.
func attachLinks(products []discovery.CandidateProduct, payload linkPayload) ([]discovery.CandidateProduct, bool) {
	byName := make(map[string]map[string]string, len(payload.Products))
	for _, p := range payload.Products {
		if len(p.URLs) == 0 {
			continue
		}
		byName[strings.ToLower(strings.TrimSpace(p.Name))] = p.URLs
	}
	if len(byName) == 0 {
		return nil, false
	}

	matched := false
	out := make([]discovery.CandidateProduct, len(products))
	for i, p := range products {
		out[i] = p
		if urls, ok := byName[strings.ToLower(p.Name)]; ok {
			out[i].SearchURLs = urls
			matched = true
		}
	}
	return out, matched
}

func buildAnalyzePrompt(query, description string, budget *float64, limit int) string {
	budgetText := "no limit"
	if budget != nil {
		budgetText = fmt.Sprintf("%.0f VND", *budget)
	}
	var b strings.Builder
	b.WriteString("You are a shopping research assistant with live web search.\n\n")
	fmt.Fprintf(&b, "Product: %s\n", query)
	if description != "" {
		fmt.Fprintf(&b, "Context: %s\n", description)
	}
	fmt.Fprintf(&b, "Budget: %s\n\n", budgetText)
	fmt.Fprintf(&b, `Name up to %d concrete, real, currently-sellable products on Vietnamese
e-commerce marketplaces matching the request. Never invent products; skip
anything you cannot verify exists.

Return a single JSON object:
{"analysis": "market analysis and selection rationale",
"products": [{"name": "full product name", "price": 120000, "reason": "why"}]}`, limit)
	return b.String()
}

func buildLinkPrompt(products []discovery.CandidateProduct, platform string) string {
	var names strings.Builder
	for i, p := range products {
		fmt.Fprintf(&names, "%d. %s\n", i+1, p.Name)
	}

	scope := "all"
	templates := fmt.Sprintf("- shopee: %s\n- lazada: %s\n- tiki: %s",
		fmt.Sprintf(shopeeSearchTemplate, "{query}"),
		fmt.Sprintf(lazadaSearchTemplate, "{query}"),
		fmt.Sprintf(tikiSearchTemplate, "{query}"),
	)
	switch platform {
	case discovery.PlatformShopee:
		scope = "shopee only"
		templates = "- shopee: " + fmt.Sprintf(shopeeSearchTemplate, "{query}")
	case discovery.PlatformLazada:
		scope = "lazada only"
		templates = "- lazada: " + fmt.Sprintf(lazadaSearchTemplate, "{query}")
	case discovery.PlatformTiki:
		scope = "tiki only"
		templates = "- tiki: " + fmt.Sprintf(tikiSearchTemplate, "{query}")
	}

	return fmt.Sprintf(`You build marketplace search URLs for a list of products.

Products:
%s
Platform scope: %s

For each product, derive a short search keyword from its name and fill it
into these exact URL templates (URL-encode the keyword):
%s

Return a single JSON object:
{"products": [{"name": "product name exactly as listed",
"urls": {"lazada": "https://...", "tiki": "https://..."}}]}
Only include platforms in scope.`, names.String(), scope, templates)
}

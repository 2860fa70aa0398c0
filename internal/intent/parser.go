// Package intent turns free-form sourcing requests into structured pipeline
// inputs: a search query, optional filter text, and extracted filter criteria.
package intent

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
	defaultMaxProducts = 20
	minMaxProducts     = 1
	maxMaxProducts     = 100

	parseTimeout = 30 * time.Second
)

// ParsedIntent is the structured form of a user's sourcing request.
type ParsedIntent struct {
	Query       string
	FilterText  string
	MaxProducts int
}

// Parser extracts search intent from natural language with one structured
// LLM call.
type Parser struct {
	llm    discovery.LLMClient
	logger *zap.Logger
}

// NewParser wires the LLM collaborator and logger.
func NewParser(client discovery.LLMClient, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{llm: client, logger: logger}
}

type parsedIntentPayload struct {
	UserQuery   string `json:"user_query"`
	FilterText  string `json:"filter_criteria"`
	MaxProducts any    `json:"max_products"`
}

// Parse extracts (query, filter text, count) from userText, using the project
// for context. A missing count defaults to 20; an out-of-range count is
// clamped into [1,100] rather than failing. A missing query is a parse error.
func (p *Parser) Parse(ctx context.Context, userText string, project discovery.Project) (ParsedIntent, error) {
	prompt := buildIntentPrompt(userText, project)

	resp, err := p.llm.Generate(ctx, discovery.GenerateRequest{
		Prompt:   prompt,
		JSONMode: true,
		Timeout:  parseTimeout,
	})
	if err != nil {
		return ParsedIntent{}, fmt.Errorf("intent generate: %w", err)
	}

	var payload parsedIntentPayload
	if err := llm.DecodeJSON(resp.Text, &payload); err != nil {
		return ParsedIntent{}, fmt.Errorf("intent decode: %w", err)
	}

	query := strings.TrimSpace(payload.UserQuery)
	if query == "" {
		return ParsedIntent{}, fmt.Errorf("no search query found in input")
	}

	count := clampCount(payload.MaxProducts)
	if count != defaultMaxProducts {
		p.logger.Debug("parsed explicit product count", zap.Int("max_products", count))
	}

	return ParsedIntent{
		Query:       query,
		FilterText:  strings.TrimSpace(payload.FilterText),
		MaxProducts: count,
	}, nil
}

// clampCount coerces whatever the model returned into [1,100], defaulting on
// non-numeric values.
func clampCount(raw any) int {
	count := defaultMaxProducts
	switch v := raw.(type) {
	case float64:
		count = int(v)
	case int:
		count = v
	case string:
		var parsed int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &parsed); err == nil {
			count = parsed
		}
	}
	if count < minMaxProducts {
		count = defaultMaxProducts
	}
	if count > maxMaxProducts {
		count = maxMaxProducts
	}
	return count
}

func buildIntentPrompt(userText string, project discovery.Project) string {
	var b strings.Builder
	b.WriteString("You analyze product sourcing requests and extract structured search intent.\n\n")

	b.WriteString("Project context:\n")
	fmt.Fprintf(&b, "- Name: %s\n", project.Name)
	if project.Description != "" {
		fmt.Fprintf(&b, "- Description: %s\n", project.Description)
	}
	fmt.Fprintf(&b, "- Target product: %s\n", project.TargetProductName)
	if project.TargetProductCategory != "" {
		fmt.Fprintf(&b, "- Category: %s\n", project.TargetProductCategory)
	}
	if project.TargetBudget != nil {
		fmt.Fprintf(&b, "- Budget: %.0f %s\n", *project.TargetBudget, project.Currency)
	}

	fmt.Fprintf(&b, "\nUser request:\n%q\n\n", userText)

	b.WriteString(`Extract:
1. user_query: the product search keyword. If the user refers to "the project"
   or "the sample product", use the project's target product name.
2. filter_criteria: the filtering constraints as free text (rating, reviews,
   price, platform, mall, keywords, sales), or null when none are given. When
   the user gives no price constraint, the project budget may be used as a
   maximum price.
3. max_products: the requested number of products; default 20 when absent.

Note: "reviews" (review count) and "sold/purchases" (sales count) are distinct
concepts, keep them separate.

Return a single JSON object:
{"user_query": "...", "filter_criteria": "... or null", "max_products": 20}`)
	return b.String()
}

// Package ranking narrows a filtered listing set down to the user's requested
// count with one LLM selection call, falling back to the first N listings when
// the model cannot be trusted.
package ranking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/salescout/discovery/internal/discovery"
	"github.com/salescout/discovery/internal/llm"
)

const rankTimeout = 60 * time.Second

// Agent runs the ranking call.
type Agent struct {
	llm    discovery.LLMClient
	logger *zap.Logger
}

// NewAgent wires the LLM collaborator and logger.
func NewAgent(client discovery.LLMClient, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{llm: client, logger: logger}
}

// Result carries the ranked subset and the model's analysis text.
type Result struct {
	Selected []discovery.ScrapedListing
	Analysis string
	// Fallback is true when the model call failed or produced an unusable
	// selection and the first-N ordering was used instead.
	Fallback bool
}

type rankPayload struct {
	Analysis    string `json:"analysis"`
	TopProducts []struct {
		Name   string `json:"product_name"`
		URL    string `json:"product_url"`
		Reason string `json:"reason"`
	} `json:"top_products"`
}

// Rank selects up to maxProducts listings. When listings already fit within
// maxProducts the input is returned untouched with no model call. Every model
// failure degrades to the first-N fallback, never to an error: by this stage
// the pipeline has real products and must not lose them to a ranking hiccup.
func (a *Agent) Rank(ctx context.Context, query string, listings []discovery.ScrapedListing, maxProducts int) Result {
	if len(listings) <= maxProducts {
		return Result{Selected: listings}
	}

	resp, err := a.llm.Generate(ctx, discovery.GenerateRequest{
		Prompt:   buildRankPrompt(query, listings, maxProducts),
		JSONMode: true,
		Timeout:  rankTimeout,
	})
	if err != nil {
		a.logger.Warn("ranking call failed, using first-N fallback", zap.Error(err))
		return Result{Selected: listings[:maxProducts], Fallback: true}
	}

	var payload rankPayload
	if err := llm.DecodeJSON(resp.Text, &payload); err != nil {
		a.logger.Warn("ranking response unparseable, using first-N fallback", zap.Error(err))
		return Result{Selected: listings[:maxProducts], Fallback: true}
	}

	selected := matchSelection(listings, payload, maxProducts, a.logger)
	if len(selected) == 0 {
		a.logger.Warn("ranking selection matched no listings, using first-N fallback")
		return Result{Selected: listings[:maxProducts], Analysis: payload.Analysis, Fallback: true}
	}
	return Result{Selected: selected, Analysis: payload.Analysis}
}

// matchSelection maps the model's picks back onto real listings: exact URL
// first, then exact name, then name containment either way. Picks that match
// nothing are dropped and logged; the model is not allowed to invent products.
func matchSelection(listings []discovery.ScrapedListing, payload rankPayload, maxProducts int, logger *zap.Logger) []discovery.ScrapedListing {
	byURL := make(map[string]int, len(listings))
	byName := make(map[string]int, len(listings))
	for i, l := range listings {
		byURL[l.URL] = i
		byName[strings.ToLower(l.Name)] = i
	}

	used := make(map[int]struct{}, maxProducts)
	var selected []discovery.ScrapedListing
	for _, pick := range payload.TopProducts {
		if len(selected) >= maxProducts {
			break
		}
		idx, ok := byURL[strings.TrimSpace(pick.URL)]
		if !ok {
			idx, ok = byName[strings.ToLower(strings.TrimSpace(pick.Name))]
		}
		if !ok {
			idx, ok = fuzzyNameMatch(listings, pick.Name)
		}
		if !ok {
			logger.Warn("ranking pick matched no crawled listing",
				zap.String("product_name", pick.Name),
				zap.String("product_url", pick.URL),
			)
			continue
		}
		if _, dup := used[idx]; dup {
			continue
		}
		used[idx] = struct{}{}
		selected = append(selected, listings[idx])
	}
	return selected
}

func fuzzyNameMatch(listings []discovery.ScrapedListing, name string) (int, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return 0, false
	}
	for i, l := range listings {
		hay := strings.ToLower(l.Name)
		if strings.Contains(hay, needle) || strings.Contains(needle, hay) {
			return i, true
		}
	}
	return 0, false
}

func buildRankPrompt(query string, listings []discovery.ScrapedListing, maxProducts int) string {
	var table strings.Builder
	for i, l := range listings {
		fmt.Fprintf(&table, "%d. %s | %s | price %.0f", i+1, l.Name, l.Platform, l.Price)
		if l.Rating != nil {
			fmt.Fprintf(&table, " | rating %.1f", *l.Rating)
		}
		if l.ReviewCount != nil {
			fmt.Fprintf(&table, " | %d reviews", *l.ReviewCount)
		}
		if l.SalesCount != nil {
			fmt.Fprintf(&table, " | %d sold", *l.SalesCount)
		}
		if l.IsMall {
			table.WriteString(" | mall")
		}
		fmt.Fprintf(&table, " | %s\n", l.URL)
	}

	return fmt.Sprintf(`You rank scraped marketplace products for the search %q.

Products (all already passed the user's filters):
%s
Select the %d best by value for money, seller trustworthiness, and relevance
to the search. Only choose from the list above, copying product_url exactly.

Return a single JSON object:
{"analysis": "ranking rationale",
"top_products": [{"product_name": "...", "product_url": "...", "reason": "..."}]}`,
		query, table.String(), maxProducts)
}

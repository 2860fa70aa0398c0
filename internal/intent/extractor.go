package intent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/salescout/discovery/internal/discovery"
	"github.com/salescout/discovery/internal/llm"
)

// Extractor turns free-text filter constraints into FilterCriteria with one
// schema-constrained LLM call. Unknown fields are dropped by the decoder;
// absent fields stay nil, never invented.
type Extractor struct {
	llm    discovery.LLMClient
	logger *zap.Logger
}

// NewExtractor wires the LLM collaborator and logger.
func NewExtractor(client discovery.LLMClient, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{llm: client, logger: logger}
}

// Extract parses filterText into criteria. Criteria with inverted min/max
// pairs are rejected locally after decoding.
func (e *Extractor) Extract(ctx context.Context, filterText string) (*discovery.FilterCriteria, error) {
	prompt := buildExtractPrompt(filterText)

	resp, err := e.llm.Generate(ctx, discovery.GenerateRequest{
		Prompt:   prompt,
		JSONMode: true,
		Timeout:  parseTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("criteria generate: %w", err)
	}

	var criteria discovery.FilterCriteria
	if err := llm.DecodeJSON(resp.Text, &criteria); err != nil {
		return nil, fmt.Errorf("criteria decode: %w", err)
	}

	if err := criteria.ValidateBounds(); err != nil {
		e.logger.Warn("extracted criteria failed bounds check",
			zap.String("filter_text", filterText),
			zap.Error(err),
		)
		return nil, fmt.Errorf("inconsistent criteria: %w", err)
	}

	return &criteria, nil
}

func buildExtractPrompt(filterText string) string {
	return fmt.Sprintf(`You extract product filter criteria from a shopping request.

User constraints:
%q

Extract only the fields actually present in the text; leave everything else
null. Do not invent values.

Field semantics:
- min_rating / max_rating: rating bounds on a 0-5 scale. "rating 4.0 and up"
  means min_rating 4.0; "rating below 4.5" means max_rating 4.5.
- min_review_count / max_review_count: review-count bounds. Keywords: review,
  rating count. "100+ reviews" means min_review_count 100.
- min_sales_count: units sold floor. Keywords: sold, purchases, sales.
  Reviews and sales are different concepts, never conflate them.
- min_price / max_price: price bounds in VND; normalize shorthand (500k means
  500000). "under 500k" means max_price 500000.
- platforms: any of shopee, lazada, tiki mentioned.
- is_mall: true when the user wants official mall stores only.
- is_verified_seller: true when the user wants verified sellers only.
- required_keywords / excluded_keywords: words that must / must not appear in
  the product name.
- min_trust_score: trust floor on a 0-100 scale.
- trust_badge_types, required_brands, excluded_brands, seller_locations:
  lists, only when explicitly mentioned.

Return a single JSON object with exactly these keys, null where absent:
{"min_rating": null, "max_rating": null, "min_review_count": null,
"max_review_count": null, "min_price": null, "max_price": null,
"min_sales_count": null, "min_trust_score": null, "platforms": null,
"required_keywords": null, "excluded_keywords": null, "required_brands": null,
"excluded_brands": null, "trust_badge_types": null, "seller_locations": null,
"is_mall": null, "is_verified_seller": null}`, filterText)
}

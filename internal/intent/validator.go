package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/salescout/discovery/internal/discovery"
	"github.com/salescout/discovery/internal/llm"
)

// Validator cross-checks extracted criteria against the original filter text
// with an independent LLM call, catching extraction drift such as a silently
// dropped "mall only" requirement.
type Validator struct {
	llm    discovery.LLMClient
	logger *zap.Logger
}

// NewValidator wires the LLM collaborator and logger.
func NewValidator(client discovery.LLMClient, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{llm: client, logger: logger}
}

type validationPayload struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason"`
}

// Validate asks whether criteria still matches the free-text intent. A failed
// call counts as invalid; the pipeline surfaces the criteria for correction
// rather than silently proceeding.
func (v *Validator) Validate(ctx context.Context, filterText string, criteria *discovery.FilterCriteria) (bool, string) {
	criteriaJSON, err := json.MarshalIndent(criteria, "", "  ")
	if err != nil {
		return false, fmt.Sprintf("cannot encode criteria: %v", err)
	}

	prompt := buildValidatePrompt(filterText, string(criteriaJSON))

	resp, err := v.llm.Generate(ctx, discovery.GenerateRequest{
		Prompt:   prompt,
		JSONMode: true,
		Timeout:  parseTimeout,
	})
	if err != nil {
		v.logger.Error("criteria validation call failed", zap.Error(err))
		return false, fmt.Sprintf("could not validate criteria: %v", err)
	}

	var payload validationPayload
	if err := llm.DecodeJSON(resp.Text, &payload); err != nil {
		return false, "could not parse validation response"
	}

	if !payload.IsValid {
		reason := payload.Reason
		if reason == "" {
			reason = "extracted criteria does not match the request"
		}
		return false, reason
	}
	return true, ""
}

// ServiceablePlatforms filters the requested platforms down to those the
// crawl layer can serve. It returns the serviceable subset and the rejected
// remainder; an empty serviceable set with a non-empty request means the run
// should fail fast with platform_not_supported.
func ServiceablePlatforms(requested, excluded []string) (serviceable, rejected []string) {
	excludedSet := make(map[string]struct{}, len(excluded))
	for _, p := range excluded {
		excludedSet[strings.ToLower(p)] = struct{}{}
	}
	for _, p := range requested {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" {
			continue
		}
		if _, banned := excludedSet[name]; banned {
			rejected = append(rejected, name)
		} else {
			serviceable = append(serviceable, name)
		}
	}
	return serviceable, rejected
}

func buildValidatePrompt(filterText, criteriaJSON string) string {
	return fmt.Sprintf(`You check whether extracted filter criteria faithfully reflects a user request.

User request:
%q

Extracted criteria:
%s

Reasonable readings that must NOT be rejected:
- "above X" / "X and up" read as >= X (min_ bound)
- "below X" / "at most X" read as <= X (max_ bound)
- small wording differences with equivalent meaning

Reject only when the criteria is missing something the user clearly asked
for, contradicts the request, or contains an impossible value.

Return a single JSON object:
{"is_valid": true, "reason": "explanation when invalid"}`, filterText, criteriaJSON)
}

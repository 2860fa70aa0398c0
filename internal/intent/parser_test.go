package intent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/salescout/discovery/internal/discovery"
)

type stubLLM struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (s *stubLLM) Generate(_ context.Context, req discovery.GenerateRequest) (discovery.GenerateResponse, error) {
	idx := s.calls
	s.calls++
	s.prompts = append(s.prompts, req.Prompt)
	if idx < len(s.errs) && s.errs[idx] != nil {
		return discovery.GenerateResponse{}, s.errs[idx]
	}
	if idx >= len(s.responses) {
		return discovery.GenerateResponse{}, fmt.Errorf("unexpected call %d", idx)
	}
	return discovery.GenerateResponse{Text: s.responses[idx]}, nil
}

func (s *stubLLM) ModelName() string { return "stub" }

func sampleProject() discovery.Project {
	budget := 500000.0
	return discovery.Project{
		Name:              "Drinkware Q4",
		Description:       "Sourcing insulated drinkware",
		TargetProductName: "thermal tumbler",
		TargetBudget:      &budget,
		Currency:          "VND",
	}
}

// TestParseExtractsIntent covers the happy path including filter text and an
// explicit count.
func TestParseExtractsIntent(t *testing.T) {
	t.Parallel()

	stub := &stubLLM{responses: []string{
		`{"user_query": "thermal tumbler", "filter_criteria": "rating above 4, under 500k", "max_products": 5}`,
	}}
	parser := NewParser(stub, nil)

	parsed, err := parser.Parse(context.Background(), "find tumblers rated above 4 under 500k, 5 of them", sampleProject())
	require.NoError(t, err)
	require.Equal(t, "thermal tumbler", parsed.Query)
	require.Equal(t, "rating above 4, under 500k", parsed.FilterText)
	require.Equal(t, 5, parsed.MaxProducts)
	require.Contains(t, stub.prompts[0], "thermal tumbler", "prompt should carry project context")
}

// TestParseMissingQuery is a parse error, not a silent default.
func TestParseMissingQuery(t *testing.T) {
	t.Parallel()

	stub := &stubLLM{responses: []string{`{"user_query": "", "filter_criteria": null}`}}
	parser := NewParser(stub, nil)

	_, err := parser.Parse(context.Background(), "do something", sampleProject())
	require.Error(t, err)
	require.Contains(t, err.Error(), "no search query")
}

// TestParseTolerantOfFences accepts markdown-fenced model output.
func TestParseTolerantOfFences(t *testing.T) {
	t.Parallel()

	stub := &stubLLM{responses: []string{
		"```json\n{\"user_query\": \"tumbler\", \"filter_criteria\": null, \"max_products\": null}\n```",
	}}
	parser := NewParser(stub, nil)

	parsed, err := parser.Parse(context.Background(), "tumblers please", sampleProject())
	require.NoError(t, err)
	require.Equal(t, "tumbler", parsed.Query)
	require.Equal(t, 20, parsed.MaxProducts)
}

// TestClampCount pins the count normalization rules.
func TestClampCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
		want int
	}{
		{"missing", nil, 20},
		{"float", float64(7), 7},
		{"int", 3, 3},
		{"string", "12", 12},
		{"garbage string", "lots", 20},
		{"zero", float64(0), 20},
		{"negative", float64(-4), 20},
		{"above cap", float64(250), 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, clampCount(tc.in))
		})
	}
}

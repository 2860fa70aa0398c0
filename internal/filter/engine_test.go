package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/salescout/discovery/internal/discovery"
)

func ptr[T any](v T) *T { return &v }

func listing(name string, price float64, mutate ...func(*discovery.ScrapedListing)) discovery.ScrapedListing {
	l := discovery.ScrapedListing{
		Platform: discovery.PlatformLazada,
		Name:     name,
		URL:      "https://www.lazada.vn/products/" + name,
		Price:    price,
	}
	for _, m := range mutate {
		m(&l)
	}
	return l
}

// TestApplyNilCriteriaPassesAll keeps every listing when no filters were
// given.
func TestApplyNilCriteriaPassesAll(t *testing.T) {
	t.Parallel()

	listings := []discovery.ScrapedListing{listing("a", 100), listing("b", 200)}
	passed, verdicts := Apply(listings, nil)
	require.Len(t, passed, 2)
	require.Len(t, verdicts, 2)
	for _, v := range verdicts {
		require.True(t, v.Passed)
	}
}

// TestApplyCollectsAllFailureReasons rejects with every failing reason joined
// by "; ", not just the first.
func TestApplyCollectsAllFailureReasons(t *testing.T) {
	t.Parallel()

	l := listing("cheap knockoff tumbler", 900000, func(l *discovery.ScrapedListing) {
		l.Rating = ptr(3.2)
		l.ReviewCount = ptr(10)
	})
	criteria := &discovery.FilterCriteria{
		MinRating:      ptr(4.0),
		MaxPrice:       ptr(500000.0),
		MinReviewCount: ptr(100),
	}

	passed, verdicts := Apply([]discovery.ScrapedListing{l}, criteria)
	require.Empty(t, passed)
	require.Len(t, verdicts, 1)
	require.False(t, verdicts[0].Passed)
	require.Contains(t, verdicts[0].Reason, "rating 3.2 below 4.0")
	require.Contains(t, verdicts[0].Reason, "price 900000 above 500000")
	require.Contains(t, verdicts[0].Reason, "10 reviews below 100")
	require.Equal(t, 2, strings.Count(verdicts[0].Reason, "; "), "reasons should be ;-joined")
}

// TestApplyMissingFieldFailsBound treats unknown values as failing the bound.
func TestApplyMissingFieldFailsBound(t *testing.T) {
	t.Parallel()

	l := listing("no rating tumbler", 100000)
	criteria := &discovery.FilterCriteria{MinRating: ptr(4.0)}

	passed, verdicts := Apply([]discovery.ScrapedListing{l}, criteria)
	require.Empty(t, passed)
	require.Contains(t, verdicts[0].Reason, "no rating")
}

// TestApplyKeywordAndBrandChecks covers the name and brand constraints.
func TestApplyKeywordAndBrandChecks(t *testing.T) {
	t.Parallel()

	good := listing("Lock&Lock Thermal Tumbler 500ml", 250000, func(l *discovery.ScrapedListing) {
		l.Brand = ptr("Lock&Lock")
	})
	fake := listing("Generic tumbler replica", 50000, func(l *discovery.ScrapedListing) {
		l.Brand = ptr("NoName")
	})
	criteria := &discovery.FilterCriteria{
		RequiredKeywords: []string{"tumbler"},
		ExcludedKeywords: []string{"replica"},
		RequiredBrands:   []string{"Lock&Lock", "Elmich"},
	}

	passed, verdicts := Apply([]discovery.ScrapedListing{good, fake}, criteria)
	require.Len(t, passed, 1)
	require.Equal(t, good.Name, passed[0].Name)
	require.False(t, verdicts[1].Passed)
	require.Contains(t, verdicts[1].Reason, `contains excluded keyword "replica"`)
	require.Contains(t, verdicts[1].Reason, "brand not in")
}

// TestApplyPlatformAndMallConstraints covers platform membership and the
// boolean flags.
func TestApplyPlatformAndMallConstraints(t *testing.T) {
	t.Parallel()

	mall := listing("mall tumbler", 100000, func(l *discovery.ScrapedListing) {
		l.IsMall = true
		l.IsVerifiedSeller = true
	})
	bazaar := listing("bazaar tumbler", 100000, func(l *discovery.ScrapedListing) {
		l.Platform = discovery.PlatformTiki
	})
	criteria := &discovery.FilterCriteria{
		Platforms: []string{discovery.PlatformLazada},
		IsMall:    ptr(true),
	}

	passed, verdicts := Apply([]discovery.ScrapedListing{mall, bazaar}, criteria)
	require.Len(t, passed, 1)
	require.Equal(t, "mall tumbler", passed[0].Name)
	require.Contains(t, verdicts[1].Reason, "platform tiki not in")
	require.Contains(t, verdicts[1].Reason, "not a mall store")
}

// TestApplyPreservesOrder keeps passing listings in their input order.
func TestApplyPreservesOrder(t *testing.T) {
	t.Parallel()

	listings := []discovery.ScrapedListing{
		listing("a", 100),
		listing("b", 999999),
		listing("c", 200),
	}
	criteria := &discovery.FilterCriteria{MaxPrice: ptr(500000.0)}

	passed, _ := Apply(listings, criteria)
	require.Len(t, passed, 2)
	require.Equal(t, "a", passed[0].Name)
	require.Equal(t, "c", passed[1].Name)
}

// TestApplySellerLocationSubstring accepts partial location matches either
// direction.
func TestApplySellerLocationSubstring(t *testing.T) {
	t.Parallel()

	l := listing("local tumbler", 100000, func(l *discovery.ScrapedListing) {
		l.SellerLocation = ptr("TP. Hồ Chí Minh")
	})
	criteria := &discovery.FilterCriteria{SellerLocations: []string{"Hồ Chí Minh"}}

	passed, _ := Apply([]discovery.ScrapedListing{l}, criteria)
	require.Len(t, passed, 1)
}

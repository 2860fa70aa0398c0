package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/salescout/discovery/internal/discovery"
)

// TestParsePrice covers the Vietnamese marketplace price formats.
func TestParsePrice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"120.000₫", 120000, true},
		{"₫95,000", 95000, true},
		{"1.250.000 đ", 1250000, true},
		{"250000", 250000, true},
		{"liên hệ", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParsePrice(tc.in)
			require.Equal(t, tc.ok, ok)
			require.InDelta(t, tc.want, got, 0.001)
		})
	}
}

// TestParseCount covers shorthand sold/review counters.
func TestParseCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"857", 857, true},
		{"1.2k", 1200, true},
		{"3,4k", 3400, true},
		{"15k+", 15000, true},
		{"2.1tr", 2100000, true},
		{"Đã bán 1.2k", 1200, true},
		{"1.234", 1234, true},
		{"n/a", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseCount(tc.in)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

// TestDetectPlatform maps URLs to marketplace names by substring.
func TestDetectPlatform(t *testing.T) {
	t.Parallel()

	require.Equal(t, discovery.PlatformLazada, DetectPlatform("https://www.lazada.vn/catalog/?q=tumbler"))
	require.Equal(t, discovery.PlatformTiki, DetectPlatform("https://tiki.vn/search?q=tumbler"))
	require.Equal(t, discovery.PlatformShopee, DetectPlatform("https://shopee.vn/search?keyword=tumbler"))
	require.Empty(t, DetectPlatform("https://example.com/search"))
}

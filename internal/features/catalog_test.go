package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogShape(t *testing.T) {
	names := Names()
	require.Len(t, names, TotalFeatures)
	assert.Equal(t, TotalFeatures, FeatureCount())

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		assert.False(t, seen[n], "duplicate feature name %q", n)
		seen[n] = true
	}
}

func TestCatalogCategorySizes(t *testing.T) {
	want := map[string]int{
		"competition":  14,
		"price":        30,
		"timing":       16,
		"relationship": 19,
		"procedural":   16,
		"document":     9,
		"historical":   9,
	}

	cats := Categories()
	require.Len(t, cats, len(want))

	total := 0
	for name, size := range want {
		require.Contains(t, cats, name)
		assert.Len(t, cats[name], size, "category %s", name)
		total += size
	}
	assert.Equal(t, TotalFeatures, total)
}

func TestCatalogOrderMatchesCategories(t *testing.T) {
	order := CategoryOrder()
	require.Equal(t, []string{
		"competition", "price", "timing", "relationship",
		"procedural", "document", "historical",
	}, order)

	cats := Categories()
	var flat []string
	for _, c := range order {
		flat = append(flat, cats[c]...)
	}
	assert.Equal(t, Names(), flat)
}

func TestCatalogContainsCoreFeatures(t *testing.T) {
	names := Names()
	for _, want := range []string{
		"single_bidder",
		"price_exact_match_estimate",
		"deadline_very_short",
		"winner_win_rate_at_institution",
		"bidder_clustering_score",
		"extraction_success_rate",
		"institution_month_spike_ratio",
	} {
		assert.Contains(t, names, want)
	}
}

func TestNamesReturnsCopy(t *testing.T) {
	a := Names()
	a[0] = "mutated"
	assert.NotEqual(t, a[0], Names()[0])
}

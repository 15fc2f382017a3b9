// Package features turns raw tender records into fixed-shape numeric feature
// vectors for model consumption. The catalog below is the single source of
// truth for feature names and order: every vector carries exactly these
// names, in exactly this order, for every tender and every run.
package features

import "fmt"

// EngineVersion identifies the feature schema. Bump it whenever the catalog
// changes so cached vectors are invalidated.
const EngineVersion = "1.0.0"

// TotalFeatures is the fixed vector length.
const TotalFeatures = 113

// SentinelRatio marks ratios whose denominator is missing or zero. Counts,
// rates and indicators default to 0 instead; signed ratios (deviations,
// z-scores) default to 0 with a separate has_* indicator carrying presence.
const SentinelRatio = -1.0

// category pairs a category name with its ordered feature names.
type category struct {
	name  string
	names []string
}

// categories lists the seven feature categories in vector order.
var categories = []category{
	{name: "competition", names: competitionNames},
	{name: "price", names: priceNames},
	{name: "timing", names: timingNames},
	{name: "relationship", names: relationshipNames},
	{name: "procedural", names: proceduralNames},
	{name: "document", names: documentNames},
	{name: "historical", names: historicalNames},
}

// featureNames is the flattened catalog, built once at init.
var featureNames = buildNames()

func buildNames() []string {
	names := make([]string, 0, TotalFeatures)
	seen := make(map[string]bool, TotalFeatures)
	for _, c := range categories {
		for _, n := range c.names {
			if seen[n] {
				panic(fmt.Sprintf("features: duplicate feature name %q", n))
			}
			seen[n] = true
			names = append(names, n)
		}
	}
	if len(names) != TotalFeatures {
		panic(fmt.Sprintf("features: catalog has %d names, want %d", len(names), TotalFeatures))
	}
	return names
}

// FeatureCount returns the fixed vector length.
func FeatureCount() int {
	return TotalFeatures
}

// Names returns a copy of the full ordered feature name list.
func Names() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

// Categories returns the per-category name lists, for explainability tooling.
func Categories() map[string][]string {
	out := make(map[string][]string, len(categories))
	for _, c := range categories {
		names := make([]string, len(c.names))
		copy(names, c.names)
		out[c.name] = names
	}
	return out
}

// CategoryOrder returns the category names in vector order.
func CategoryOrder() []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = c.name
	}
	return out
}

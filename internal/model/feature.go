package model

import "time"

// FeatureVector is a fixed-shape numeric snapshot of one tender, suitable as
// model input. Names and Values are parallel slices with identical order for
// every tender and every run of the same engine version. It is a derived,
// recomputable artifact; the store remains the source of truth.
type FeatureVector struct {
	TenderID      string    `json:"tender_id"`
	EngineVersion string    `json:"engine_version"`
	Names         []string  `json:"names"`
	Values        []float64 `json:"values"`

	// Metadata for explainability tooling and reports.
	Title       string    `json:"title"`
	Institution string    `json:"institution"`
	Winner      string    `json:"winner,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Get returns the value for a named feature and whether it exists.
func (v *FeatureVector) Get(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Len returns the number of features in the vector.
func (v *FeatureVector) Len() int {
	return len(v.Values)
}

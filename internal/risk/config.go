// Package risk derives composite 0-100 risk scores from active corruption
// flags. The severity weight table and the score-to-level boundaries are
// configuration, not code, so the mapping can be tuned and tested on its own.
package risk

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/procurewatch/riskengine/internal/model"
)

// Weights maps flag severities to score contributions and defines the
// score-to-level bucket boundaries. A tender's score is the sum of the
// weights of its active flags, capped at 100.
type Weights struct {
	// Per-severity score contribution.
	Low      int `yaml:"low"`
	Medium   int `yaml:"medium"`
	High     int `yaml:"high"`
	Critical int `yaml:"critical"`

	// Inclusive lower bounds per level. Scores below LowMin are minimal.
	Buckets Buckets `yaml:"buckets"`
}

// Buckets holds the inclusive lower bound of each risk level.
type Buckets struct {
	LowMin      int `yaml:"low_min"`
	MediumMin   int `yaml:"medium_min"`
	HighMin     int `yaml:"high_min"`
	CriticalMin int `yaml:"critical_min"`
}

// DefaultWeights returns the shipped severity-to-score mapping.
func DefaultWeights() Weights {
	return Weights{
		Low:      10,
		Medium:   25,
		High:     40,
		Critical: 60,
		Buckets: Buckets{
			LowMin:      20,
			MediumMin:   40,
			HighMin:     60,
			CriticalMin: 80,
		},
	}
}

// Weight returns the score contribution for one severity. Unknown severities
// contribute the low weight, so an unexpected rule-engine value still counts
// rather than vanishing.
func (w Weights) Weight(s model.Severity) int {
	switch s {
	case model.SeverityLow:
		return w.Low
	case model.SeverityMedium:
		return w.Medium
	case model.SeverityHigh:
		return w.High
	case model.SeverityCritical:
		return w.Critical
	default:
		return w.Low
	}
}

// Level buckets a score into a risk level.
func (w Weights) Level(score int) model.RiskLevel {
	b := w.Buckets
	switch {
	case score >= b.CriticalMin:
		return model.RiskLevelCritical
	case score >= b.HighMin:
		return model.RiskLevelHigh
	case score >= b.MediumMin:
		return model.RiskLevelMedium
	case score >= b.LowMin:
		return model.RiskLevelLow
	default:
		return model.RiskLevelMinimal
	}
}

// Validate checks that the table is internally consistent. A bad table is a
// startup failure, never a per-call one.
func (w Weights) Validate() error {
	var errs []string

	weights := map[string]int{
		"low":      w.Low,
		"medium":   w.Medium,
		"high":     w.High,
		"critical": w.Critical,
	}
	for name, v := range weights {
		if v <= 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be > 0", name))
		}
	}

	// Higher severities must never contribute less than lower ones, or the
	// score would not be monotonic in severity.
	if w.Medium < w.Low {
		errs = append(errs, "medium weight must be >= low")
	}
	if w.High < w.Medium {
		errs = append(errs, "high weight must be >= medium")
	}
	if w.Critical < w.High {
		errs = append(errs, "critical weight must be >= high")
	}

	b := w.Buckets
	bounds := map[string]int{
		"low_min":      b.LowMin,
		"medium_min":   b.MediumMin,
		"high_min":     b.HighMin,
		"critical_min": b.CriticalMin,
	}
	for name, v := range bounds {
		if v < 1 || v > 100 {
			errs = append(errs, fmt.Sprintf("%s must be between 1 and 100", name))
		}
	}
	if !(b.LowMin < b.MediumMin && b.MediumMin < b.HighMin && b.HighMin < b.CriticalMin) {
		errs = append(errs, "bucket bounds must be strictly increasing")
	}

	if len(errs) > 0 {
		return eris.Errorf("risk: weight table validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadWeights reads a weight table from a YAML file and validates it. An
// empty path returns the defaults.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	if path == "" {
		if err := w.Validate(); err != nil {
			return Weights{}, err
		}
		return w, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrapf(err, "risk: read weights file %s", path)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, eris.Wrapf(err, "risk: parse weights file %s", path)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

package verification

import (
	"errors"
	"fmt"
	"math"
)

// Policy is the immutable configuration of the engine. The zero value is not
// usable; start from DefaultPolicy and override what the deployment needs.
type Policy struct {
	NameThreshold    float64 `yaml:"name_threshold" json:"nameThreshold"`
	AddressThreshold float64 `yaml:"address_threshold" json:"addressThreshold"`

	// CriticalPenalty is subtracted from 100 per CRITICAL cross-document finding.
	CriticalPenalty float64 `yaml:"critical_penalty" json:"criticalPenalty"`
	// CriticalCeiling caps the cross-document confidence whenever at least one
	// CRITICAL finding exists. Must stay below MinCrossConfidence and 70.
	CriticalCeiling float64 `yaml:"critical_ceiling" json:"criticalCeiling"`

	MinAge int `yaml:"min_age" json:"minAge"`
	MaxAge int `yaml:"max_age" json:"maxAge"`

	// MinPresentFields is how many fields with trimmed length > 2 a document needs.
	MinPresentFields    int     `yaml:"min_present_fields" json:"minPresentFields"`
	ComplianceThreshold float64 `yaml:"compliance_threshold" json:"complianceThreshold"`

	IndividualWeight float64 `yaml:"individual_weight" json:"individualWeight"`
	CrossWeight      float64 `yaml:"cross_weight" json:"crossWeight"`

	MinDocumentConfidence float64 `yaml:"min_document_confidence" json:"minDocumentConfidence"`
	MinAverageConfidence  float64 `yaml:"min_average_confidence" json:"minAverageConfidence"`
	MinCrossConfidence    float64 `yaml:"min_cross_confidence" json:"minCrossConfidence"`
	MinFinalConfidence    float64 `yaml:"min_final_confidence" json:"minFinalConfidence"`

	PlaceholderTokens []string `yaml:"placeholder_tokens" json:"placeholderTokens"`

	// ParallelPairThreshold is the number of comparison pairs above which
	// pairwise similarity is fanned out across goroutines.
	ParallelPairThreshold int `yaml:"parallel_pair_threshold" json:"parallelPairThreshold"`
}

// criticalCap is the hard upper bound for cross-document confidence while any
// CRITICAL finding exists, independent of configuration.
const criticalCap = 70.0

// DefaultPolicy returns the graded thresholds used by both the UI and the API.
func DefaultPolicy() Policy {
	return Policy{
		NameThreshold:         0.95,
		AddressThreshold:      0.85,
		CriticalPenalty:       35,
		CriticalCeiling:       65,
		MinAge:                18,
		MaxAge:                120,
		MinPresentFields:      2,
		ComplianceThreshold:   0.75,
		IndividualWeight:      0.4,
		CrossWeight:           0.6,
		MinDocumentConfidence: 60,
		MinAverageConfidence:  65,
		MinCrossConfidence:    70,
		MinFinalConfidence:    65,
		PlaceholderTokens:     []string{"test", "sample", "demo", "fake", "lorem ipsum"},
		ParallelPairThreshold: 64,
	}
}

// Validate rejects policies that would let the engine break its invariants.
func (p Policy) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(inUnit(p.NameThreshold), "name_threshold %v outside [0,1]", p.NameThreshold)
	check(inUnit(p.AddressThreshold), "address_threshold %v outside [0,1]", p.AddressThreshold)
	check(inUnit(p.ComplianceThreshold), "compliance_threshold %v outside [0,1]", p.ComplianceThreshold)
	check(p.CriticalPenalty > 0, "critical_penalty must be positive")
	check(p.CriticalCeiling >= 0 && p.CriticalCeiling < min(p.MinCrossConfidence, criticalCap),
		"critical_ceiling %v must be in [0, min(min_cross_confidence, %v))", p.CriticalCeiling, criticalCap)
	check(p.MinAge >= 0 && p.MinAge < p.MaxAge, "age bounds [%d,%d] invalid", p.MinAge, p.MaxAge)
	check(p.MinPresentFields >= 0, "min_present_fields must not be negative")
	check(p.IndividualWeight >= 0 && p.CrossWeight >= 0 &&
		math.Abs(p.IndividualWeight+p.CrossWeight-1) < 1e-9,
		"individual_weight + cross_weight must equal 1")
	for _, v := range []float64{p.MinDocumentConfidence, p.MinAverageConfidence, p.MinCrossConfidence, p.MinFinalConfidence} {
		check(v >= 0 && v <= 100, "confidence threshold %v outside [0,100]", v)
	}

	return errors.Join(errs...)
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

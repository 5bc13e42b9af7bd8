package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicyValid(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Policy)
		want   string
	}{
		{"ceiling at cross threshold", func(p *Policy) { p.CriticalCeiling = 70 }, "critical_ceiling"},
		{"ceiling above hard cap", func(p *Policy) { p.MinCrossConfidence = 90; p.CriticalCeiling = 75 }, "critical_ceiling"},
		{"weights do not sum to one", func(p *Policy) { p.CrossWeight = 0.5 }, "individual_weight + cross_weight"},
		{"name threshold above one", func(p *Policy) { p.NameThreshold = 1.2 }, "name_threshold"},
		{"inverted age bounds", func(p *Policy) { p.MinAge = 130 }, "age bounds"},
		{"zero penalty", func(p *Policy) { p.CriticalPenalty = 0 }, "critical_penalty"},
		{"final threshold over 100", func(p *Policy) { p.MinFinalConfidence = 101 }, "confidence threshold"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultPolicy()
			tc.mutate(&p)
			assert.ErrorContains(t, p.Validate(), tc.want)
		})
	}
}

func TestPolicyValidateReportsEveryProblem(t *testing.T) {
	p := DefaultPolicy()
	p.NameThreshold = -1
	p.AddressThreshold = 2

	err := p.Validate()

	assert.ErrorContains(t, err, "name_threshold")
	assert.ErrorContains(t, err, "address_threshold")
}

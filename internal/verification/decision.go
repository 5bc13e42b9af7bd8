package verification

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Required actions surfaced to the reviewer UI verbatim.
const (
	ActionReviewDocumentQuality = "review individual document quality"
	ActionReviewConsistency     = "review identity consistency"
	ActionRequestDocuments      = "request additional documents"
	ActionReviewTampering       = "manual review: possible document tampering"
	ActionReviewCompliance      = "review document compliance"
)

// Decision is the aggregated outcome before it is folded into a Verdict.
type Decision struct {
	AverageConfidence float64  `json:"averageConfidence"`
	FinalConfidence   float64  `json:"finalConfidence"`
	Approved          bool     `json:"approved"`
	ManualReview      bool     `json:"manualReview"`
	Reason            string   `json:"reason"`
	RequiredActions   []string `json:"requiredActions"`
}

// Aggregate combines per-document confidences, the cross-document report
// and per-document compliance into one decision. It is pure.
//
// Confidences are summed as decimals so the mean does not depend on input
// order; the final score is rounded to one decimal place here and nowhere else.
func Aggregate(confidences []float64, cross ConsistencyReport, compliance []DocumentCompliance, policy Policy) Decision {
	if len(confidences) == 0 {
		return Decision{
			Reason:          "no documents supplied",
			RequiredActions: []string{ActionRequestDocuments},
		}
	}

	sum := decimal.Zero
	allDocsConfident := true
	for _, c := range confidences {
		sum = sum.Add(decimal.NewFromFloat(c))
		if c < policy.MinDocumentConfidence {
			allDocsConfident = false
		}
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(confidences))))
	crossConf := decimal.NewFromFloat(cross.Confidence)
	final := avg.Mul(decimal.NewFromFloat(policy.IndividualWeight)).
		Add(crossConf.Mul(decimal.NewFromFloat(policy.CrossWeight))).
		Round(1)

	var criticals, complianceFindings []Finding
	for _, f := range cross.Inconsistencies {
		if f.IsCritical() {
			criticals = append(criticals, f)
		}
	}
	tampering, complianceFailed := false, false
	for _, dc := range compliance {
		if !dc.Passed {
			complianceFailed = true
		}
		for _, f := range dc.Findings {
			complianceFindings = append(complianceFindings, f)
			if f.IsCritical() {
				criticals = append(criticals, f)
			}
			if f.Kind == IssueTamperingSuspected {
				tampering = true
			}
		}
	}

	qualityOK := allDocsConfident || avg.GreaterThanOrEqual(decimal.NewFromFloat(policy.MinAverageConfidence))
	crossOK := cross.Confidence >= policy.MinCrossConfidence
	finalOK := final.GreaterThanOrEqual(decimal.NewFromFloat(policy.MinFinalConfidence))

	d := Decision{
		AverageConfidence: avg.Round(1).InexactFloat64(),
		FinalConfidence:   final.InexactFloat64(),
		Approved:          qualityOK && crossOK && finalOK && len(criticals) == 0,
		ManualReview:      tampering,
	}

	var reasons, actions []string
	if !qualityOK {
		reasons = append(reasons, fmt.Sprintf("document confidence below %v and average %s below %v",
			policy.MinDocumentConfidence, avg.StringFixed(1), policy.MinAverageConfidence))
		actions = append(actions, ActionReviewDocumentQuality)
	}
	if !crossOK {
		reasons = append(reasons, fmt.Sprintf("cross-document confidence %s below %v",
			crossConf.StringFixed(1), policy.MinCrossConfidence))
		actions = append(actions, ActionReviewConsistency)
	}
	if !finalOK {
		reasons = append(reasons, fmt.Sprintf("final confidence %s below %v",
			final.StringFixed(1), policy.MinFinalConfidence))
	}
	if len(criticals) > 0 {
		msgs := make([]string, len(criticals))
		for i, f := range criticals {
			msgs[i] = f.Message
		}
		reasons = append(reasons, "critical issues: "+strings.Join(msgs, ", "))
	}

	for _, f := range cross.Inconsistencies {
		switch f.Kind {
		case IssueFieldMismatch:
			actions = append(actions, ActionReviewConsistency)
		case IssueMissingField:
			actions = append(actions, ActionRequestDocuments)
		}
	}
	if len(confidences) < 2 {
		actions = append(actions, ActionRequestDocuments)
	}
	if tampering {
		actions = append(actions, ActionReviewTampering)
	}
	for _, f := range complianceFindings {
		if f.IsCritical() {
			complianceFailed = true
		}
	}
	if complianceFailed {
		actions = append(actions, ActionReviewCompliance)
	}

	if d.Approved {
		d.Reason = "all checks passed"
	} else {
		d.Reason = strings.Join(reasons, "; ")
	}
	d.RequiredActions = dedupe(actions)
	return d
}

// dedupe keeps the first occurrence of each entry, preserving order.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

package verification

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// FieldComparison is one pairwise comparison of a field between two documents.
type FieldComparison struct {
	FieldName  string       `json:"fieldName"`
	ValueA     string       `json:"valueA"`
	ValueB     string       `json:"valueB"`
	SourceA    DocumentType `json:"sourceA"`
	SourceB    DocumentType `json:"sourceB"`
	Similarity float64      `json:"similarity"`
	Consistent bool         `json:"consistent"`
}

// ConsistencyReport is the cross-document half of a verdict.
type ConsistencyReport struct {
	Consistent      bool              `json:"consistent"`
	Confidence      float64           `json:"confidence"`
	Inconsistencies []Finding         `json:"inconsistencies"`
	Notes           []Finding         `json:"notes"`
	MatchingFields  []string          `json:"matchingFields"`
	Comparisons     []FieldComparison `json:"comparisons"`
}

type fieldRule struct {
	field     string
	mandatory bool
	compare   bool
	exact     bool
	threshold float64
	label     string
}

func (p Policy) fieldRules() []fieldRule {
	return []fieldRule{
		{field: FieldName, mandatory: true, compare: true, threshold: p.NameThreshold, label: "name"},
		{field: FieldDateOfBirth, mandatory: true, compare: true, exact: true, label: "DOB"},
		{field: FieldAddress, mandatory: true, compare: true, threshold: p.AddressThreshold, label: "address"},
		// ID numbers use type-specific formats and are validated per document only.
		{field: FieldIDNumber, label: "id number"},
	}
}

// EvaluateConsistency normalizes every document and compares fields across them.
func EvaluateConsistency(docs []ExtractedDocument, policy Policy) ConsistencyReport {
	normalized := make([][]NormalizedField, len(docs))
	for i, d := range docs {
		normalized[i] = normalizeDocument(d)
	}
	return evaluateConsistency(normalized, policy)
}

func evaluateConsistency(normalized [][]NormalizedField, policy Policy) ConsistencyReport {
	report := ConsistencyReport{
		Inconsistencies: []Finding{},
		Notes:           []Finding{},
		MatchingFields:  []string{},
		Comparisons:     []FieldComparison{},
	}

	for _, rule := range policy.fieldRules() {
		values := collectValues(normalized, rule.field)

		switch {
		case len(values) == 0:
			if rule.mandatory {
				report.Inconsistencies = append(report.Inconsistencies, Finding{
					Field:    rule.field,
					Kind:     IssueMissingField,
					Severity: SeverityCritical,
					Message:  fmt.Sprintf("%s missing from every document", rule.label),
				})
			}
			continue
		case !rule.compare:
			continue
		case len(values) == 1:
			report.Notes = append(report.Notes, Finding{
				Field:    rule.field,
				Kind:     IssueSingleSource,
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("%s found in one document, cannot cross-validate", rule.label),
				Values:   values,
			})
			continue
		}

		comparisons := comparePairs(rule, values, policy.ParallelPairThreshold)
		report.Comparisons = append(report.Comparisons, comparisons...)

		if allConsistent(comparisons) {
			report.MatchingFields = append(report.MatchingFields, rule.field)
			continue
		}
		report.Inconsistencies = append(report.Inconsistencies, Finding{
			Field:    rule.field,
			Kind:     IssueFieldMismatch,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%s mismatch: %s", rule.label, describeValues(values)),
			Values:   values,
		})
	}

	criticals := countCritical(report.Inconsistencies)
	report.Consistent = criticals == 0
	report.Confidence = crossConfidence(criticals, policy)
	return report
}

// crossConfidence is 100 minus a fixed penalty per CRITICAL finding, floored
// at zero and capped at the policy ceiling whenever any CRITICAL exists.
func crossConfidence(criticals int, policy Policy) float64 {
	if criticals == 0 {
		return 100
	}
	conf := 100 - policy.CriticalPenalty*float64(criticals)
	if conf < 0 {
		conf = 0
	}
	return min(conf, policy.CriticalCeiling)
}

func collectValues(normalized [][]NormalizedField, field string) []SourcedValue {
	var values []SourcedValue
	for i, fields := range normalized {
		for _, f := range fields {
			if f.FieldName == field && f.CanonicalValue != "" {
				values = append(values, SourcedValue{
					Value:         f.CanonicalValue,
					DocumentType:  f.SourceDocumentType,
					DocumentIndex: i,
				})
			}
		}
	}
	return values
}

// comparePairs compares every unordered pair of values. Results keep pair
// order (i<j, row-major) whether or not the work is fanned out.
func comparePairs(rule fieldRule, values []SourcedValue, parallelThreshold int) []FieldComparison {
	type pair struct{ a, b int }
	pairs := make([]pair, 0, len(values)*(len(values)-1)/2)
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			pairs = append(pairs, pair{i, j})
		}
	}

	out := make([]FieldComparison, len(pairs))
	compare := func(k int) {
		a, b := values[pairs[k].a], values[pairs[k].b]
		sim := Similarity(a.Value, b.Value)
		consistent := meetsThreshold(sim, rule.threshold)
		if rule.exact {
			consistent = a.Value == b.Value
		}
		out[k] = FieldComparison{
			FieldName:  rule.field,
			ValueA:     a.Value,
			ValueB:     b.Value,
			SourceA:    a.DocumentType,
			SourceB:    b.DocumentType,
			Similarity: sim,
			Consistent: consistent,
		}
	}

	if parallelThreshold <= 0 || len(pairs) <= parallelThreshold {
		for k := range pairs {
			compare(k)
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k := range pairs {
		g.Go(func() error {
			compare(k)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func allConsistent(comparisons []FieldComparison) bool {
	for _, c := range comparisons {
		if !c.Consistent {
			return false
		}
	}
	return true
}

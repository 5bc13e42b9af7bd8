package verification

import (
	"fmt"
	"time"
)

// DocumentReport is the per-document section of a verdict.
type DocumentReport struct {
	Index            int                `json:"index"`
	DocumentType     DocumentType       `json:"documentType"`
	SourceConfidence float64            `json:"sourceConfidence"`
	Normalized       []NormalizedField  `json:"normalized"`
	Compliance       DocumentCompliance `json:"compliance"`
}

// ComplianceSummary rolls the per-document compliance results up.
type ComplianceSummary struct {
	Passed           bool      `json:"passed"`
	DocumentsPassed  int       `json:"documentsPassed"`
	DocumentsChecked int       `json:"documentsChecked"`
	Findings         []Finding `json:"findings"`
}

// Verdict is the complete, explainable result of one verification. It
// carries no timestamps so identical input yields identical bytes.
type Verdict struct {
	PerDocument       []DocumentReport  `json:"perDocument"`
	CrossDocument     ConsistencyReport `json:"crossDocument"`
	Compliance        ComplianceSummary `json:"compliance"`
	AverageConfidence float64           `json:"averageConfidence"`
	FinalConfidence   float64           `json:"finalConfidence"`
	Approved          bool              `json:"approved"`
	ManualReview      bool              `json:"manualReview"`
	Reason            string            `json:"reason"`
	RequiredActions   []string          `json:"requiredActions"`
}

// Findings returns every cross-document and compliance finding.
func (v *Verdict) Findings() []Finding {
	out := make([]Finding, 0, len(v.CrossDocument.Inconsistencies)+len(v.CrossDocument.Notes)+len(v.Compliance.Findings))
	out = append(out, v.CrossDocument.Inconsistencies...)
	out = append(out, v.CrossDocument.Notes...)
	out = append(out, v.Compliance.Findings...)
	return out
}

// CriticalCount is the number of findings that block approval.
func (v *Verdict) CriticalCount() int {
	return countCritical(v.Findings())
}

// Recorder observes completed evaluations. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveVerdict(v *Verdict, elapsed time.Duration)
}

// Engine evaluates document sets under one immutable policy. It holds no
// per-call state and may be shared across goroutines.
type Engine struct {
	policy     Policy
	clock      Clock
	recorder   Recorder
	compliance *ComplianceChecker
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy replaces the default policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithClock injects the time source used by the age rule.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine builds an engine, rejecting policies that break invariants.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{policy: DefaultPolicy(), clock: SystemClock{}}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	e.compliance = NewComplianceChecker(e.policy, e.clock)
	return e, nil
}

// Policy returns the policy the engine was built with.
func (e *Engine) Policy() Policy { return e.policy }

// Evaluate runs normalization, cross-document consistency, per-document
// compliance and aggregation. The only error is malformed input.
func (e *Engine) Evaluate(docs []ExtractedDocument) (*Verdict, error) {
	if err := ValidateDocuments(docs); err != nil {
		return nil, err
	}

	var started time.Time
	if e.recorder != nil {
		started = time.Now()
	}

	verdict := e.evaluate(docs)

	if e.recorder != nil {
		e.recorder.ObserveVerdict(verdict, time.Since(started))
	}
	return verdict, nil
}

func (e *Engine) evaluate(docs []ExtractedDocument) *Verdict {
	if len(docs) == 0 {
		return e.emptyVerdict()
	}

	normalized := make([][]NormalizedField, len(docs))
	reports := make([]DocumentReport, len(docs))
	compliance := make([]DocumentCompliance, len(docs))
	confidences := make([]float64, len(docs))
	for i, d := range docs {
		normalized[i] = normalizeDocument(d)
		compliance[i] = e.compliance.Check(d, i)
		confidences[i] = d.SourceConfidence
		reports[i] = DocumentReport{
			Index:            i,
			DocumentType:     d.DocumentType.Canonical(),
			SourceConfidence: d.SourceConfidence,
			Normalized:       normalized[i],
			Compliance:       compliance[i],
		}
	}

	cross := evaluateConsistency(normalized, e.policy)
	if len(docs) == 1 {
		cross.Notes = append(cross.Notes, Finding{
			Kind:     IssueSingleSource,
			Severity: SeverityInfo,
			Message:  "only one document supplied, need more documents to cross-validate identity",
		})
	}

	summary := ComplianceSummary{
		Passed:           true,
		DocumentsChecked: len(docs),
		Findings:         []Finding{},
	}
	for _, dc := range compliance {
		if dc.Passed {
			summary.DocumentsPassed++
		} else {
			summary.Passed = false
		}
		summary.Findings = append(summary.Findings, dc.Findings...)
	}

	decision := Aggregate(confidences, cross, compliance, e.policy)
	return &Verdict{
		PerDocument:       reports,
		CrossDocument:     cross,
		Compliance:        summary,
		AverageConfidence: decision.AverageConfidence,
		FinalConfidence:   decision.FinalConfidence,
		Approved:          decision.Approved,
		ManualReview:      decision.ManualReview,
		Reason:            decision.Reason,
		RequiredActions:   decision.RequiredActions,
	}
}

// emptyVerdict short-circuits an empty document set without running any
// comparison: every mandatory field is missing and nothing is approved.
func (e *Engine) emptyVerdict() *Verdict {
	missing := make([]Finding, 0, len(MandatoryFields))
	for _, f := range MandatoryFields {
		missing = append(missing, Finding{
			Field:    f,
			Kind:     IssueMissingField,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%s missing: no documents supplied", f),
		})
	}
	decision := Aggregate(nil, ConsistencyReport{}, nil, e.policy)
	return &Verdict{
		PerDocument: []DocumentReport{},
		CrossDocument: ConsistencyReport{
			Inconsistencies: missing,
			Notes:           []Finding{},
			MatchingFields:  []string{},
			Comparisons:     []FieldComparison{},
		},
		Compliance:      ComplianceSummary{Findings: []Finding{}},
		Reason:          decision.Reason,
		RequiredActions: decision.RequiredActions,
	}
}

var defaultEngine, _ = NewEngine()

// Evaluate runs the default engine: DefaultPolicy and the system clock.
func Evaluate(docs []ExtractedDocument) (*Verdict, error) {
	return defaultEngine.Evaluate(docs)
}

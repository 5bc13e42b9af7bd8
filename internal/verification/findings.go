package verification

import (
	"fmt"
	"strings"
)

// Severity ranks how a finding affects the decision.
type Severity string

const (
	// SeverityCritical blocks approval outright.
	SeverityCritical Severity = "CRITICAL"
	// SeverityWarning is surfaced for manual review but never rejects on its own.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo is context only.
	SeverityInfo Severity = "INFO"
)

// IssueKind classifies a finding. InputMalformed is deliberately absent:
// it is returned as an error, never recorded in a verdict.
type IssueKind string

const (
	IssueMissingField       IssueKind = "MissingField"
	IssueFieldMismatch      IssueKind = "FieldMismatch"
	IssueInvalidFormat      IssueKind = "InvalidFormat"
	IssueAgeOutOfRange      IssueKind = "AgeOutOfRange"
	IssueTamperingSuspected IssueKind = "TamperingSuspected"
	IssueSingleSource       IssueKind = "SingleSource"
)

// SourcedValue is a canonical value together with where it was read.
type SourcedValue struct {
	Value         string       `json:"value"`
	DocumentType  DocumentType `json:"documentType"`
	DocumentIndex int          `json:"documentIndex"`
}

func (v SourcedValue) String() string {
	return fmt.Sprintf("%q (%s)", v.Value, v.DocumentType)
}

// Finding is one explainable outcome of a consistency or compliance check.
type Finding struct {
	Field    string         `json:"field,omitempty"`
	Kind     IssueKind      `json:"kind"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Values   []SourcedValue `json:"values,omitempty"`
}

// IsCritical reports whether the finding blocks approval.
func (f Finding) IsCritical() bool { return f.Severity == SeverityCritical }

func countCritical(findings []Finding) int {
	n := 0
	for _, f := range findings {
		if f.IsCritical() {
			n++
		}
	}
	return n
}

func describeValues(values []SourcedValue) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return strings.Join(parts, " vs ")
}

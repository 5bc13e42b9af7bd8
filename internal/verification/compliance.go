package verification

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Check names reported in ComplianceCheckResult.
const (
	CheckAge       = "age"
	CheckIDFormat  = "id_format"
	CheckTampering = "tampering"
	CheckPresence  = "presence"
)

// idFormats maps a document type to the pattern its normalized ID number
// must satisfy. Types not listed here skip the ID format rule.
var idFormats = map[DocumentType]*regexp.Regexp{
	DocumentAadhaar:        regexp.MustCompile(`^\d{4}-?\d{4}-?\d{4}$`),
	DocumentPAN:            regexp.MustCompile(`^[A-Z]{5}\d{4}[A-Z]$`),
	DocumentPassport:       regexp.MustCompile(`^[A-Z][0-9]{7}$`),
	DocumentVoterID:        regexp.MustCompile(`^[A-Z]{3}[0-9]{7}$`),
	DocumentDrivingLicense: regexp.MustCompile(`^[A-Z]{2}[0-9]{2}-?[0-9]{11}$`),
}

// repeatedDigits matches three identical digits in a row. RE2 has no
// backreferences so the ten runs are spelled out.
var repeatedDigits = regexp.MustCompile(`000|111|222|333|444|555|666|777|888|999`)

// ComplianceCheckResult is the outcome of one rule on one document.
type ComplianceCheckResult struct {
	CheckName string `json:"checkName"`
	Passed    bool   `json:"passed"`
	Reason    string `json:"reason,omitempty"`
}

// DocumentCompliance aggregates the rules applied to one document.
type DocumentCompliance struct {
	Checks   []ComplianceCheckResult `json:"checks"`
	Score    float64                 `json:"score"`
	Passed   bool                    `json:"passed"`
	Findings []Finding               `json:"findings"`
}

// ComplianceChecker runs the per-document rule set. It is immutable after
// construction and safe for concurrent use.
type ComplianceChecker struct {
	policy      Policy
	clock       Clock
	placeholder *regexp.Regexp
}

// NewComplianceChecker builds a checker for the policy. A nil clock means
// the system clock.
func NewComplianceChecker(policy Policy, clock Clock) *ComplianceChecker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ComplianceChecker{
		policy:      policy,
		clock:       clock,
		placeholder: placeholderPattern(policy.PlaceholderTokens),
	}
}

// Check runs every applicable rule against doc. index is the position of
// the document in the caller's list and is copied into findings.
func (c *ComplianceChecker) Check(doc ExtractedDocument, index int) DocumentCompliance {
	result := DocumentCompliance{
		Checks:   []ComplianceCheckResult{},
		Findings: []Finding{},
	}
	docType := doc.DocumentType.Canonical()

	c.checkAge(doc, index, docType, &result)
	c.checkIDFormat(doc, index, docType, &result)
	c.checkTampering(doc, index, docType, &result)
	c.checkPresence(doc, index, docType, &result)

	passed := 0
	for _, chk := range result.Checks {
		if chk.Passed {
			passed++
		}
	}
	if len(result.Checks) > 0 {
		result.Score = float64(passed) / float64(len(result.Checks))
	}
	result.Passed = result.Score >= c.policy.ComplianceThreshold
	return result
}

// checkAge derives the age from the canonical date of birth. A missing or
// unparseable date fails the rule.
func (c *ComplianceChecker) checkAge(doc ExtractedDocument, index int, docType DocumentType, result *DocumentCompliance) {
	dob := NormalizeDate(doc.Fields.DateOfBirth)
	if dob == "" {
		c.fail(result, CheckAge, "date of birth missing or unreadable", Finding{
			Field:    FieldDateOfBirth,
			Kind:     IssueAgeOutOfRange,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%s: date of birth missing or unreadable, age cannot be derived", docType),
			Values:   sourced(doc.Fields.DateOfBirth, docType, index),
		})
		return
	}

	born, _ := time.Parse("2006-01-02", dob)
	age := ageOn(born, c.clock.Now())
	if age < c.policy.MinAge || age > c.policy.MaxAge {
		c.fail(result, CheckAge, fmt.Sprintf("age %d outside [%d,%d]", age, c.policy.MinAge, c.policy.MaxAge), Finding{
			Field:    FieldDateOfBirth,
			Kind:     IssueAgeOutOfRange,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%s: age %d outside allowed range [%d,%d]", docType, age, c.policy.MinAge, c.policy.MaxAge),
			Values:   sourced(dob, docType, index),
		})
		return
	}
	c.pass(result, CheckAge)
}

// checkIDFormat validates the ID number against the pattern for the
// document type. Unknown types do not apply the rule at all.
func (c *ComplianceChecker) checkIDFormat(doc ExtractedDocument, index int, docType DocumentType, result *DocumentCompliance) {
	pattern, known := idFormats[docType]
	if !known {
		return
	}

	id := NormalizeIDNumber(doc.Fields.IDNumber)
	if id == "" {
		c.fail(result, CheckIDFormat, "id number missing", Finding{
			Field:    FieldIDNumber,
			Kind:     IssueInvalidFormat,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%s: id number missing", docType),
		})
		return
	}
	if !pattern.MatchString(id) {
		c.fail(result, CheckIDFormat, "id number does not match "+string(docType)+" format", Finding{
			Field:    FieldIDNumber,
			Kind:     IssueInvalidFormat,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%s: id number %q does not match the expected format", docType, id),
			Values:   sourced(id, docType, index),
		})
		return
	}
	c.pass(result, CheckIDFormat)
}

// checkTampering is a keyword heuristic over the raw OCR text. A hit is
// surfaced for manual review and never rejects on its own.
func (c *ComplianceChecker) checkTampering(doc ExtractedDocument, index int, docType DocumentType, result *DocumentCompliance) {
	text := strings.ToLower(doc.RawText)

	var hits []string
	if c.placeholder != nil {
		if m := c.placeholder.FindString(text); m != "" {
			hits = append(hits, fmt.Sprintf("placeholder text %q", m))
		}
	}
	if m := repeatedDigits.FindString(text); m != "" {
		hits = append(hits, fmt.Sprintf("repeated digits %q", m))
	}

	if len(hits) == 0 {
		c.pass(result, CheckTampering)
		return
	}
	reason := strings.Join(hits, ", ")
	c.fail(result, CheckTampering, reason, Finding{
		Kind:     IssueTamperingSuspected,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("%s (document %d): possible tampering, %s", docType, index, reason),
	})
}

// checkPresence requires a minimum number of fields with trimmed length > 2.
func (c *ComplianceChecker) checkPresence(doc ExtractedDocument, index int, docType DocumentType, result *DocumentCompliance) {
	present := 0
	for _, f := range []string{FieldName, FieldDateOfBirth, FieldIDNumber, FieldAddress} {
		if isPresent(NormalizeField(f, doc.Fields.Get(f))) {
			present++
		}
	}
	if present >= c.policy.MinPresentFields {
		c.pass(result, CheckPresence)
		return
	}
	reason := fmt.Sprintf("%d fields present, need %d", present, c.policy.MinPresentFields)
	c.fail(result, CheckPresence, reason, Finding{
		Kind:     IssueMissingField,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("%s (document %d): %s", docType, index, reason),
	})
}

func (c *ComplianceChecker) pass(result *DocumentCompliance, check string) {
	result.Checks = append(result.Checks, ComplianceCheckResult{CheckName: check, Passed: true})
}

func (c *ComplianceChecker) fail(result *DocumentCompliance, check, reason string, finding Finding) {
	result.Checks = append(result.Checks, ComplianceCheckResult{CheckName: check, Reason: reason})
	result.Findings = append(result.Findings, finding)
}

// isPresent reports whether a normalized field value counts as present.
func isPresent(v string) bool {
	return len([]rune(strings.TrimSpace(v))) > 2
}

// ageOn returns the number of whole years between born and now.
func ageOn(born, now time.Time) int {
	now = now.UTC()
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	return age
}

// placeholderPattern compiles the tokens into one case-insensitive,
// word-bounded alternation. Inner spaces match any whitespace run.
func placeholderPattern(tokens []string) *regexp.Regexp {
	var alts []string
	for _, t := range tokens {
		words := strings.Fields(strings.ToLower(t))
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `\s+`))
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

func sourced(value string, docType DocumentType, index int) []SourcedValue {
	if value == "" {
		return nil
	}
	return []SourcedValue{{Value: value, DocumentType: docType, DocumentIndex: index}}
}

package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(t DocumentType, name, dob, id, address string) ExtractedDocument {
	return ExtractedDocument{
		DocumentType:     t,
		Fields:           Fields{Name: name, DateOfBirth: dob, IDNumber: id, Address: address},
		SourceConfidence: 90,
	}
}

func TestEvaluateConsistencyAllMatch(t *testing.T) {
	docs := []ExtractedDocument{
		doc(DocumentAadhaar, "John Doe", "1990-01-01", "1234 5678 9012", "12 MG Road, Pune"),
		doc(DocumentPAN, "JOHN DOE", "01/01/1990", "ABCDE1234F", "12 MG Road Pune"),
	}

	report := EvaluateConsistency(docs, DefaultPolicy())

	assert.True(t, report.Consistent)
	assert.Equal(t, 100.0, report.Confidence)
	assert.Empty(t, report.Inconsistencies)
	assert.Empty(t, report.Notes)
	assert.Equal(t, []string{FieldName, FieldDateOfBirth, FieldAddress}, report.MatchingFields)
	require.Len(t, report.Comparisons, 3)
	for _, c := range report.Comparisons {
		assert.True(t, c.Consistent, c.FieldName)
		assert.Equal(t, DocumentAadhaar, c.SourceA)
		assert.Equal(t, DocumentPAN, c.SourceB)
	}
}

func TestEvaluateConsistencyNameMismatch(t *testing.T) {
	docs := []ExtractedDocument{
		doc(DocumentAadhaar, "John Doe", "1990-01-01", "", "12 MG Road"),
		doc(DocumentPAN, "Jane Smith", "1990-01-01", "", "12 MG Road"),
	}

	report := EvaluateConsistency(docs, DefaultPolicy())

	require.Len(t, report.Inconsistencies, 1)
	f := report.Inconsistencies[0]
	assert.Equal(t, FieldName, f.Field)
	assert.Equal(t, IssueFieldMismatch, f.Kind)
	assert.Equal(t, SeverityCritical, f.Severity)
	assert.Contains(t, f.Message, "name mismatch")
	assert.Contains(t, f.Message, `"john doe" (aadhaar)`)
	assert.Contains(t, f.Message, `"jane smith" (pan)`)
	assert.False(t, report.Consistent)
	assert.Less(t, report.Confidence, 70.0)
	assert.Equal(t, []string{FieldDateOfBirth, FieldAddress}, report.MatchingFields)
}

func TestEvaluateConsistencyDateIsExact(t *testing.T) {
	docs := []ExtractedDocument{
		doc(DocumentAadhaar, "John Doe", "1990-01-01", "", ""),
		doc(DocumentPassport, "John Doe", "02/01/1990", "", ""),
	}

	report := EvaluateConsistency(docs, DefaultPolicy())

	var kinds []string
	for _, f := range report.Inconsistencies {
		kinds = append(kinds, f.Field+":"+string(f.Kind))
	}
	assert.ElementsMatch(t, []string{
		FieldDateOfBirth + ":" + string(IssueFieldMismatch),
		FieldAddress + ":" + string(IssueMissingField),
	}, kinds)
}

func TestEvaluateConsistencySingleSourceIsInformational(t *testing.T) {
	docs := []ExtractedDocument{
		doc(DocumentAadhaar, "John Doe", "1990-01-01", "", "12 MG Road"),
		doc(DocumentPAN, "John Doe", "1990-01-01", "ABCDE1234F", ""),
	}

	report := EvaluateConsistency(docs, DefaultPolicy())

	assert.True(t, report.Consistent)
	require.Len(t, report.Notes, 1)
	assert.Equal(t, FieldAddress, report.Notes[0].Field)
	assert.Equal(t, IssueSingleSource, report.Notes[0].Kind)
	assert.Equal(t, SeverityInfo, report.Notes[0].Severity)
}

func TestEvaluateConsistencyIDNumbersNotCompared(t *testing.T) {
	docs := []ExtractedDocument{
		doc(DocumentAadhaar, "John Doe", "1990-01-01", "123456789012", "12 MG Road"),
		doc(DocumentPAN, "John Doe", "1990-01-01", "ABCDE1234F", "12 MG Road"),
	}

	report := EvaluateConsistency(docs, DefaultPolicy())

	assert.True(t, report.Consistent)
	for _, c := range report.Comparisons {
		assert.NotEqual(t, FieldIDNumber, c.FieldName)
	}
}

func TestEvaluateConsistencyAllMandatoryMissing(t *testing.T) {
	docs := []ExtractedDocument{
		doc(DocumentPAN, "", "", "ABCDE1234F", ""),
	}

	report := EvaluateConsistency(docs, DefaultPolicy())

	require.Len(t, report.Inconsistencies, 3)
	for _, f := range report.Inconsistencies {
		assert.Equal(t, IssueMissingField, f.Kind)
		assert.True(t, f.IsCritical())
	}
	assert.Equal(t, 0.0, report.Confidence)
}

func TestCrossConfidenceCappedBelowThreshold(t *testing.T) {
	p := DefaultPolicy()
	p.CriticalPenalty = 1

	assert.Equal(t, 100.0, crossConfidence(0, p))
	assert.Equal(t, p.CriticalCeiling, crossConfidence(1, p))
	assert.Less(t, crossConfidence(1, p), p.MinCrossConfidence)
	assert.Equal(t, 0.0, crossConfidence(10, DefaultPolicy()))
}

func TestParallelComparisonsMatchSequential(t *testing.T) {
	docs := []ExtractedDocument{
		doc(DocumentAadhaar, "John Doe", "1990-01-01", "", "12 MG Road"),
		doc(DocumentPAN, "John Doe", "1990-01-01", "", "12 MG Rd"),
		doc(DocumentPassport, "Jon Doe", "1990-01-01", "", "12 MG Road"),
		doc(DocumentVoterID, "John Doe", "1990-01-02", "", "12 M G Road"),
		doc(DocumentDrivingLicense, "John Doee", "1990-01-01", "", "12 MG Road"),
	}

	sequential := DefaultPolicy()
	sequential.ParallelPairThreshold = 0
	parallel := DefaultPolicy()
	parallel.ParallelPairThreshold = 1

	assert.Equal(t, EvaluateConsistency(docs, sequential), EvaluateConsistency(docs, parallel))
}

package verification

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocuments(t *testing.T) {
	payload := `[
		{"documentType": "aadhaar", "fields": {"name": "John Doe", "dateOfBirth": "01/01/1990"}, "rawText": "", "sourceConfidence": 88.5},
		{"documentType": "pan", "fields": {}, "rawText": "x", "sourceConfidence": 0}
	]`

	docs, err := DecodeDocuments(strings.NewReader(payload))

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, DocumentAadhaar, docs[0].DocumentType)
	assert.Equal(t, "John Doe", docs[0].Fields.Name)
	assert.Equal(t, 88.5, docs[0].SourceConfidence)
	assert.Empty(t, docs[1].Fields.Name)
}

func TestDecodeDocumentsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		index   int
		field   string
	}{
		{"not an array", `{"documentType": "pan"}`, -1, ""},
		{"unknown key", `[{"documentType": "pan", "fields": {"fatherName": "x"}}]`, -1, ""},
		{"wrong value type", `[{"documentType": "pan", "sourceConfidence": "high"}]`, -1, ""},
		{"trailing data", `[] []`, -1, ""},
		{"missing type", `[{"fields": {"name": "John"}}]`, 0, "documentType"},
		{"confidence out of range", `[{"documentType": "pan"}, {"documentType": "pan", "sourceConfidence": 101}]`, 1, "sourceConfidence"},
		{"negative confidence", `[{"documentType": "pan", "sourceConfidence": -1}]`, 0, "sourceConfidence"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeDocumentsBytes([]byte(tc.payload))

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInputMalformed))
			var malformed *MalformedInputError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tc.index, malformed.Index)
			assert.Equal(t, tc.field, malformed.Field)
		})
	}
}

func TestMalformedInputErrorMessage(t *testing.T) {
	assert.Equal(t, "input malformed: bad json", (&MalformedInputError{Index: -1, Reason: "bad json"}).Error())
	assert.Equal(t, "input malformed: document 2: empty", (&MalformedInputError{Index: 2, Reason: "empty"}).Error())
	assert.Equal(t, "input malformed: document 0: documentType: missing",
		(&MalformedInputError{Index: 0, Field: "documentType", Reason: "missing"}).Error())
	assert.Equal(t, "input malformed: id: invalid UUID length: 3",
		(&MalformedInputError{Index: -1, Field: "id", Reason: "invalid UUID length: 3"}).Error())
}

func TestDocumentTypeCanonical(t *testing.T) {
	assert.Equal(t, DocumentVoterID, DocumentType("  Voter_ID ").Canonical())
}

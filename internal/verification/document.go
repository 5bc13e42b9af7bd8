package verification

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// DocumentType identifies the kind of identity document an extraction came from.
type DocumentType string

const (
	DocumentAadhaar        DocumentType = "aadhaar"
	DocumentPAN            DocumentType = "pan"
	DocumentPassport       DocumentType = "passport"
	DocumentVoterID        DocumentType = "voter_id"
	DocumentDrivingLicense DocumentType = "driving_license"
	DocumentReference      DocumentType = "reference"
)

// Canonical returns the lowercased, trimmed form used for rule lookups.
func (t DocumentType) Canonical() DocumentType {
	return DocumentType(strings.ToLower(strings.TrimSpace(string(t))))
}

// Field names as they appear in comparisons and findings.
const (
	FieldName        = "name"
	FieldDateOfBirth = "dateOfBirth"
	FieldIDNumber    = "idNumber"
	FieldAddress     = "address"
)

// MandatoryFields must be reported by at least one document.
var MandatoryFields = []string{FieldName, FieldDateOfBirth, FieldAddress}

// Fields holds the raw values produced by the OCR/AI step. Any may be empty.
type Fields struct {
	Name        string `json:"name,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	IDNumber    string `json:"idNumber,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Get returns the raw value of the named field.
func (f Fields) Get(field string) string {
	switch field {
	case FieldName:
		return f.Name
	case FieldDateOfBirth:
		return f.DateOfBirth
	case FieldIDNumber:
		return f.IDNumber
	case FieldAddress:
		return f.Address
	}
	return ""
}

// ExtractedDocument is one document's extraction result. The engine never mutates it.
type ExtractedDocument struct {
	DocumentType     DocumentType `json:"documentType"`
	Fields           Fields       `json:"fields"`
	RawText          string       `json:"rawText"`
	SourceConfidence float64      `json:"sourceConfidence"`
}

// ErrInputMalformed is the only engine failure that is returned as an error
// instead of being folded into the verdict.
var ErrInputMalformed = errors.New("input malformed")

// MalformedInputError pinpoints the offending document and field.
type MalformedInputError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Index < 0 {
		if e.Field == "" {
			return fmt.Sprintf("input malformed: %s", e.Reason)
		}
		return fmt.Sprintf("input malformed: %s: %s", e.Field, e.Reason)
	}
	if e.Field == "" {
		return fmt.Sprintf("input malformed: document %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("input malformed: document %d: %s: %s", e.Index, e.Field, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return ErrInputMalformed }

// Validate checks the structural shape of a document. It does not judge
// content; empty fields are a business outcome, not malformed input.
func (d ExtractedDocument) Validate(index int) error {
	if d.DocumentType.Canonical() == "" {
		return &MalformedInputError{Index: index, Field: "documentType", Reason: "missing"}
	}
	c := d.SourceConfidence
	if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 || c > 100 {
		return &MalformedInputError{Index: index, Field: "sourceConfidence", Reason: fmt.Sprintf("%v outside [0,100]", c)}
	}
	return nil
}

// ValidateDocuments validates every document in order and returns the first failure.
func ValidateDocuments(docs []ExtractedDocument) error {
	for i, d := range docs {
		if err := d.Validate(i); err != nil {
			return err
		}
	}
	return nil
}

// DecodeDocuments parses a JSON array of documents against the explicit
// schema. Unknown keys and wrongly typed values are malformed input.
func DecodeDocuments(r io.Reader) ([]ExtractedDocument, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var docs []ExtractedDocument
	if err := dec.Decode(&docs); err != nil {
		return nil, &MalformedInputError{Index: -1, Reason: err.Error()}
	}
	if dec.More() {
		return nil, &MalformedInputError{Index: -1, Reason: "trailing data after document array"}
	}
	if err := ValidateDocuments(docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// DecodeDocumentsBytes is DecodeDocuments over an in-memory payload.
func DecodeDocumentsBytes(data []byte) ([]ExtractedDocument, error) {
	return DecodeDocuments(bytes.NewReader(data))
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kycportal/identity-verification-service/internal/verification"
)

// maxSourceConfidence caps the completeness score; extraction alone never
// claims certainty.
const maxSourceConfidence = 95

// numberKeys lists the per-type ID number key a prompt asks for.
var numberKeys = map[verification.DocumentType]string{
	verification.DocumentAadhaar:        "aadhaar_number",
	verification.DocumentPAN:            "pan_number",
	verification.DocumentPassport:       "passport_number",
	verification.DocumentVoterID:        "voter_id_number",
	verification.DocumentDrivingLicense: "license_number",
}

// promptFields lists the JSON keys requested per document type.
var promptFields = map[verification.DocumentType][]string{
	verification.DocumentAadhaar:        {"name", "aadhaar_number", "date_of_birth", "address", "gender", "mobile"},
	verification.DocumentPAN:            {"name", "pan_number", "date_of_birth", "father_name"},
	verification.DocumentPassport:       {"name", "passport_number", "date_of_birth", "place_of_birth", "nationality", "issue_date", "expiry_date"},
	verification.DocumentVoterID:        {"name", "voter_id_number", "date_of_birth", "address", "constituency"},
	verification.DocumentDrivingLicense: {"name", "license_number", "date_of_birth", "address", "issue_date", "expiry_date"},
}

var genericFields = []string{"name", "id_number", "date_of_birth", "address"}

// Input is one document to extract.
type Input struct {
	DocumentType verification.DocumentType
	ImageBase64  string
	OCRText      string
}

// Extractor turns a document image or its OCR text into an ExtractedDocument.
type Extractor struct {
	provider    Provider
	concurrency int
}

// NewExtractor creates an extractor over provider.
func NewExtractor(provider Provider) *Extractor {
	return &Extractor{provider: provider, concurrency: runtime.GOMAXPROCS(0)}
}

// WithConcurrency bounds ExtractAll's parallel provider calls.
func (e *Extractor) WithConcurrency(n int) *Extractor {
	if n > 0 {
		e.concurrency = n
	}
	return e
}

// Provider returns the underlying provider.
func (e *Extractor) Provider() Provider { return e.provider }

// Extract runs one extraction. Vision mode is used when an image is given
// and there is no OCR text. The returned duration is the provider time in
// seconds.
func (e *Extractor) Extract(ctx context.Context, in Input) (*verification.ExtractedDocument, float64, error) {
	docType := in.DocumentType.Canonical()
	isVisionMode := in.ImageBase64 != "" && strings.TrimSpace(in.OCRText) == ""

	prompt := BuildPrompt(docType, in.OCRText)
	imageBase64 := in.ImageBase64
	if !isVisionMode {
		imageBase64 = ""
	}

	started := time.Now()
	response, err := e.provider.ExtractData(ctx, prompt, imageBase64)
	duration := time.Since(started).Seconds()
	if err != nil {
		return nil, duration, fmt.Errorf("AI extraction failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"provider":      e.provider.Name(),
		"document_type": docType,
		"vision":        isVisionMode,
		"response_len":  len(response),
	}).Debug("AI response received")

	doc, err := ParseResponse(docType, response, in.OCRText)
	if err != nil {
		return nil, duration, err
	}
	return doc, duration, nil
}

// ExtractAll extracts every input concurrently and returns documents in
// input order. The first failure cancels the rest.
func (e *Extractor) ExtractAll(ctx context.Context, inputs []Input) ([]verification.ExtractedDocument, error) {
	docs := make([]verification.ExtractedDocument, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, in := range inputs {
		g.Go(func() error {
			doc, _, err := e.Extract(gctx, in)
			if err != nil {
				return fmt.Errorf("document %d (%s): %w", i, in.DocumentType, err)
			}
			docs[i] = *doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// BuildPrompt returns the extraction prompt for a document type. When
// ocrText is non-empty the model reads it instead of an image.
func BuildPrompt(docType verification.DocumentType, ocrText string) string {
	label := strings.ReplaceAll(string(docType), "_", " ")
	if label == "" {
		label = "identity"
	}
	fields, ok := promptFields[docType]
	if !ok {
		fields = genericFields
	}

	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = fmt.Sprintf("%q: \"\"", f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are reading an Indian %s document for identity verification.\n", label)
	b.WriteString("Copy every value exactly as printed. Do not guess, translate or correct spelling.\n")
	b.WriteString("Write dates as printed (for example DD/MM/YYYY). Leave a value empty when it is not legible.\n")
	b.WriteString("Also return raw_text with the full visible text of the document, one line per printed line.\n")
	fmt.Fprintf(&b, "Return only JSON, no commentary: {%s, \"raw_text\": \"\"}\n", strings.Join(keys, ", "))
	if strings.TrimSpace(ocrText) != "" {
		b.WriteString("\nThe document text produced by OCR follows. OCR may confuse 0/O, 1/I and 5/S.\n")
		b.WriteString("---\n")
		b.WriteString(ocrText)
		b.WriteString("\n---\n")
	}
	return b.String()
}

// ParseResponse reads a model answer into an ExtractedDocument. Anything
// other than a JSON object is ErrUnparseableResponse.
func ParseResponse(docType verification.DocumentType, response, ocrText string) (*verification.ExtractedDocument, error) {
	cleaned := stripCodeFences(response)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		if err == nil {
			err = errors.New("not a JSON object")
		}
		return nil, fmt.Errorf("%w: %v", ErrUnparseableResponse, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		values[strings.ToLower(strings.TrimSpace(k))] = stringValue(v)
	}

	rawText := values["raw_text"]
	delete(values, "raw_text")
	if strings.TrimSpace(ocrText) != "" {
		rawText = ocrText
	}
	if rawText == "" {
		rawText = cleaned
	}

	return &verification.ExtractedDocument{
		DocumentType: docType,
		Fields: verification.Fields{
			Name:        values["name"],
			DateOfBirth: values["date_of_birth"],
			IDNumber:    pickIDNumber(docType, values),
			Address:     values["address"],
		},
		RawText:          rawText,
		SourceConfidence: calculateConfidence(values),
	}, nil
}

func pickIDNumber(docType verification.DocumentType, values map[string]string) string {
	if key, ok := numberKeys[docType]; ok && values[key] != "" {
		return values[key]
	}
	for _, key := range []string{"aadhaar_number", "pan_number", "passport_number", "voter_id_number", "license_number", "id_number"} {
		if values[key] != "" {
			return values[key]
		}
	}
	return ""
}

// calculateConfidence scores extraction completeness:
//
//	15 per non-empty value
//	10 per critical key present (name, date_of_birth and the aadhaar, pan and passport numbers)
//	10 when the name is longer than three characters
//	15 when an Aadhaar or PAN number was read
//
// capped at maxSourceConfidence.
func calculateConfidence(values map[string]string) float64 {
	score := 0
	for _, v := range values {
		if v != "" {
			score += 15
		}
	}
	for _, f := range []string{"name", "aadhaar_number", "pan_number", "passport_number", "date_of_birth"} {
		if values[f] != "" {
			score += 10
		}
	}
	if len([]rune(values["name"])) > 3 {
		score += 10
	}
	if values["aadhaar_number"] != "" || values["pan_number"] != "" {
		score += 15
	}
	return float64(min(score, maxSourceConfidence))
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return ""
	case map[string]any:
		// Some models split addresses into parts; keep the printed order stable.
		parts := make([]string, 0, len(val))
		for _, k := range []string{"line1", "line2", "street", "locality", "city", "district", "state", "pincode", "pin"} {
			if s := stringValue(val[k]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := stringValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

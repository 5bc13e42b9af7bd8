package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kycportal/identity-verification-service/internal/ai"
	"github.com/kycportal/identity-verification-service/internal/db"
	"github.com/kycportal/identity-verification-service/internal/models"
	"github.com/kycportal/identity-verification-service/internal/ocr"
	"github.com/kycportal/identity-verification-service/internal/storage"
	"github.com/kycportal/identity-verification-service/internal/verification"
)

const aadhaarResponse = `{
	"name": "Rahul Sharma",
	"aadhaar_number": "2345 6789 0123",
	"date_of_birth": "1990-05-14",
	"address": "14 Park Street, Kolkata"
}`

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fixedProvider struct {
	response string
	err      error
}

func (p fixedProvider) Name() string { return "fixed" }

func (p fixedProvider) ExtractData(context.Context, string, string) (string, error) {
	return p.response, p.err
}

func newTestHandler(t *testing.T, provider ai.Provider) http.Handler {
	t.Helper()
	db.Pool = nil
	storage.Client = nil

	engine, err := verification.NewEngine(verification.WithClock(
		verification.FixedClock(time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, err)

	h := NewHandler(models.DefaultConfig(), engine, nil)
	h.newProvider = func(string, string) (ai.Provider, error) { return provider, nil }
	return h.SetupRoutes()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, path string, fields map[string][]string, fileField string, files int) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(name, v))
		}
	}
	for i := 0; i < files; i++ {
		fw, err := mw.CreateFormFile(fileField, "doc.png")
		require.NoError(t, err)
		_, err = fw.Write(pngHeader)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestVerifyJSON(t *testing.T) {
	h := newTestHandler(t, fixedProvider{})
	body := `{"documents": [
		{"documentType": "aadhaar", "fields": {"name": "Rahul Sharma", "dateOfBirth": "1990-05-14", "idNumber": "2345 6789 0123", "address": "14 Park Street, Kolkata"}, "rawText": "Government of India", "sourceConfidence": 90},
		{"documentType": "pan", "fields": {"name": "RAHUL SHARMA", "dateOfBirth": "14/05/1990", "idNumber": "ABCDE1234F"}, "rawText": "Income Tax Department", "sourceConfidence": 88}
	]}`

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/verifications", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Verdict.Approved, resp.Verdict.Reason)
	assert.True(t, verification.IsDigest(resp.Fingerprint))
	assert.False(t, resp.SavedToDB)
	assert.NotEmpty(t, resp.ID)
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	h := newTestHandler(t, fixedProvider{})

	for name, body := range map[string]string{
		"unknown field":   `{"documents": [], "extra": 1}`,
		"bad confidence":  `{"documents": [{"documentType": "pan", "sourceConfidence": 140}]}`,
		"missing doctype": `{"documents": [{"sourceConfidence": 50}]}`,
		"not json":        `documents`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/verifications", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestVerifyWithReferenceNeedsStorage(t *testing.T) {
	h := newTestHandler(t, fixedProvider{})
	body := `{"documents": [], "referenceDigest": "` + strings.Repeat("a", 64) + `"}`

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/verifications", strings.NewReader(body)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVerifyUpload(t *testing.T) {
	h := newTestHandler(t, fixedProvider{response: aadhaarResponse})
	req := multipartRequest(t, "/api/verifications/upload",
		map[string][]string{"documentType": {"aadhaar", "aadhaar"}}, "documents", 2)

	rec := serve(h, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, "Rahul Sharma", resp.Documents[0].Fields.Name)
	assert.Equal(t, 95.0, resp.Documents[1].SourceConfidence)
	assert.True(t, resp.Verdict.Approved, resp.Verdict.Reason)
}

func TestVerifyUploadTypeCountMismatch(t *testing.T) {
	h := newTestHandler(t, fixedProvider{response: aadhaarResponse})
	req := multipartRequest(t, "/api/verifications/upload",
		map[string][]string{"documentType": {"aadhaar"}}, "documents", 2)

	assert.Equal(t, http.StatusBadRequest, serve(h, req).Code)
}

func TestExtractDocument(t *testing.T) {
	h := newTestHandler(t, fixedProvider{response: aadhaarResponse})
	req := multipartRequest(t, "/api/documents/extract",
		map[string][]string{"documentType": {"aadhaar"}}, "image", 1)

	rec := serve(h, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.ExtractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2345 6789 0123", resp.Document.Fields.IDNumber)
	assert.Equal(t, "fixed", resp.Provider)
}

func TestExtractUnparseableGoesToManualReview(t *testing.T) {
	h := newTestHandler(t, fixedProvider{response: "I could not read this card."})
	req := multipartRequest(t, "/api/documents/extract",
		map[string][]string{"documentType": {"pan"}}, "file", 1)

	rec := serve(h, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.ManualReview)
}

func TestBackendsNotConfigured(t *testing.T) {
	h := newTestHandler(t, fixedProvider{})

	assert.Equal(t, http.StatusServiceUnavailable, serve(h, httptest.NewRequest(http.MethodGet, "/api/verifications", nil)).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, httptest.NewRequest(http.MethodGet, "/api/stats", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, httptest.NewRequest(http.MethodGet, "/api/verifications/not-a-uuid", nil)).Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		serve(h, httptest.NewRequest(http.MethodPost, "/api/references", strings.NewReader(`{"documentType":"pan","sourceConfidence":80}`))).Code)
}

func TestGetVerificationBadIDNamesField(t *testing.T) {
	h := newTestHandler(t, fixedProvider{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/verifications/not-a-uuid", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.Error, "input malformed: id: "), resp.Error)
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, fixedProvider{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.Database.Available)
	assert.Equal(t, Version, resp.Version)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err          error
		status       int
		manualReview bool
	}{
		{&verification.MalformedInputError{Index: 0, Reason: "x"}, http.StatusBadRequest, false},
		{ai.ErrUnparseableResponse, http.StatusUnprocessableEntity, true},
		{ai.ErrProviderUnavailable, http.StatusServiceUnavailable, false},
		{ocr.ErrUnavailable, http.StatusServiceUnavailable, false},
		{storage.ErrReferenceNotFound, http.StatusNotFound, false},
		{db.ErrVerificationNotFound, http.StatusNotFound, false},
		{db.ErrInvalidStatus, http.StatusBadRequest, false},
		{errors.New("boom"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		status, manual := errorStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.manualReview, manual, tc.err.Error())
	}
}

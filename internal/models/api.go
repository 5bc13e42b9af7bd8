package models

import (
	"github.com/kycportal/identity-verification-service/internal/db"
	"github.com/kycportal/identity-verification-service/internal/verification"
)

// VerifyRequest is the body of POST /api/verifications. ReferenceDigest
// appends a stored reference document to the set.
type VerifyRequest struct {
	Documents       []verification.ExtractedDocument `json:"documents"`
	ReferenceDigest string                           `json:"referenceDigest,omitempty"`
}

// VerifyResponse wraps a verdict with what the service did around it.
type VerifyResponse struct {
	Success       bool                             `json:"success"`
	ID            string                           `json:"id,omitempty"`
	Fingerprint   string                           `json:"fingerprint"`
	Verdict       *verification.Verdict            `json:"verdict"`
	Documents     []verification.ExtractedDocument `json:"documents,omitempty"`
	SavedToDB     bool                             `json:"savedToDb"`
	ArchivePath   string                           `json:"archivePath,omitempty"`
	TotalDuration float64                          `json:"totalDuration"`
}

// ExtractResponse is the body of POST /api/documents/extract.
type ExtractResponse struct {
	Success     bool                            `json:"success"`
	Document    *verification.ExtractedDocument `json:"document"`
	Provider    string                          `json:"provider"`
	OCRDuration float64                         `json:"ocrDuration"`
	AIDuration  float64                         `json:"aiDuration"`
	ImagePath   string                          `json:"imagePath,omitempty"`
}

// ReferenceResponse is returned when storing or loading a reference document.
type ReferenceResponse struct {
	Success  bool                            `json:"success"`
	Digest   string                          `json:"digest"`
	Document *verification.ExtractedDocument `json:"document,omitempty"`
}

// VerificationListResponse is the body of GET /api/verifications.
type VerificationListResponse struct {
	Success       bool              `json:"success"`
	Verifications []db.Verification `json:"verifications"`
	Count         int               `json:"count"`
	Total         int               `json:"total"`
}

// ErrorResponse is every non-2xx body. ManualReview is set when the failure
// means a human must look at the documents.
type ErrorResponse struct {
	Success      bool   `json:"success"`
	Error        string `json:"error"`
	ManualReview bool   `json:"manualReview,omitempty"`
}

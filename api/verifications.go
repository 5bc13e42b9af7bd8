package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/kycportal/identity-verification-service/internal/auth"
	"github.com/kycportal/identity-verification-service/internal/db"
	"github.com/kycportal/identity-verification-service/internal/models"
	"github.com/kycportal/identity-verification-service/internal/storage"
	"github.com/kycportal/identity-verification-service/internal/verification"
)

// Verify evaluates already-extracted documents posted as JSON.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req models.VerifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxUploadSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.sendError(w, r, &verification.MalformedInputError{Index: -1, Reason: err.Error()})
		return
	}

	docs := req.Documents
	if req.ReferenceDigest != "" {
		ref, err := storage.GetReference(r.Context(), req.ReferenceDigest)
		if err != nil {
			h.sendError(w, r, fmt.Errorf("reference %s: %w", req.ReferenceDigest, err))
			return
		}
		docs = append(docs, *ref)
	}

	resp, err := h.decide(r.Context(), uuid.New(), docs)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	resp.TotalDuration = time.Since(started).Seconds()
	writeJSON(w, http.StatusOK, resp)
}

// decide runs the engine, then archives and persists the verdict when those
// backends are available. Backend failures are logged, never fatal.
func (h *Handler) decide(ctx context.Context, id uuid.UUID, docs []verification.ExtractedDocument) (*models.VerifyResponse, error) {
	verdict, err := h.engine.Evaluate(docs)
	if err != nil {
		return nil, err
	}
	fingerprint, err := verification.Fingerprint(verdict)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint verdict: %w", err)
	}

	log := logrus.WithFields(logrus.Fields{
		"verification_id": id,
		"document_count":  len(docs),
		"approved":        verdict.Approved,
		"manual_review":   verdict.ManualReview,
		"final":           verdict.FinalConfidence,
	})

	resp := &models.VerifyResponse{
		Success:     true,
		ID:          id.String(),
		Fingerprint: fingerprint,
		Verdict:     verdict,
	}

	if storage.Available() {
		path, err := storage.ArchiveVerdict(ctx, id.String(), fingerprint, verdict)
		if err != nil {
			log.WithError(err).Warn("failed to archive verdict")
		}
		resp.ArchivePath = path
	}

	if db.Pool != nil {
		body, err := json.Marshal(verdict)
		if err != nil {
			return nil, fmt.Errorf("failed to encode verdict: %w", err)
		}
		record := &db.Verification{
			ID:              id,
			DocumentCount:   len(docs),
			Approved:        verdict.Approved,
			ManualReview:    verdict.ManualReview,
			FinalConfidence: verdict.FinalConfidence,
			Fingerprint:     fingerprint,
			Reason:          verdict.Reason,
			Verdict:         body,
			ArchivePath:     resp.ArchivePath,
		}
		if claims, err := auth.GetClaimsFromContext(ctx); err == nil {
			record.Reviewer = claims.Username
		}
		if err := db.SaveVerification(ctx, record); err != nil {
			log.WithError(err).Warn("failed to save verification")
		} else {
			resp.SavedToDB = true
		}
	}

	log.Info("verification decided")
	return resp, nil
}

// ListVerifications returns stored verifications, newest first.
func (h *Handler) ListVerifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.ListFilter{Status: q.Get("status")}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		h.sendError(w, r, err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		h.sendError(w, r, err)
		return
	}

	verifications, total, err := db.ListVerifications(r.Context(), filter)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.VerificationListResponse{
		Success:       true,
		Verifications: verifications,
		Count:         len(verifications),
		Total:         total,
	})
}

// GetVerification returns one stored verification with its verdict and,
// when storage is available, a presigned link to the archived verdict.
func (h *Handler) GetVerification(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, r, &verification.MalformedInputError{Index: -1, Field: "id", Reason: err.Error()})
		return
	}

	record, err := db.GetVerification(r.Context(), id)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	response := map[string]any{
		"success":      true,
		"verification": record,
	}
	if record.ArchivePath != "" && storage.Available() {
		if url, err := storage.GetPresignedURL(r.Context(), record.ArchivePath); err == nil {
			response["archiveUrl"] = url
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// GetStats returns monthly statistics
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := db.GetStats(r.Context())
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &verification.MalformedInputError{Index: -1, Reason: fmt.Sprintf("invalid integer %q", s)}
	}
	return n, nil
}

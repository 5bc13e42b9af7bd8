package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrVerificationNotFound means no stored verification has the given id.
	ErrVerificationNotFound = errors.New("verification not found")
	// ErrInvalidStatus means a list filter named an unknown outcome.
	ErrInvalidStatus = errors.New("invalid status filter")
)

const schema = `
CREATE TABLE IF NOT EXISTS kyc_verifications (
	id               UUID PRIMARY KEY,
	document_count   INTEGER NOT NULL,
	approved         BOOLEAN NOT NULL,
	manual_review    BOOLEAN NOT NULL,
	final_confidence DOUBLE PRECISION NOT NULL,
	fingerprint      CHAR(64) NOT NULL,
	reason           TEXT NOT NULL,
	verdict          JSONB NOT NULL,
	reviewer         TEXT NOT NULL DEFAULT '',
	archive_path     TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS kyc_verifications_created_at_idx ON kyc_verifications (created_at DESC);
CREATE INDEX IF NOT EXISTS kyc_verifications_fingerprint_idx ON kyc_verifications (fingerprint);

CREATE TABLE IF NOT EXISTS kyc_reviewers (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'reviewer',
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	last_login_at TIMESTAMPTZ
);
`

// Verification is one persisted verdict. Verdict holds the full verdict JSON.
type Verification struct {
	ID              uuid.UUID       `json:"id"`
	DocumentCount   int             `json:"documentCount"`
	Approved        bool            `json:"approved"`
	ManualReview    bool            `json:"manualReview"`
	FinalConfidence float64         `json:"finalConfidence"`
	Fingerprint     string          `json:"fingerprint"`
	Reason          string          `json:"reason"`
	Verdict         json.RawMessage `json:"verdict,omitempty"`
	Reviewer        string          `json:"reviewer,omitempty"`
	ArchivePath     string          `json:"archivePath,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Status values accepted by ListVerifications.
const (
	StatusApproved     = "approved"
	StatusRejected     = "rejected"
	StatusManualReview = "manual_review"
)

// ListFilter narrows ListVerifications. Empty Status lists everything.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// Stats summarizes stored verifications for the current month.
type Stats struct {
	Month                  string  `json:"month"`
	Total                  int     `json:"total"`
	Approved               int     `json:"approved"`
	Rejected               int     `json:"rejected"`
	ManualReview           int     `json:"manualReview"`
	AverageFinalConfidence float64 `json:"averageFinalConfidence"`
}

// SaveVerification inserts v, assigning an id when it has none.
func SaveVerification(ctx context.Context, v *Verification) error {
	if Pool == nil {
		return ErrNotConfigured
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	query := `
		INSERT INTO kyc_verifications (
			id, document_count, approved, manual_review, final_confidence,
			fingerprint, reason, verdict, reviewer, archive_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	return Pool.QueryRow(ctx, query,
		v.ID, v.DocumentCount, v.Approved, v.ManualReview, v.FinalConfidence,
		v.Fingerprint, v.Reason, []byte(v.Verdict), v.Reviewer, v.ArchivePath,
	).Scan(&v.CreatedAt)
}

// GetVerification loads one verification including its verdict JSON.
func GetVerification(ctx context.Context, id uuid.UUID) (*Verification, error) {
	if Pool == nil {
		return nil, ErrNotConfigured
	}

	query := `
		SELECT id, document_count, approved, manual_review, final_confidence,
		       fingerprint, reason, verdict, reviewer, archive_path, created_at
		FROM kyc_verifications
		WHERE id = $1
	`
	var v Verification
	var verdict []byte
	err := Pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.DocumentCount, &v.Approved, &v.ManualReview, &v.FinalConfidence,
		&v.Fingerprint, &v.Reason, &verdict, &v.Reviewer, &v.ArchivePath, &v.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVerificationNotFound
	}
	if err != nil {
		return nil, err
	}
	v.Verdict = verdict
	return &v, nil
}

// ListVerifications returns a page of verifications, newest first, without
// verdict bodies, plus the total number matching the filter.
func ListVerifications(ctx context.Context, f ListFilter) ([]Verification, int, error) {
	if Pool == nil {
		return nil, 0, ErrNotConfigured
	}
	where, err := statusClause(f.Status)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := pageBounds(f.Limit, f.Offset)

	var total int
	if err := Pool.QueryRow(ctx, "SELECT COUNT(*) FROM kyc_verifications"+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, document_count, approved, manual_review, final_confidence,
		       fingerprint, reason, reviewer, archive_path, created_at
		FROM kyc_verifications` + where + `
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	verifications := make([]Verification, 0, limit)
	for rows.Next() {
		var v Verification
		if err := rows.Scan(
			&v.ID, &v.DocumentCount, &v.Approved, &v.ManualReview, &v.FinalConfidence,
			&v.Fingerprint, &v.Reason, &v.Reviewer, &v.ArchivePath, &v.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		verifications = append(verifications, v)
	}
	return verifications, total, rows.Err()
}

// GetStats returns outcome counts for the current month.
func GetStats(ctx context.Context) (*Stats, error) {
	if Pool == nil {
		return nil, ErrNotConfigured
	}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE approved AND NOT manual_review),
			COUNT(*) FILTER (WHERE NOT approved AND NOT manual_review),
			COUNT(*) FILTER (WHERE manual_review),
			COALESCE(AVG(final_confidence), 0)
		FROM kyc_verifications
		WHERE DATE_TRUNC('month', created_at) = DATE_TRUNC('month', CURRENT_DATE)
	`
	stats := &Stats{Month: time.Now().Format("2006-01")}
	err := Pool.QueryRow(ctx, query).Scan(
		&stats.Total, &stats.Approved, &stats.Rejected, &stats.ManualReview, &stats.AverageFinalConfidence,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// statusClause maps a status filter to a WHERE clause. Manual review takes
// precedence over approval, matching how outcomes are reported.
func statusClause(status string) (string, error) {
	switch status {
	case "":
		return "", nil
	case StatusManualReview:
		return " WHERE manual_review", nil
	case StatusApproved:
		return " WHERE approved AND NOT manual_review", nil
	case StatusRejected:
		return " WHERE NOT approved AND NOT manual_review", nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, status)
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

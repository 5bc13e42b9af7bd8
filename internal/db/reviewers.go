package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrReviewerNotFound means no active reviewer has the given username.
var ErrReviewerNotFound = errors.New("reviewer not found")

// Reviewer is a compliance officer allowed to call the API.
type Reviewer struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
}

// GetReviewer looks up an active reviewer by username.
func GetReviewer(ctx context.Context, username string) (*Reviewer, error) {
	if Pool == nil {
		return nil, ErrNotConfigured
	}

	query := `SELECT id::text, username, password_hash, role
	          FROM kyc_reviewers
	          WHERE username = $1 AND active`
	var r Reviewer
	err := Pool.QueryRow(ctx, query, username).Scan(&r.ID, &r.Username, &r.PasswordHash, &r.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReviewerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// TouchReviewer records a successful login.
func TouchReviewer(ctx context.Context, id string) error {
	if Pool == nil {
		return ErrNotConfigured
	}
	_, err := Pool.Exec(ctx, "UPDATE kyc_reviewers SET last_login_at = NOW() WHERE id = $1::uuid", id)
	return err
}

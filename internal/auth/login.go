package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/kycportal/identity-verification-service/internal/db"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	Success  bool   `json:"success"`
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

var errNoReviewerStore = errors.New("no reviewer store configured")

// LoginHandler authenticates a reviewer against the kyc_reviewers table, or
// against REVIEWER_USERNAME / REVIEWER_PASSWORD_HASH when the service runs
// without a database.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	reviewer, err := lookupReviewer(ctx, req.Username)
	switch {
	case errors.Is(err, errNoReviewerStore):
		writeError(w, http.StatusServiceUnavailable, "authentication not available")
		return
	case err != nil:
		if !errors.Is(err, db.ErrReviewerNotFound) {
			logrus.WithError(err).Error("reviewer lookup failed")
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(reviewer.PasswordHash), []byte(req.Password)); err != nil {
		logrus.WithField("username", req.Username).Warn("failed login attempt")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := GenerateToken(reviewer.ID, reviewer.Username, reviewer.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	if db.Pool != nil {
		go func() {
			ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			if err := db.TouchReviewer(ctx2, reviewer.ID); err != nil {
				logrus.WithError(err).Warn("failed to record login")
			}
		}()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginResponse{
		Success:  true,
		Token:    token,
		UserID:   reviewer.ID,
		Username: reviewer.Username,
		Role:     reviewer.Role,
	})
}

func lookupReviewer(ctx context.Context, username string) (*db.Reviewer, error) {
	reviewer, err := db.GetReviewer(ctx, username)
	if !errors.Is(err, db.ErrNotConfigured) {
		return reviewer, err
	}

	envUser := os.Getenv("REVIEWER_USERNAME")
	envHash := os.Getenv("REVIEWER_PASSWORD_HASH")
	if envUser == "" || envHash == "" {
		return nil, errNoReviewerStore
	}
	if username != envUser {
		return nil, db.ErrReviewerNotFound
	}
	return &db.Reviewer{ID: "env:" + envUser, Username: envUser, PasswordHash: envHash, Role: "reviewer"}, nil
}

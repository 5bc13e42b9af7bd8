package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kycportal/identity-verification-service/internal/db"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setupSecret(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)
	require.NoError(t, Init())
	t.Cleanup(func() { jwtSecret = nil })
}

func TestInitRejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	assert.ErrorIs(t, Init(), ErrMissingSecret)
}

func TestTokenRoundTrip(t *testing.T) {
	setupSecret(t)

	token, err := GenerateToken("u-1", "officer", "reviewer")
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "officer", claims.Username)
	assert.Equal(t, "reviewer", claims.Role)

	_, err = ParseToken(token + "x")
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	setupSecret(t)

	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := JWTMiddleware(next)

	t.Run("public path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/verifications", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := GenerateToken("u-2", "analyst", "reviewer")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/verifications", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "analyst", seen.Username)
	})
}

func TestLoginWithEnvReviewer(t *testing.T) {
	setupSecret(t)
	db.Pool = nil
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	t.Setenv("REVIEWER_USERNAME", "officer")
	t.Setenv("REVIEWER_PASSWORD_HASH", string(hash))

	login := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		LoginHandler(rec, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body)))
		return rec
	}

	rec := login(`{"username":"officer","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp LoginResponse
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&resp))
	claims, err := ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "officer", claims.Username)

	assert.Equal(t, http.StatusUnauthorized, login(`{"username":"officer","password":"wrong"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, login(`{"username":"someone","password":"s3cret-pass"}`).Code)
	assert.Equal(t, http.StatusBadRequest, login(`{"username":""}`).Code)
}

func TestLoginWithoutReviewerStore(t *testing.T) {
	db.Pool = nil
	t.Setenv("REVIEWER_USERNAME", "")

	rec := httptest.NewRecorder()
	LoginHandler(rec, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"a","password":"b"}`)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

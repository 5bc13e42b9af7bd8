package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/kycportal/identity-verification-service/internal/ai"
	"github.com/kycportal/identity-verification-service/internal/db"
	"github.com/kycportal/identity-verification-service/internal/metrics"
	"github.com/kycportal/identity-verification-service/internal/models"
	"github.com/kycportal/identity-verification-service/internal/ocr"
	"github.com/kycportal/identity-verification-service/internal/storage"
	"github.com/kycportal/identity-verification-service/internal/verification"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB per document image
	MaxDocuments  = 8
	Version       = "1.0.0"
)

// Handler handles HTTP requests for identity verification
type Handler struct {
	config       *models.Config
	engine       *verification.Engine
	metrics      *metrics.Metrics
	preprocessor *ocr.Preprocessor
	newProvider  func(name, model string) (ai.Provider, error)
}

// NewHandler creates a new API handler. m may be nil.
func NewHandler(config *models.Config, engine *verification.Engine, m *metrics.Metrics) *Handler {
	h := &Handler{
		config:       config,
		engine:       engine,
		metrics:      m,
		preprocessor: ocr.NewPreprocessor(),
	}
	h.newProvider = h.createProvider
	return h
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Verifications
	router.HandleFunc("/api/verifications", h.Verify).Methods("POST")
	router.HandleFunc("/api/verifications/upload", h.VerifyUpload).Methods("POST")
	router.HandleFunc("/api/verifications", h.ListVerifications).Methods("GET")
	router.HandleFunc("/api/verifications/{id}", h.GetVerification).Methods("GET")
	router.HandleFunc("/api/stats", h.GetStats).Methods("GET")

	// Single-document extraction and reference documents
	router.HandleFunc("/api/documents/extract", h.ExtractDocument).Methods("POST")
	router.HandleFunc("/api/references", h.StoreReference).Methods("POST")
	router.HandleFunc("/api/references/{digest}", h.GetReference).Methods("GET")

	router.HandleFunc("/health", h.Health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Timestamp   string            `json:"timestamp"`
	Uptime      string            `json:"uptime"`
	Memory      MemoryStats       `json:"memory"`
	Tesseract   ServiceStatus     `json:"tesseract"`
	ImageMagick ServiceStatus     `json:"imageMagick"`
	Database    ServiceStatus     `json:"database"`
	Storage     ServiceStatus     `json:"storage"`
	AI          map[string]string `json:"ai"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health reports dependency status. The JSON verification path needs none
// of them, so a missing dependency degrades the status but still answers 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	tesseractStatus := versionStatus(ocr.NewTesseractOCR(h.config.OCR.Language).Version(ctx))
	imageMagickStatus := versionStatus(h.preprocessor.Version(ctx))
	databaseStatus := h.checkDatabase(ctx)
	storageStatus := h.checkStorage()

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Tesseract:   tesseractStatus,
		ImageMagick: imageMagickStatus,
		Database:    databaseStatus,
		Storage:     storageStatus,
		AI: map[string]string{
			"defaultProvider": h.config.AI.DefaultProvider,
			"ocrLanguage":     h.config.OCR.Language,
		},
	}
	for _, s := range []ServiceStatus{tesseractStatus, imageMagickStatus, databaseStatus, storageStatus} {
		if !s.Available {
			response.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func versionStatus(version string, err error) ServiceStatus {
	if err != nil {
		return ServiceStatus{Available: false, Error: err.Error()}
	}
	return ServiceStatus{Available: true, Version: version}
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase(ctx context.Context) ServiceStatus {
	if err := db.Ping(ctx); err != nil {
		return ServiceStatus{Available: false, Error: err.Error()}
	}
	return ServiceStatus{Available: true, Version: "PostgreSQL"}
}

// checkStorage verifies MinIO connection
func (h *Handler) checkStorage() ServiceStatus {
	if !storage.Available() {
		return ServiceStatus{Available: false, Error: storage.ErrNotConfigured.Error()}
	}
	return ServiceStatus{Available: true, Version: "MinIO S3"}
}

// createProvider creates the named AI provider, falling back to the default
// provider and each provider's configured model.
func (h *Handler) createProvider(providerName, modelName string) (ai.Provider, error) {
	if providerName == "" {
		providerName = h.config.AI.DefaultProvider
	}
	cfg := ai.ProviderConfig{Name: providerName, Model: modelName}
	switch providerName {
	case "openai":
		cfg.APIKey = h.config.AI.OpenAI.APIKey
		cfg.BaseURL = h.config.AI.OpenAI.BaseURL
		if cfg.Model == "" {
			cfg.Model = h.config.AI.OpenAI.Model
		}
	case "gemini":
		cfg.APIKey = h.config.AI.Gemini.APIKey
		if cfg.Model == "" {
			cfg.Model = h.config.AI.Gemini.Model
		}
	case "ollama":
		cfg.BaseURL = h.config.AI.Ollama.BaseURL
		if cfg.Model == "" {
			cfg.Model = h.config.AI.Ollama.Model
		}
	}
	provider, err := ai.NewProvider(cfg)
	if err != nil {
		return nil, &verification.MalformedInputError{Index: -1, Field: "aiProvider", Reason: err.Error()}
	}
	return provider, nil
}

// errorStatus maps a failure to its HTTP status and whether the documents
// must go to a human reviewer.
func errorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, verification.ErrInputMalformed), errors.Is(err, db.ErrInvalidStatus):
		return http.StatusBadRequest, false
	case errors.Is(err, ai.ErrUnparseableResponse):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, storage.ErrReferenceNotFound), errors.Is(err, db.ErrVerificationNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, ai.ErrProviderUnavailable), errors.Is(err, ocr.ErrUnavailable),
		errors.Is(err, db.ErrNotConfigured), errors.Is(err, storage.ErrNotConfigured):
		return http.StatusServiceUnavailable, false
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, false
	}
	return http.StatusInternalServerError, false
}

// sendError writes err with the status errorStatus picks for it.
func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status, manualReview := errorStatus(err)
	entry := logrus.WithError(err).WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}
	writeJSON(w, status, models.ErrorResponse{
		Success:      false,
		Error:        err.Error(),
		ManualReview: manualReview,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to write response")
	}
}

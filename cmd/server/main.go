package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kycportal/identity-verification-service/api"
	"github.com/kycportal/identity-verification-service/internal/auth"
	"github.com/kycportal/identity-verification-service/internal/db"
	"github.com/kycportal/identity-verification-service/internal/metrics"
	"github.com/kycportal/identity-verification-service/internal/models"
	"github.com/kycportal/identity-verification-service/internal/storage"
	"github.com/kycportal/identity-verification-service/internal/verification"
)

func main() {
	config, err := loadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	setupLogging(config.Logging)

	if err := auth.Init(); err != nil {
		logrus.WithError(err).Fatal("failed to initialize auth")
	}

	// Database and storage are optional: without them the service only decides.
	if err := db.Init(); err != nil {
		logrus.WithError(err).Warn("database not available, verifications will not be persisted")
	} else {
		defer db.Close()
	}
	if err := storage.Init(); err != nil {
		logrus.WithError(err).Warn("object storage not available, images and verdicts will not be archived")
	} else {
		logrus.WithField("bucket", storage.BucketName).Info("MinIO storage initialized")
	}

	m := metrics.New(nil)
	engine, err := verification.NewEngine(
		verification.WithPolicy(config.Verification),
		verification.WithRecorder(m),
	)
	if err != nil {
		logrus.WithError(err).Fatal("invalid verification policy")
	}

	handler := api.NewHandler(config, engine, m)
	router := handler.SetupRoutes()
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           auth.JWTMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      3 * time.Minute,
	}

	logrus.WithFields(logrus.Fields{
		"addr":        addr,
		"version":     api.Version,
		"ai_provider": config.AI.DefaultProvider,
		"database":    db.Pool != nil,
		"storage":     storage.Available(),
	}).Info("starting identity verification service")

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
	logrus.Info("server stopped")
}

// loadConfig reads CONFIG_PATH (default config.yaml). A missing file is not
// an error: defaults plus environment overrides are used.
func loadConfig() (*models.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	config, err := models.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		logrus.WithField("path", path).Warn("config file not found, using defaults")
		config = models.DefaultConfig()
		err = config.ApplyEnv()
	}
	return config, err
}

func setupLogging(cfg models.LoggingConfig) {
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

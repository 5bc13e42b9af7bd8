package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnparseableResponse means the model answered but the answer could not
	// be read as the requested JSON. Callers route these to manual review and
	// never infer an outcome from the text.
	ErrUnparseableResponse = errors.New("unparseable AI response")

	// ErrProviderUnavailable means the provider is not configured or every
	// attempt to reach it failed.
	ErrProviderUnavailable = errors.New("AI provider unavailable")
)

// Provider sends a prompt, optionally with an image, to a model and returns
// the raw text of its answer. imageBase64 may be plain base64 or a data URL.
type Provider interface {
	Name() string
	ExtractData(ctx context.Context, prompt, imageBase64 string) (string, error)
}

// ProviderConfig carries what NewProvider needs for any supported backend.
type ProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
}

// NewProvider builds the named provider.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "gemini":
		return NewGeminiProvider(cfg.APIKey, cfg.Model), nil
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "ollama":
		return NewOllamaProvider(cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %q", cfg.Name)
	}
}

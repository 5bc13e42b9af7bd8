package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const (
	defaultGeminiModel = "gemini-1.5-flash"
	geminiAttempts     = 3
)

// GeminiProvider calls Google Gemini with JSON output forced.
type GeminiProvider struct {
	apiKey  string
	model   string
	backoff time.Duration
}

// NewGeminiProvider creates a Gemini provider. An empty model uses the default.
func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		backoff: 300 * time.Millisecond,
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

// ExtractData sends the prompt and image, retrying transient failures.
func (p *GeminiProvider) ExtractData(ctx context.Context, prompt, imageBase64 string) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("%w: GEMINI_API_KEY is empty", ErrProviderUnavailable)
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return "", fmt.Errorf("%w: gemini client: %v", ErrProviderUnavailable, err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(p.model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}

	parts := []genai.Part{genai.Text(prompt)}
	if strings.TrimSpace(imageBase64) != "" {
		data, mime, err := decodeImage(imageBase64)
		if err != nil {
			return "", fmt.Errorf("gemini: bad image base64: %w", err)
		}
		parts = append(parts, &genai.Blob{MIMEType: mime, Data: data})
	}

	var lastErr error
	for attempt := 1; attempt <= geminiAttempts; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err == nil {
			txt := firstText(resp)
			if txt == "" {
				return "", fmt.Errorf("%w: gemini returned no text", ErrUnparseableResponse)
			}
			return txt, nil
		}
		lastErr = err
		logrus.WithFields(logrus.Fields{
			"provider": p.Name(),
			"model":    p.model,
			"attempt":  attempt,
		}).WithError(err).Warn("gemini request failed")
		if attempt == geminiAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * p.backoff):
		}
	}
	return "", fmt.Errorf("%w: gemini: %v", ErrProviderUnavailable, lastErr)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }

package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOllamaModel   = "llava"
	defaultOllamaBaseURL = "http://localhost:11434"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint,
// which covers OpenAI itself, Azure-style proxies and Ollama.
type OpenAIProvider struct {
	name   string
	model  string
	apiKey string
	client *openai.Client
}

// NewOpenAIProvider creates an OpenAI provider. baseURL may be empty.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		name:   "openai",
		model:  model,
		apiKey: strings.TrimSpace(apiKey),
		client: openai.NewClientWithConfig(cfg),
	}
}

// NewOllamaProvider targets a local Ollama server through its OpenAI
// compatible /v1 API. Ollama ignores the API key but the client requires one.
func NewOllamaProvider(baseURL, model string) *OpenAIProvider {
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultOllamaModel
	}
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = baseURL + "/v1"
	return &OpenAIProvider{
		name:   "ollama",
		model:  model,
		apiKey: "ollama",
		client: openai.NewClientWithConfig(cfg),
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

// ExtractData sends one user message with the prompt and, when present,
// the image as a data URL part. JSON output is requested.
func (p *OpenAIProvider) ExtractData(ctx context.Context, prompt, imageBase64 string) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("%w: %s API key is empty", ErrProviderUnavailable, p.name)
	}

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if strings.TrimSpace(imageBase64) == "" {
		msg.Content = prompt
	} else {
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    toDataURL(imageBase64),
					Detail: openai.ImageURLDetailHigh,
				},
			},
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    []openai.ChatCompletionMessage{msg},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, p.name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: %s returned no content", ErrUnparseableResponse, p.name)
	}
	return resp.Choices[0].Message.Content, nil
}

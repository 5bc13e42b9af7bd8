package models

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kycportal/identity-verification-service/internal/verification"
)

// Config represents the service configuration
type Config struct {
	Port         int                 `yaml:"port"`
	Host         string              `yaml:"host"`
	OCR          OCRConfig           `yaml:"ocr"`
	AI           AIConfig            `yaml:"ai"`
	Logging      LoggingConfig       `yaml:"logging"`
	Verification verification.Policy `yaml:"verification"`
}

// OCRConfig represents OCR engine configuration
type OCRConfig struct {
	Language string `yaml:"language"`
	// Profile is the ImageMagick pipeline: "standard" or "laminated".
	Profile string `yaml:"profile"`
}

// AIConfig represents AI provider configuration
type AIConfig struct {
	OpenAI          OpenAIConfig `yaml:"openai"`
	Gemini          GeminiConfig `yaml:"gemini"`
	Ollama          OllamaConfig `yaml:"ollama"`
	DefaultProvider string       `yaml:"defaultProvider"`
	// Concurrency bounds parallel extractions for one multi-document upload.
	Concurrency int `yaml:"concurrency"`
}

// OpenAIConfig represents OpenAI configuration
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

// GeminiConfig represents Google Gemini configuration
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// OllamaConfig represents Ollama configuration
type OllamaConfig struct {
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

// LoggingConfig selects the logrus level and formatter.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig is used for keys the YAML file leaves out.
func DefaultConfig() *Config {
	return &Config{
		Port: 8080,
		Host: "0.0.0.0",
		OCR: OCRConfig{
			Language: "eng+hin",
			Profile:  "standard",
		},
		AI: AIConfig{
			Gemini:          GeminiConfig{Model: "gemini-1.5-flash"},
			OpenAI:          OpenAIConfig{Model: "gpt-4o-mini"},
			Ollama:          OllamaConfig{BaseURL: "http://localhost:11434", Model: "llava"},
			DefaultProvider: "gemini",
			Concurrency:     4,
		},
		Logging:      LoggingConfig{Level: "info", Format: "text"},
		Verification: verification.DefaultPolicy(),
	}
}

// LoadConfig reads a YAML file over DefaultConfig and then applies
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig is LoadConfig over an in-memory YAML document.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides settings with environment variables if present.
func (c *Config) ApplyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		c.Port = p
	}
	if host := os.Getenv("HOST"); host != "" {
		c.Host = host
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		c.AI.OpenAI.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		c.AI.Gemini.APIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		c.AI.Ollama.BaseURL = baseURL
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		c.AI.DefaultProvider = provider
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		c.AI.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		c.AI.OpenAI.Model = model
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		c.AI.Gemini.Model = model
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	return nil
}

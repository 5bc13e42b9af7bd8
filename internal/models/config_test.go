package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kycportal/identity-verification-service/internal/verification"
)

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
port: 9090
verification:
  name_threshold: 0.9
  placeholder_tokens: [specimen]
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 0.9, cfg.Verification.NameThreshold)
	assert.Equal(t, verification.DefaultPolicy().AddressThreshold, cfg.Verification.AddressThreshold)
	assert.Equal(t, []string{"specimen"}, cfg.Verification.PlaceholderTokens)
	assert.NoError(t, cfg.Verification.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := ParseConfig([]byte("host: 127.0.0.1\n"))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "openai", cfg.AI.DefaultProvider)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "key", cfg.AI.Gemini.APIKey)
}

func TestInvalidPort(t *testing.T) {
	t.Setenv("PORT", "eighty")

	_, err := ParseConfig(nil)
	assert.ErrorContains(t, err, "invalid PORT")
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai:\n  concurrency: 2\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.AI.Concurrency)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DOCUMENTHOR_PROVIDER", "OLLAMA_HOST", "OLLAMA_MODEL",
		"DOCUMENTHOR_API_KEY", "DOCUMENTHOR_TEMPERATURE", "DOCUMENTHOR_TOP_P",
		"DOCUMENTHOR_MAX_TOKENS", "DOCUMENTHOR_TIMEOUT", "DOCUMENTHOR_MAX_RETRIES",
		"DOCUMENTHOR_MAX_IN_FLIGHT", "DOCUMENTHOR_MAX_FILE_SIZE",
		"DOCUMENTHOR_BUDGET", "DOCUMENTHOR_BUDGET_UNIT", "DOCUMENTHOR_MAX_CHUNKS",
		"DOCUMENTHOR_EXAMPLE_BUDGET", "DOCUMENTHOR_MAX_WORKERS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Inference.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.Inference.Host)
	assert.Equal(t, "llama3.2:3b", cfg.Inference.Model)
	assert.Equal(t, 0.7, cfg.Inference.Temperature)
	assert.Equal(t, 0.9, cfg.Inference.TopP)
	assert.Equal(t, 4000, cfg.Inference.MaxTokens)
	assert.Equal(t, 300*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, 3, cfg.Inference.MaxRetries)
	assert.Equal(t, 4, cfg.Inference.MaxInFlight)

	assert.Equal(t, int64(1024*1024), cfg.Scanner.MaxFileSize)
	assert.Equal(t, 8000, cfg.Assembler.Budget)
	assert.Equal(t, "tokens", cfg.Assembler.Unit)
	assert.Equal(t, 4, cfg.Assembler.MaxChunks)
	assert.Equal(t, 16000, cfg.Dataset.ExampleBudget)
	assert.Equal(t, 4, cfg.Pipeline.MaxWorkers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCUMENTHOR_PROVIDER", "openai")
	t.Setenv("OLLAMA_HOST", "http://inference.internal:8080")
	t.Setenv("OLLAMA_MODEL", "mistral:7b")
	t.Setenv("DOCUMENTHOR_TEMPERATURE", "0.2")
	t.Setenv("DOCUMENTHOR_BUDGET", "12000")
	t.Setenv("DOCUMENTHOR_BUDGET_UNIT", "chars")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Inference.Provider)
	assert.Equal(t, "http://inference.internal:8080", cfg.Inference.Host)
	assert.Equal(t, "mistral:7b", cfg.Inference.Model)
	assert.Equal(t, 0.2, cfg.Inference.Temperature)
	assert.Equal(t, 12000, cfg.Assembler.Budget)
	assert.Equal(t, "chars", cfg.Assembler.Unit)
}

func TestLoad_InvalidNumbersFallBackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCUMENTHOR_MAX_TOKENS", "not-a-number")
	t.Setenv("DOCUMENTHOR_TEMPERATURE", "hot")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Inference.MaxTokens)
	assert.Equal(t, 0.7, cfg.Inference.Temperature)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("OLLAMA_MODEL=from-file:1b\n"), 0o644))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-file:1b", cfg.Inference.Model)
}

func TestLoad_MissingEnvFileIsNotAnError(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

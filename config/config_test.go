package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromString(t *testing.T) {
	yamlContent := `
name: helper
llm:
  type: ollama
  model: llama3.2
  temperature: 0.2
session:
  compress_threshold: 8000
  keep_recent: 4
tools:
  dir: ./scripts
  timeout: 10
  overrides:
    slow_tool:
      timeout: 120
retrieval:
  enabled: true
  provider: memory
  top_k: 3
agent:
  max_tool_iterations: 5
  enable_tools: true
`
	cfg, err := LoadConfigFromString(yamlContent)
	require.NoError(t, err)

	assert.Equal(t, "helper", cfg.Name)
	assert.Equal(t, "ollama", cfg.LLM.Type)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, 8000, cfg.Session.CompressThreshold)
	assert.Equal(t, 4, cfg.Session.KeepRecent)
	assert.Equal(t, "./scripts", cfg.Tools.Dir)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 5, cfg.Agent.MaxToolIterations)

	// Defaults fill the gaps
	assert.Equal(t, "http://localhost:11434", cfg.LLM.Host)
	assert.Equal(t, ".stanza/sessions", cfg.Session.Dir)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "stanza", cfg.Name)
	assert.Equal(t, "ollama", cfg.LLM.Type)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, 4000, cfg.Session.CompressThreshold)
	assert.Equal(t, 6, cfg.Session.KeepRecent)
	assert.Equal(t, 30, cfg.Tools.Timeout)
	assert.Equal(t, 10, cfg.Agent.MaxToolIterations)
	assert.Equal(t, "memory", cfg.Retrieval.Provider)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  type: openai
  model: gpt-4o-mini
  api_key: test-key
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Type)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.Host)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "bad llm type",
			yaml: "llm:\n  type: anthropic\n  model: x\n",
		},
		{
			name: "negative timeout",
			yaml: "tools:\n  timeout: -1\n",
		},
		{
			name: "threshold out of range",
			yaml: "retrieval:\n  provider: memory\n  similarity_threshold: 1.5\n",
		},
		{
			name: "malformed yaml",
			yaml: "llm: [unclosed\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFromString(tt.yaml)
			assert.Error(t, err)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("STANZA_TEST_KEY", "secret")
	t.Setenv("STANZA_TEST_HOST", "example.com")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"braced", "${STANZA_TEST_KEY}", "secret"},
		{"simple", "$STANZA_TEST_KEY", "secret"},
		{"with default, set", "${STANZA_TEST_HOST:-localhost}", "example.com"},
		{"with default, unset", "${STANZA_TEST_UNSET:-localhost}", "localhost"},
		{"unset braced", "${STANZA_TEST_UNSET}", ""},
		{"embedded", "https://$STANZA_TEST_HOST/v1", "https://example.com/v1"},
		{"no variables", "plain string", "plain string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestExpandEnvVarsInConfig(t *testing.T) {
	t.Setenv("STANZA_TEST_API_KEY", "sk-123")

	cfg, err := LoadConfigFromString("llm:\n  type: openai\n  model: gpt-4o-mini\n  api_key: ${STANZA_TEST_API_KEY}\n")
	require.NoError(t, err)
	assert.Equal(t, "sk-123", cfg.LLM.APIKey)
}

func TestToolsExecTimeout(t *testing.T) {
	c := ToolsConfig{
		Timeout: 30,
		Overrides: map[string]ToolOverride{
			"slow": {Timeout: 90},
		},
	}
	assert.Equal(t, 90*time.Second, c.ExecTimeout("slow"))
	assert.Equal(t, 30*time.Second, c.ExecTimeout("other"))
}

// Package config provides configuration types and loading utilities for the
// stanza agent runtime. This file contains all configuration section types.
package config

import (
	"fmt"
	"time"
)

// ============================================================================
// LLM CONFIGURATION
// ============================================================================

// LLMConfig configures the text generation provider.
type LLMConfig struct {
	// Provider type: "ollama", "openai" or "anthropic"
	Type string `yaml:"type"`

	// Model name (e.g. "llama3.2", "gpt-4o-mini")
	Model string `yaml:"model"`

	// Host or base URL of the provider API
	Host string `yaml:"host,omitempty"`

	// API key, supports ${VAR} expansion
	APIKey string `yaml:"api_key,omitempty"`

	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`

	// Request timeout in seconds
	Timeout int `yaml:"timeout,omitempty"`
}

// Validate implements Section.Validate for LLMConfig
func (c *LLMConfig) Validate() error {
	switch c.Type {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm type: %s", c.Type)
	}
	if c.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm temperature must be between 0 and 2, got %f", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("llm max_tokens cannot be negative")
	}
	return nil
}

// SetDefaults implements Section.SetDefaults for LLMConfig
func (c *LLMConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	if c.Model == "" {
		switch c.Type {
		case "openai":
			c.Model = "gpt-4o-mini"
		case "anthropic":
			c.Model = "claude-3-5-haiku-latest"
		default:
			c.Model = "llama3.2"
		}
	}
	if c.Host == "" {
		switch c.Type {
		case "openai":
			c.Host = "https://api.openai.com/v1"
		case "anthropic":
			c.Host = "https://api.anthropic.com"
		default:
			c.Host = "http://localhost:11434"
		}
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.Timeout == 0 {
		c.Timeout = 120
	}
}

// RequestTimeout returns the configured timeout as a duration.
func (c *LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// ============================================================================
// EMBEDDER CONFIGURATION
// ============================================================================

// EmbedderConfig configures the embedding provider used by retrieval.
type EmbedderConfig struct {
	// Provider type: "ollama" or "openai"
	Type string `yaml:"type"`

	// Model name (e.g. "nomic-embed-text", "text-embedding-3-small")
	Model string `yaml:"model"`

	Host   string `yaml:"host,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`

	// Expected embedding dimensionality, 0 means accept the provider's
	Dimension int `yaml:"dimension,omitempty"`

	// Request timeout in seconds
	Timeout int `yaml:"timeout,omitempty"`
}

// Validate implements Section.Validate for EmbedderConfig
func (c *EmbedderConfig) Validate() error {
	switch c.Type {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unsupported embedder type: %s", c.Type)
	}
	if c.Model == "" {
		return fmt.Errorf("embedder model is required")
	}
	if c.Dimension < 0 {
		return fmt.Errorf("embedder dimension cannot be negative")
	}
	return nil
}

// SetDefaults implements Section.SetDefaults for EmbedderConfig
func (c *EmbedderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	if c.Model == "" {
		switch c.Type {
		case "openai":
			c.Model = "text-embedding-3-small"
		default:
			c.Model = "nomic-embed-text"
		}
	}
	if c.Host == "" {
		switch c.Type {
		case "openai":
			c.Host = "https://api.openai.com/v1"
		default:
			c.Host = "http://localhost:11434"
		}
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
}

// RequestTimeout returns the configured timeout as a duration.
func (c *EmbedderConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// ============================================================================
// SESSION CONFIGURATION
// ============================================================================

// SessionConfig configures conversation persistence and compression.
type SessionConfig struct {
	// Directory where session files are stored
	Dir string `yaml:"dir,omitempty"`

	// Token threshold above which a session is compressed
	CompressThreshold int `yaml:"compress_threshold,omitempty"`

	// Number of most recent messages preserved verbatim during compression
	KeepRecent int `yaml:"keep_recent,omitempty"`
}

// Validate implements Section.Validate for SessionConfig
func (c *SessionConfig) Validate() error {
	if c.CompressThreshold < 0 {
		return fmt.Errorf("session compress_threshold cannot be negative")
	}
	if c.KeepRecent < 0 {
		return fmt.Errorf("session keep_recent cannot be negative")
	}
	return nil
}

// SetDefaults implements Section.SetDefaults for SessionConfig
func (c *SessionConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = ".stanza/sessions"
	}
	if c.CompressThreshold == 0 {
		c.CompressThreshold = 4000
	}
	if c.KeepRecent == 0 {
		c.KeepRecent = 6
	}
}

// ============================================================================
// TOOLS CONFIGURATION
// ============================================================================

// ToolsConfig configures discovery and execution of external tool scripts.
type ToolsConfig struct {
	// Directory scanned for tool scripts
	Dir string `yaml:"dir,omitempty"`

	// Default execution timeout in seconds, overridable per tool
	Timeout int `yaml:"timeout,omitempty"`

	// Watch reloads the registry when scripts change on disk
	Watch bool `yaml:"watch,omitempty"`

	// Per-tool overrides keyed by tool name
	Overrides map[string]ToolOverride `yaml:"overrides,omitempty"`
}

// ToolOverride carries per-tool settings that take precedence over the
// directory-wide defaults.
type ToolOverride struct {
	// Timeout in seconds for this tool only
	Timeout int `yaml:"timeout,omitempty" mapstructure:"timeout"`

	// Disabled tools are parsed but never registered
	Disabled bool `yaml:"disabled,omitempty" mapstructure:"disabled"`
}

// Validate implements Section.Validate for ToolsConfig
func (c *ToolsConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("tools timeout cannot be negative")
	}
	for name, o := range c.Overrides {
		if o.Timeout < 0 {
			return fmt.Errorf("tool '%s' override timeout cannot be negative", name)
		}
	}
	return nil
}

// SetDefaults implements Section.SetDefaults for ToolsConfig
func (c *ToolsConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "./tools"
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.Overrides == nil {
		c.Overrides = make(map[string]ToolOverride)
	}
}

// ExecTimeout returns the execution timeout for the named tool, honoring any
// per-tool override.
func (c *ToolsConfig) ExecTimeout(name string) time.Duration {
	if o, ok := c.Overrides[name]; ok && o.Timeout > 0 {
		return time.Duration(o.Timeout) * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// ============================================================================
// RETRIEVAL CONFIGURATION
// ============================================================================

// RetrievalConfig configures the semantic retrieval engine.
type RetrievalConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// Engine backend: "memory" or "chromem"
	Provider string `yaml:"provider,omitempty"`

	// Persistence path for the chromem backend
	PersistPath string `yaml:"persist_path,omitempty"`

	// Maximum number of results returned per query
	TopK int `yaml:"top_k,omitempty"`

	// Minimum cosine similarity for a result to be included
	SimilarityThreshold float64 `yaml:"similarity_threshold,omitempty"`
}

// Validate implements Section.Validate for RetrievalConfig
func (c *RetrievalConfig) Validate() error {
	switch c.Provider {
	case "memory", "chromem":
	default:
		return fmt.Errorf("unsupported retrieval provider: %s", c.Provider)
	}
	if c.TopK < 0 {
		return fmt.Errorf("retrieval top_k cannot be negative")
	}
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval similarity_threshold must be between -1 and 1, got %f", c.SimilarityThreshold)
	}
	return nil
}

// SetDefaults implements Section.SetDefaults for RetrievalConfig
func (c *RetrievalConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "memory"
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
}

// ============================================================================
// AGENT CONFIGURATION
// ============================================================================

// AgentConfig configures the orchestration loop.
type AgentConfig struct {
	// System prompt prepended to every request
	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// Maximum tool invocations per user turn
	MaxToolIterations int `yaml:"max_tool_iterations,omitempty"`

	EnableTools     bool `yaml:"enable_tools,omitempty"`
	EnableRetrieval bool `yaml:"enable_retrieval,omitempty"`

	// Streaming enables token-by-token output for the final response
	Streaming bool `yaml:"streaming,omitempty"`
}

// Validate implements Section.Validate for AgentConfig
func (c *AgentConfig) Validate() error {
	if c.MaxToolIterations < 1 {
		return fmt.Errorf("agent max_tool_iterations must be at least 1, got %d", c.MaxToolIterations)
	}
	return nil
}

// SetDefaults implements Section.SetDefaults for AgentConfig
func (c *AgentConfig) SetDefaults() {
	if c.MaxToolIterations == 0 {
		c.MaxToolIterations = 10
	}
}

// ============================================================================
// LOGGER CONFIGURATION
// ============================================================================

// LoggerConfig configures structured logging.
type LoggerConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level,omitempty"`

	// Output: "stderr", "stdout", or a file path
	Output string `yaml:"output,omitempty"`

	// Format: "text", "json", or "simple"
	Format string `yaml:"format,omitempty"`
}

// Validate implements Section.Validate for LoggerConfig
func (c *LoggerConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	switch c.Format {
	case "text", "json", "simple":
	default:
		return fmt.Errorf("invalid log format: %s", c.Format)
	}
	return nil
}

// SetDefaults implements Section.SetDefaults for LoggerConfig
func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

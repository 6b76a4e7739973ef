// Package config provides configuration types and loading utilities for the
// stanza agent runtime. This file contains the main unified configuration
// entry point.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// MAIN UNIFIED CONFIGURATION
// ============================================================================

// Config is the complete runtime configuration. A single YAML file is the
// entry point for the whole agent: provider, sessions, tools, retrieval.
type Config struct {
	// Name of the agent, used in prompts and log lines
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`

	LLM       LLMConfig       `yaml:"llm,omitempty"`
	Embedder  EmbedderConfig  `yaml:"embedder,omitempty"`
	Session   SessionConfig   `yaml:"session,omitempty"`
	Tools     ToolsConfig     `yaml:"tools,omitempty"`
	Retrieval RetrievalConfig `yaml:"retrieval,omitempty"`
	Agent     AgentConfig     `yaml:"agent,omitempty"`
	Logger    LoggerConfig    `yaml:"logger,omitempty"`
}

// Validate implements Section.Validate for Config
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm validation failed: %w", err)
	}
	if c.Retrieval.Enabled || c.Agent.EnableRetrieval {
		if err := c.Embedder.Validate(); err != nil {
			return fmt.Errorf("embedder validation failed: %w", err)
		}
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session validation failed: %w", err)
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools validation failed: %w", err)
	}
	if err := c.Retrieval.Validate(); err != nil {
		return fmt.Errorf("retrieval validation failed: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger validation failed: %w", err)
	}
	return nil
}

// SetDefaults implements Section.SetDefaults for Config
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = "stanza"
	}
	c.LLM.SetDefaults()
	c.Embedder.SetDefaults()
	c.Session.SetDefaults()
	c.Tools.SetDefaults()
	c.Retrieval.SetDefaults()
	c.Agent.SetDefaults()
	c.Logger.SetDefaults()
}

// ============================================================================
// CONFIGURATION LOADING
// ============================================================================

// LoadConfig loads the complete configuration from a YAML file, expanding
// environment variable references before decoding. Defaults are applied and
// the result is validated.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := LoadConfigFromString(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", filePath, err)
	}
	return cfg, nil
}

// LoadConfigFromString loads configuration from a YAML string.
func LoadConfigFromString(yamlContent string) (*Config, error) {
	// Decode into generic data first so env expansion sees every string,
	// then re-encode into the typed struct.
	var raw map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	expanded := ExpandEnvVarsInData(raw)

	reEncoded, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(reEncoded, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// DefaultConfig returns a zero-config setup: local ollama, default session
// and tool directories, retrieval disabled.
func DefaultConfig() *Config {
	var config Config
	config.SetDefaults()
	return &config
}

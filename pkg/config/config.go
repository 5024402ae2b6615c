// Package config provides configuration structures and loading logic for
// the orchestration core.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the global configuration.
type Config struct {
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Policy    PolicyConfig    `yaml:"policy"`
	Cards     CardsConfig     `yaml:"cards"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// KnowledgeConfig selects the knowledge store backend.
type KnowledgeConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`
	// Path is the database file when Backend is "sqlite".
	Path string `yaml:"path"`
}

// SandboxConfig bounds untrusted code execution.
type SandboxConfig struct {
	WorkDir        string `yaml:"work_dir"`
	MaxOutputKB    int    `yaml:"max_output_kb"`
	DefaultTimeout int    `yaml:"default_timeout_ms"`
}

// PolicyConfig tunes the policy engine.
type PolicyConfig struct {
	// DenyClasses lists PII classes that force a deny instead of a redact.
	DenyClasses []string `yaml:"deny_classes"`
	// RegoDir holds optional .rego policy modules loaded at startup.
	RegoDir string `yaml:"rego_dir"`
}

// CardsConfig locates the card catalog.
type CardsConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a file and applies environment variable
// overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Knowledge: KnowledgeConfig{Backend: "memory"},
		Sandbox: SandboxConfig{
			MaxOutputKB:    64,
			DefaultTimeout: 10000,
		},
		Logging: LoggingConfig{Level: "info"},
	}

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CONCORD_KNOWLEDGE_BACKEND"); val != "" {
		cfg.Knowledge.Backend = val
	}
	if val := os.Getenv("CONCORD_KNOWLEDGE_PATH"); val != "" {
		cfg.Knowledge.Path = val
	}
	if val := os.Getenv("CONCORD_SANDBOX_WORK_DIR"); val != "" {
		cfg.Sandbox.WorkDir = val
	}
	if val := os.Getenv("CONCORD_SANDBOX_MAX_OUTPUT_KB"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Sandbox.MaxOutputKB = n
		}
	}
	if val := os.Getenv("CONCORD_POLICY_DENY_CLASSES"); val != "" {
		cfg.Policy.DenyClasses = splitAndTrim(val)
	}
	if val := os.Getenv("CONCORD_CARDS_DIR"); val != "" {
		cfg.Cards.Dir = val
	}
	if val := os.Getenv("CONCORD_CARDS_WATCH"); val == "true" {
		cfg.Cards.Watch = true
	}
	if val := os.Getenv("CONCORD_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Knowledge.Backend {
	case "memory":
	case "sqlite":
		if c.Knowledge.Path == "" {
			return fmt.Errorf("knowledge.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown knowledge backend %q", c.Knowledge.Backend)
	}

	if c.Sandbox.MaxOutputKB <= 0 {
		return fmt.Errorf("sandbox.max_output_kb must be positive")
	}
	if c.Sandbox.DefaultTimeout <= 0 {
		return fmt.Errorf("sandbox.default_timeout_ms must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Knowledge.Backend != "memory" {
		t.Fatalf("backend: %q", cfg.Knowledge.Backend)
	}
	if cfg.Sandbox.MaxOutputKB != 64 || cfg.Sandbox.DefaultTimeout != 10000 {
		t.Fatalf("sandbox defaults: %+v", cfg.Sandbox)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("level: %q", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concord.yaml")
	data := `
knowledge:
  backend: sqlite
  path: /tmp/kb.db
sandbox:
  max_output_kb: 128
policy:
  deny_classes: [card, national_id]
cards:
  dir: ./cards
  watch: true
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Knowledge.Backend != "sqlite" || cfg.Knowledge.Path != "/tmp/kb.db" {
		t.Fatalf("knowledge: %+v", cfg.Knowledge)
	}
	if cfg.Sandbox.MaxOutputKB != 128 {
		t.Fatalf("max_output_kb: %d", cfg.Sandbox.MaxOutputKB)
	}
	// Omitted fields keep their defaults.
	if cfg.Sandbox.DefaultTimeout != 10000 {
		t.Fatalf("default_timeout_ms: %d", cfg.Sandbox.DefaultTimeout)
	}
	if len(cfg.Policy.DenyClasses) != 2 || cfg.Policy.DenyClasses[0] != "card" {
		t.Fatalf("deny_classes: %v", cfg.Policy.DenyClasses)
	}
	if !cfg.Cards.Watch || cfg.Cards.Dir != "./cards" {
		t.Fatalf("cards: %+v", cfg.Cards)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level: %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONCORD_KNOWLEDGE_BACKEND", "sqlite")
	t.Setenv("CONCORD_KNOWLEDGE_PATH", "/tmp/override.db")
	t.Setenv("CONCORD_SANDBOX_MAX_OUTPUT_KB", "32")
	t.Setenv("CONCORD_POLICY_DENY_CLASSES", "email, phone")
	t.Setenv("CONCORD_CARDS_WATCH", "true")
	t.Setenv("CONCORD_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Knowledge.Backend != "sqlite" || cfg.Knowledge.Path != "/tmp/override.db" {
		t.Fatalf("knowledge: %+v", cfg.Knowledge)
	}
	if cfg.Sandbox.MaxOutputKB != 32 {
		t.Fatalf("max_output_kb: %d", cfg.Sandbox.MaxOutputKB)
	}
	if len(cfg.Policy.DenyClasses) != 2 || cfg.Policy.DenyClasses[1] != "phone" {
		t.Fatalf("deny_classes: %v", cfg.Policy.DenyClasses)
	}
	if !cfg.Cards.Watch {
		t.Fatalf("watch not applied")
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("level: %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Knowledge.Backend = "redis" }},
		{"sqlite without path", func(c *Config) { c.Knowledge.Backend = "sqlite"; c.Knowledge.Path = "" }},
		{"zero output limit", func(c *Config) { c.Sandbox.MaxOutputKB = 0 }},
		{"zero timeout", func(c *Config) { c.Sandbox.DefaultTimeout = 0 }},
		{"unknown level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

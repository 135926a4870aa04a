package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/gamehub/internal/core"
)

func TestEmbeddedDefaultsMatchHardcoded(t *testing.T) {
	cfg := base()
	def := Default()

	if cfg.Sessions.MaxConcurrent != def.Sessions.MaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", cfg.Sessions.MaxConcurrent, def.Sessions.MaxConcurrent)
	}
	if cfg.Sessions.IdleTimeout != def.Sessions.IdleTimeout {
		t.Errorf("IdleTimeout = %v, want %v", cfg.Sessions.IdleTimeout, def.Sessions.IdleTimeout)
	}
	if cfg.AI.DecayRate != def.AI.DecayRate {
		t.Errorf("DecayRate = %g, want %g", cfg.AI.DecayRate, def.AI.DecayRate)
	}
	if cfg.AI.MinActionsForPrediction != def.AI.MinActionsForPrediction {
		t.Errorf("MinActionsForPrediction = %d, want %d", cfg.AI.MinActionsForPrediction, def.AI.MinActionsForPrediction)
	}
	if got := cfg.Limits.For("simple_test", cfg.Limits.Default).ScoreLimit; got != 100 {
		t.Errorf("simple_test score limit = %d, want 100", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadCustomPathOverridesOnlyNamedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.yaml")
	doc := []byte("sessions:\n  max_concurrent: 3\n  idle_timeout: 90s\nai:\n  persistence: none\n")
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Sessions.MaxConcurrent != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", cfg.Sessions.MaxConcurrent)
	}
	if cfg.Sessions.IdleTimeout != 90*time.Second {
		t.Errorf("IdleTimeout = %v, want 90s", cfg.Sessions.IdleTimeout)
	}
	if cfg.Sessions.HistorySize != 50 {
		t.Errorf("HistorySize = %d, want default 50", cfg.Sessions.HistorySize)
	}
	if cfg.AI.Persistence != "none" {
		t.Errorf("Persistence = %q, want none", cfg.AI.Persistence)
	}
}

func TestLoadMissingCustomPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing custom config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.Sessions.MaxConcurrent = 0 }},
		{"zero history", func(c *Config) { c.Sessions.HistorySize = 0 }},
		{"learning rate above one", func(c *Config) { c.AI.LearningRate = 1.5 }},
		{"decay rate zero", func(c *Config) { c.AI.DecayRate = 0 }},
		{"floor above initial", func(c *Config) { c.AI.MinExploration = 0.9 }},
		{"unknown persistence", func(c *Config) { c.AI.Persistence = "redis" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLimitsFor(t *testing.T) {
	l := LimitsConfig{
		Default: Default().Limits.Default,
		Games:   map[string]core.Limits{"fast": {TimeLimit: time.Minute}},
	}
	got := l.For("fast", core.Limits{ScoreLimit: 500})
	if got.TimeLimit != time.Minute || got.ScoreLimit != 500 || got.Lives != 3 {
		t.Errorf("For(fast) = %+v", got)
	}
}

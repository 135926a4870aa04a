package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads the hub configuration.
// Search order: customPath -> ~/.gamehub/config.yaml -> ./configs/gamehub.yaml -> embedded default.
// Files are decoded on top of the defaults, so a partial document only overrides what it names.
func Load(customPath string) (Config, error) {
	cfg := base()

	// Try custom path first
	if customPath != "" {
		data, err := os.ReadFile(ExpandHome(customPath))
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
		return cfg, cfg.Validate()
	}

	// Try user config directory
	if userCfgPath := userConfigPath("config.yaml"); userCfgPath != "" {
		if data, err := os.ReadFile(userCfgPath); err == nil {
			candidate := base()
			if err := yaml.Unmarshal(data, &candidate); err == nil {
				return candidate, candidate.Validate()
			}
		}
	}

	// Try local configs directory
	if data, err := os.ReadFile("configs/gamehub.yaml"); err == nil {
		candidate := base()
		if err := yaml.Unmarshal(data, &candidate); err == nil {
			return candidate, candidate.Validate()
		}
	}

	return cfg, nil
}

// base returns the embedded default document, falling back to the hardcoded one.
func base() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects configurations the hub cannot run with.
func (c Config) Validate() error {
	if c.Sessions.MaxConcurrent <= 0 {
		return fmt.Errorf("config: sessions.max_concurrent must be positive, got %d", c.Sessions.MaxConcurrent)
	}
	if c.Sessions.HistorySize <= 0 {
		return fmt.Errorf("config: sessions.history_size must be positive, got %d", c.Sessions.HistorySize)
	}
	if c.AI.LearningRate <= 0 || c.AI.LearningRate > 1 {
		return fmt.Errorf("config: ai.learning_rate must be in (0, 1], got %g", c.AI.LearningRate)
	}
	if c.AI.DecayRate <= 0 || c.AI.DecayRate > 1 {
		return fmt.Errorf("config: ai.decay_rate must be in (0, 1], got %g", c.AI.DecayRate)
	}
	if c.AI.MinExploration < 0 || c.AI.MinExploration > c.AI.InitialExploration {
		return fmt.Errorf("config: ai.min_exploration must be in [0, initial_exploration], got %g", c.AI.MinExploration)
	}
	switch c.AI.Persistence {
	case "file", "sqlite", "none":
	default:
		return fmt.Errorf("config: unknown ai.persistence %q", c.AI.Persistence)
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], string(filepath.Separator)))
}

// userConfigPath returns the path to user config file, or empty if home is unavailable.
func userConfigPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gamehub", filename)
}

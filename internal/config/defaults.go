package config

import (
	_ "embed"
	"time"

	"github.com/vovakirdan/gamehub/internal/core"
)

//go:embed defaults/gamehub.yaml
var defaultYAML []byte

// DefaultYAML returns the embedded default configuration document.
func DefaultYAML() []byte {
	return defaultYAML
}

// Default returns the hardcoded configuration.
// It mirrors defaults/gamehub.yaml and is used when the embedded copy cannot be parsed.
func Default() Config {
	return Config{
		Sessions: SessionsConfig{
			MaxConcurrent:  50,
			IdleTimeout:    10 * time.Minute,
			ReapInterval:   30 * time.Second,
			CleanupTimeout: 5 * time.Second,
			HistorySize:    50,
			EventBuffer:    256,
			TrainBuffer:    64,
		},
		Limits: LimitsConfig{
			Default: core.Limits{
				TimeLimit: 30 * time.Minute,
				Lives:     3,
			},
			Games: map[string]core.Limits{
				"simple_test": {ScoreLimit: 100},
				"2048":        {Lives: 1},
			},
		},
		AI: AIConfig{
			Enabled:                 true,
			Persistence:             "file",
			ModelDir:                "~/.gamehub/models",
			LearningRate:            0.1,
			InitialExploration:      0.3,
			DecayRate:               0.995,
			MinExploration:          0.05,
			MinActionsForPrediction: 10,
			SuccessReward:           0.5,
			FailurePenalty:          -0.5,
			ScoreScale:              0.01,
			ConfidenceVisits:        20,
			MaxConfidence:           0.95,
			ExplorationConfidence:   0.1,
			MaxEvents:               500,
			FlushInterval:           30 * time.Second,
		},
		Browser: BrowserConfig{
			Enabled:     true,
			Headless:    true,
			Timeout:     10 * time.Second,
			Viewport:    Viewport{Width: 1280, Height: 720},
			ScoreScript: "window.gameScore ?? 0",
		},
		Storage: StorageConfig{
			DBPath: "~/.gamehub/gamehub.db",
		},
		SSH: SSHConfig{
			Address:     ":23235",
			IdleTimeout: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Prefix: "gamehub",
		},
	}
}

// Package config provides YAML-based configuration loading for the game hub:
// session capacity and timeouts, per-game limits, AI tuning constants,
// browser engine settings, storage and the SSH console.
package config

import (
	"time"

	"github.com/vovakirdan/gamehub/internal/core"
)

// Config is the root configuration document.
type Config struct {
	Sessions SessionsConfig `yaml:"sessions"`
	Limits   LimitsConfig   `yaml:"limits"`
	AI       AIConfig       `yaml:"ai"`
	Browser  BrowserConfig  `yaml:"browser"`
	Storage  StorageConfig  `yaml:"storage"`
	SSH      SSHConfig      `yaml:"ssh"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SessionsConfig bounds the session registry.
type SessionsConfig struct {
	MaxConcurrent  int           `yaml:"max_concurrent"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	ReapInterval   time.Duration `yaml:"reap_interval"`
	CleanupTimeout time.Duration `yaml:"cleanup_timeout"`
	HistorySize    int           `yaml:"history_size"`
	EventBuffer    int           `yaml:"event_buffer"`
	TrainBuffer    int           `yaml:"train_buffer"`
}

// LimitsConfig holds the default game limits and per-game overrides.
type LimitsConfig struct {
	Default core.Limits            `yaml:"default"`
	Games   map[string]core.Limits `yaml:"games"`
}

// For returns the limits for gameID: defaults, then the game definition's own
// limits, then configured overrides.
func (l LimitsConfig) For(gameID string, gameDefaults core.Limits) core.Limits {
	out := l.Default.Merge(gameDefaults)
	if o, ok := l.Games[gameID]; ok {
		out = out.Merge(o)
	}
	return out
}

// AIConfig holds the learning and exploration constants of the game AI.
type AIConfig struct {
	Enabled                 bool          `yaml:"enabled"`
	Persistence             string        `yaml:"persistence"` // "file", "sqlite" or "none"
	ModelDir                string        `yaml:"model_dir"`
	LearningRate            float64       `yaml:"learning_rate"`
	InitialExploration      float64       `yaml:"initial_exploration"`
	DecayRate               float64       `yaml:"decay_rate"`
	MinExploration          float64       `yaml:"min_exploration"`
	MinActionsForPrediction int           `yaml:"min_actions_for_prediction"`
	SuccessReward           float64       `yaml:"success_reward"`
	FailurePenalty          float64       `yaml:"failure_penalty"`
	ScoreScale              float64       `yaml:"score_scale"`
	ConfidenceVisits        int           `yaml:"confidence_visits"`
	MaxConfidence           float64       `yaml:"max_confidence"`
	ExplorationConfidence   float64       `yaml:"exploration_confidence"`
	MaxEvents               int           `yaml:"max_events"`
	FlushInterval           time.Duration `yaml:"flush_interval"`
}

// BrowserConfig configures the headless browser engine.
type BrowserConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Headless     bool          `yaml:"headless"`
	Install      bool          `yaml:"install"` // install the playwright driver on start
	Timeout      time.Duration `yaml:"timeout"`
	Viewport     Viewport      `yaml:"viewport"`
	ScoreScript  string        `yaml:"score_script"`
	StaticServer StaticServer  `yaml:"static_server"`
	Games        []BrowserGame `yaml:"games"`
}

// Viewport is the page size in CSS pixels.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// StaticServer describes the collaborator that serves browser game assets.
// IndexURL, when set, returns a JSON array of {id, url, title}.
type StaticServer struct {
	IndexURL string `yaml:"index_url"`
}

// BrowserGame is a statically configured web game.
type BrowserGame struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	URL   string `yaml:"url" json:"url"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// SSHConfig configures the SSH console.
type SSHConfig struct {
	Address     string        `yaml:"address"`
	HostKey     string        `yaml:"host_key"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// LoggingConfig configures the shared logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Prefix string `yaml:"prefix"`
}

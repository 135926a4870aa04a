// Package core defines the value types shared by games, sessions, the AI and
// the manager: game state snapshots, action payloads and results, and the
// error taxonomy.
package core

import "time"

// Phase is a position in the game lifecycle.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseInitialized
	PhaseRunning
	PhasePaused
	PhaseEnded
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitialized:
		return "initialized"
	case PhaseRunning:
		return "running"
	case PhasePaused:
		return "paused"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// End reasons produced by the game machine, the session manager and the reaper.
const (
	ReasonTimeLimit     = "timeLimit"
	ReasonScoreLimit    = "scoreLimit"
	ReasonGameOver      = "gameOver"
	ReasonManual        = "manual"
	ReasonIdleTimeout   = "idle_timeout"
	ReasonEngineFailure = "engine_failure"
	ReasonShutdown      = "shutdown"
)

// Limits bounds a single play-through. Zero values disable the limit.
type Limits struct {
	TimeLimit  time.Duration `yaml:"time_limit" json:"timeLimit,omitempty"`
	ScoreLimit int           `yaml:"score_limit" json:"scoreLimit,omitempty"`
	Lives      int           `yaml:"lives" json:"lives,omitempty"`
}

// Merge returns l with every non-zero field of o applied on top.
func (l Limits) Merge(o Limits) Limits {
	if o.TimeLimit != 0 {
		l.TimeLimit = o.TimeLimit
	}
	if o.ScoreLimit != 0 {
		l.ScoreLimit = o.ScoreLimit
	}
	if o.Lives != 0 {
		l.Lives = o.Lives
	}
	return l
}

// GameState is a snapshot of a running game.
// Only the game machine mutates the live copy; everything else sees snapshots.
type GameState struct {
	Score       int            `json:"score"`
	Level       int            `json:"level"`
	Lives       int            `json:"lives"`
	Elapsed     time.Duration  `json:"elapsed"`
	ActionCount int            `json:"actionCount"`
	Running     bool           `json:"running"`
	Paused      bool           `json:"paused"`
	Ended       bool           `json:"ended"`
	EndReason   string         `json:"endReason,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// Clone returns a copy that shares nothing mutable with s.
func (s GameState) Clone() GameState {
	c := s
	if s.Fields != nil {
		c.Fields = make(map[string]any, len(s.Fields))
		for k, v := range s.Fields {
			c.Fields[k] = v
		}
	}
	return c
}

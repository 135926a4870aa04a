// Package events carries manager notifications to the chat layer.
package events

import "time"

// Event is a notification emitted by the session manager.
type Event interface {
	event()
}

// SessionStartedEvent is emitted once a session is running.
type SessionStartedEvent struct {
	SessionID string
	UserID    string
	GameID    string
	At        time.Time
}

func (SessionStartedEvent) event() {}

// SessionEndedEvent is emitted once per session, whatever ended it.
type SessionEndedEvent struct {
	SessionID  string
	UserID     string
	GameID     string
	Reason     string
	FinalScore int
	Actions    int
	Duration   time.Duration
	// Leaked is set when cleanup did not finish within the cleanup timeout.
	Leaked bool
	At     time.Time
}

func (SessionEndedEvent) event() {}

// EngineFailureEvent is emitted when the shared browser process dies.
type EngineFailureEvent struct {
	Err              error
	AffectedSessions []string
	At               time.Time
}

func (EngineFailureEvent) event() {}

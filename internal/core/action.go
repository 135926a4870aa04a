package core

import (
	"fmt"
	"strconv"
	"time"
)

// ActionData carries the arguments of an action.
// Values come from JSON, YAML or console input, so numbers may arrive as
// int, float64 or string.
type ActionData map[string]any

// Int returns the named value as an int.
func (d ActionData) Int(key string) (int, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// Float returns the named value as a float64.
func (d ActionData) Float(key string) (float64, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String returns the named value formatted as a string.
func (d ActionData) String(key string) (string, bool) {
	v, ok := d[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Clone returns a shallow copy of d.
func (d ActionData) Clone() ActionData {
	if d == nil {
		return nil
	}
	c := make(ActionData, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// Result codes attached to unsuccessful actions.
const (
	CodeOK            = ""
	CodeValidation    = "validation"
	CodeFailed        = "failed"
	CodeNotRunning    = "not_running"
	CodePaused        = "paused"
	CodeSessionEnded  = "session_ended"
	CodeEngineFailure = "engine_failure"
)

// ActionResult is returned for every action, successful or not.
type ActionResult struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	ScoreDelta int       `json:"scoreDelta"`
	Code       string    `json:"code,omitempty"`
	State      GameState `json:"state"`

	// Err keeps the underlying failure for callers that need to escalate it.
	Err error `json:"-"`
}

// Ended reports whether the action left the game in its terminal phase.
func (r ActionResult) Ended() bool {
	return r.State.Ended
}

// ActionRecord is one entry of a session's action history.
type ActionRecord struct {
	Action    string       `json:"action"`
	Data      ActionData   `json:"data,omitempty"`
	Result    ActionResult `json:"result"`
	Timestamp time.Time    `json:"timestamp"`
}

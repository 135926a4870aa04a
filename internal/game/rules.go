// Package game implements the game lifecycle state machine shared by every
// game type. A Base drives a pluggable Rules implementation through
// Uninitialized -> Initialized -> Running <-> Paused -> Ended, owns the
// GameState and enforces time, score and life limits.
package game

import (
	"context"
	"math/rand"
	"time"

	"github.com/vovakirdan/gamehub/internal/core"
)

// Outcome is what a successfully applied action did to the shared state.
type Outcome struct {
	Message    string
	ScoreDelta int
	LivesDelta int
	LevelDelta int
}

// Rules is the game-specific half of a game. Implementations hold their own
// board or page state; the Base owns score, lives, level and timing.
// Rules are called with the Base lock held and never concurrently.
type Rules interface {
	// Setup resets the rules to their initial position.
	Setup(rng *rand.Rand) error

	// Actions lists the actions an automated player may choose from
	// without arguments.
	Actions() []string

	// Validate rejects malformed or illegal actions without mutating anything.
	Validate(action string, data core.ActionData) error

	// Apply performs a validated action.
	Apply(ctx context.Context, action string, data core.ActionData) (Outcome, error)

	// Observe returns the game-specific fields that describe the position.
	// Used for snapshots and AI state signatures.
	Observe() map[string]any
}

// EndChecker is implemented by rules with their own terminal conditions.
type EndChecker interface {
	CheckEnd(state core.GameState) (reason string, ended bool)
}

// Pauser is implemented by rules that run internal timers.
type Pauser interface {
	OnPause()
	OnResume()
}

// Page is the browser surface available to browser-hosted rules.
type Page interface {
	Click(ctx context.Context, target string) error
	Type(ctx context.Context, target, text string) error
	PressKey(ctx context.Context, key string) error
	Scroll(ctx context.Context, dx, dy float64) error
	Screenshot(ctx context.Context) ([]byte, error)
	Evaluate(ctx context.Context, script string) (any, error)
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
}

// PageAware is implemented by rules that need a browser page.
// The session attaches the page before the game starts.
type PageAware interface {
	AttachPage(p Page)
}

// SignatureFielder is implemented by rules whose AI state signature should
// use a coarser view than Observe.
type SignatureFielder interface {
	SignatureFields() map[string]any
}

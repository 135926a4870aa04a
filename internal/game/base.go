package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/vovakirdan/gamehub/internal/core"
)

// ErrInvalidTransition is returned when a lifecycle call is made from the wrong phase.
var ErrInvalidTransition = errors.New("game: invalid phase transition")

// Options configures a Base.
type Options struct {
	Limits core.Limits
	Seed   int64            // 0 means seed from the clock
	Now    func() time.Time // nil means time.Now
}

// Summary is the final record of a play-through.
type Summary struct {
	GameID           string         `json:"gameId"`
	Reason           string         `json:"reason"`
	FinalScore       int            `json:"finalScore"`
	BestScore        int            `json:"bestScore"`
	Level            int            `json:"level"`
	Actions          int            `json:"actions"`
	Succeeded        int            `json:"succeeded"`
	Failed           int            `json:"failed"`
	SuccessRate      float64        `json:"successRate"`
	ActionsPerMinute float64        `json:"actionsPerMinute"`
	Duration         time.Duration  `json:"duration"`
	Final            core.GameState `json:"final"`
}

// Base is the game state machine. Safe for concurrent use; actions are
// applied one at a time.
type Base struct {
	mu     sync.Mutex
	gameID string
	rules  Rules
	limits core.Limits
	seed   int64
	now    func() time.Time

	phase       core.Phase
	state       core.GameState
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	endedAt     time.Time

	succeeded int
	failed    int
	bestScore int
	summary   Summary
}

// New creates a game machine for rules. The game starts Uninitialized.
func New(gameID string, rules Rules, opts Options) *Base {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Base{
		gameID: gameID,
		rules:  rules,
		limits: opts.Limits,
		seed:   opts.Seed,
		now:    now,
		phase:  core.PhaseUninitialized,
	}
}

// ID returns the game id.
func (b *Base) ID() string {
	return b.gameID
}

// Rules returns the game-specific rules.
func (b *Base) Rules() Rules {
	return b.rules
}

// Limits returns the limits this game enforces.
func (b *Base) Limits() core.Limits {
	return b.limits
}

// Initialize resets the state to its defaults and sets up the rules.
// Allowed from Uninitialized or Initialized.
func (b *Base) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase != core.PhaseUninitialized && b.phase != core.PhaseInitialized {
		return fmt.Errorf("%w: initialize from %s", ErrInvalidTransition, b.phase)
	}

	seed := b.seed
	if seed == 0 {
		seed = b.now().UnixNano()
	}
	if err := b.rules.Setup(rand.New(rand.NewSource(seed))); err != nil {
		return fmt.Errorf("game: setup %s: %w", b.gameID, err)
	}

	b.state = core.GameState{
		Level:  1,
		Lives:  b.limits.Lives,
		Fields: b.rules.Observe(),
	}
	b.succeeded, b.failed, b.bestScore = 0, 0, 0
	b.pausedTotal = 0
	b.phase = core.PhaseInitialized
	return nil
}

// Start transitions Initialized -> Running and records the start time.
func (b *Base) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase != core.PhaseInitialized {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, b.phase)
	}
	b.startedAt = b.now()
	b.phase = core.PhaseRunning
	b.state.Running = true
	return nil
}

// ProcessAction validates, applies and records an action, then checks the
// end conditions. It never panics and never returns an error: failures are
// reported in the result.
func (b *Base) ProcessAction(ctx context.Context, action string, data core.ActionData) core.ActionResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.phase {
	case core.PhaseRunning:
	case core.PhaseEnded:
		return b.reject(core.CodeSessionEnded, "game has ended")
	case core.PhasePaused:
		return b.reject(core.CodePaused, "game is paused")
	default:
		return b.reject(core.CodeNotRunning, fmt.Sprintf("game is %s", b.phase))
	}

	if err := b.rules.Validate(action, data); err != nil {
		return b.reject(core.CodeValidation, err.Error())
	}

	outcome, err := b.apply(ctx, action, data)
	if err != nil {
		b.failed++
		b.state.ActionCount++
		b.refresh()
		res := b.reject(core.CodeFailed, err.Error())
		res.Err = err
		if errors.Is(err, core.ErrEngineFailure) {
			res.Code = core.CodeEngineFailure
		}
		return res
	}

	b.succeeded++
	b.state.ActionCount++
	b.state.Score += outcome.ScoreDelta
	b.state.Lives += outcome.LivesDelta
	b.state.Level += outcome.LevelDelta
	if b.state.Score > b.bestScore {
		b.bestScore = b.state.Score
	}
	b.refresh()

	if reason, ended := b.endCondition(); ended {
		b.end(reason)
	}

	return core.ActionResult{
		Success:    true,
		Message:    outcome.Message,
		ScoreDelta: outcome.ScoreDelta,
		State:      b.state.Clone(),
	}
}

// apply runs the rules and converts a panic into an error.
func (b *Base) apply(ctx context.Context, action string, data core.ActionData) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("game: %s panicked on %q: %v", b.gameID, action, r)
		}
	}()
	return b.rules.Apply(ctx, action, data)
}

func (b *Base) reject(code, msg string) core.ActionResult {
	return core.ActionResult{
		Success: false,
		Message: msg,
		Code:    code,
		State:   b.snapshot(),
	}
}

// endCondition evaluates the limits in order: time, score, lives, custom.
func (b *Base) endCondition() (string, bool) {
	if b.limits.TimeLimit > 0 && b.elapsed() >= b.limits.TimeLimit {
		return core.ReasonTimeLimit, true
	}
	if b.limits.ScoreLimit > 0 && b.state.Score >= b.limits.ScoreLimit {
		return core.ReasonScoreLimit, true
	}
	if b.limits.Lives > 0 && b.state.Lives <= 0 {
		return core.ReasonGameOver, true
	}
	if ec, ok := b.rules.(EndChecker); ok {
		if reason, ended := ec.CheckEnd(b.snapshot()); ended {
			return reason, true
		}
	}
	return "", false
}

// CheckTimeLimit ends a running or paused game whose time limit has elapsed.
// Returns true if this call ended the game.
func (b *Base) CheckTimeLimit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase != core.PhaseRunning && b.phase != core.PhasePaused {
		return false
	}
	if b.limits.TimeLimit <= 0 || b.elapsed() < b.limits.TimeLimit {
		return false
	}
	b.end(core.ReasonTimeLimit)
	return true
}

// Pause transitions Running -> Paused.
func (b *Base) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase != core.PhaseRunning {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, b.phase)
	}
	b.pausedAt = b.now()
	b.phase = core.PhasePaused
	b.state.Running = false
	b.state.Paused = true
	if p, ok := b.rules.(Pauser); ok {
		p.OnPause()
	}
	return nil
}

// Resume transitions Paused -> Running. Paused time does not count toward
// the time limit.
func (b *Base) Resume() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase != core.PhasePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, b.phase)
	}
	b.pausedTotal += b.now().Sub(b.pausedAt)
	b.phase = core.PhaseRunning
	b.state.Running = true
	b.state.Paused = false
	if p, ok := b.rules.(Pauser); ok {
		p.OnResume()
	}
	return nil
}

// End moves the game to its terminal phase and finalizes statistics.
// Idempotent: later calls return the first summary and false.
func (b *Base) End(reason string) (Summary, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase == core.PhaseEnded {
		return b.summary, false
	}
	b.end(reason)
	return b.summary, true
}

// end must be called with the lock held.
func (b *Base) end(reason string) {
	if b.phase == core.PhasePaused {
		b.pausedTotal += b.now().Sub(b.pausedAt)
	}
	if b.startedAt.IsZero() {
		b.startedAt = b.now()
	}
	b.endedAt = b.now()
	b.phase = core.PhaseEnded
	b.state.Running = false
	b.state.Paused = false
	b.state.Ended = true
	b.state.EndReason = reason
	b.refresh()

	total := b.succeeded + b.failed
	var rate, apm float64
	if total > 0 {
		rate = float64(b.succeeded) / float64(total)
	}
	if mins := b.state.Elapsed.Minutes(); mins > 0 {
		apm = float64(total) / mins
	}

	b.summary = Summary{
		GameID:           b.gameID,
		Reason:           reason,
		FinalScore:       b.state.Score,
		BestScore:        b.bestScore,
		Level:            b.state.Level,
		Actions:          total,
		Succeeded:        b.succeeded,
		Failed:           b.failed,
		SuccessRate:      rate,
		ActionsPerMinute: apm,
		Duration:         b.state.Elapsed,
		Final:            b.state.Clone(),
	}
}

// refresh updates derived state fields. Lock must be held.
func (b *Base) refresh() {
	b.state.Elapsed = b.elapsed()
	b.state.Fields = b.rules.Observe()
}

// elapsed is the play time excluding pauses. Lock must be held.
func (b *Base) elapsed() time.Duration {
	if b.startedAt.IsZero() {
		return 0
	}
	var end time.Time
	switch b.phase {
	case core.PhaseEnded:
		end = b.endedAt
	case core.PhasePaused:
		end = b.pausedAt
	default:
		end = b.now()
	}
	d := end.Sub(b.startedAt) - b.pausedTotal
	if d < 0 {
		return 0
	}
	return d
}

func (b *Base) snapshot() core.GameState {
	s := b.state.Clone()
	s.Elapsed = b.elapsed()
	return s
}

// State returns a snapshot of the current state.
func (b *Base) State() core.GameState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

// Phase returns the current lifecycle phase.
func (b *Base) Phase() core.Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Actions returns the automated-play action vocabulary of the rules.
func (b *Base) Actions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rules.Actions()
}

// Summary returns the final summary once the game has ended.
func (b *Base) Summary() (Summary, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summary, b.phase == core.PhaseEnded
}

// SignatureFields returns the fields the AI keys its model on.
func (b *Base) SignatureFields() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sf, ok := b.rules.(SignatureFielder); ok {
		return sf.SignatureFields()
	}
	return b.rules.Observe()
}

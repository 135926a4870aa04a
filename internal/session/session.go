// Package session binds one user to one running game: it forwards actions to
// the game machine in submission order, feeds transitions to the AI, keeps
// statistics and a bounded action history, and owns the browser page of
// browser-hosted games.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/vovakirdan/gamehub/internal/browser"
	"github.com/vovakirdan/gamehub/internal/core"
	"github.com/vovakirdan/gamehub/internal/game"
	"github.com/vovakirdan/gamehub/internal/gameai"
)

// DefaultHistorySize is used when Config.HistorySize is zero.
const DefaultHistorySize = 50

// DefaultTrainBuffer is used when Config.TrainBuffer is zero.
const DefaultTrainBuffer = 64

var (
	// ErrEnded is returned by lifecycle calls on a finished session.
	ErrEnded = errors.New("session: ended")

	// ErrAIDisabled is returned by AI calls on a session without a model.
	ErrAIDisabled = errors.New("session: AI disabled")
)

// Learner is the part of the game AI a session uses.
type Learner interface {
	LoadModel(ctx context.Context, gameID string) *gameai.Model
	Train(ctx context.Context, gameID string, t gameai.Transition)
	Suggest(ctx context.Context, gameID, signature string, candidates []string) (gameai.Suggestion, error)
	OnSessionEnd(ctx context.Context, gameID string, res gameai.SessionResult)
}

// PageProvider opens and closes browser pages keyed by session id.
type PageProvider interface {
	CreatePageForSession(ctx context.Context, sessionID, url string) (*browser.PageHandle, error)
	ClosePageForSession(sessionID string)
}

// Config describes a session.
type Config struct {
	ID          string // generated when empty
	UserID      string
	GameID      string
	URL         string // browser games only
	Limits      core.Limits
	HistorySize int
	TrainBuffer int
	Seed        int64
	Now         func() time.Time
}

// Deps are the optional collaborators of a session.
type Deps struct {
	AI     Learner      // nil disables training and suggestions
	Pages  PageProvider // nil for native games
	Logger *log.Logger
}

// Stats are the per-session counters.
type Stats struct {
	ActionsPerformed int           `json:"actionsPerformed"`
	Correct          int           `json:"correct"`
	Incorrect        int           `json:"incorrect"`
	AvgResponseTime  time.Duration `json:"avgResponseTime"`
	PeakScore        int           `json:"peakScore"`
}

// Info is a read-only snapshot of a session.
type Info struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	GameID         string         `json:"gameId"`
	URL            string         `json:"url,omitempty"`
	Phase          core.Phase     `json:"phase"`
	State          core.GameState `json:"state"`
	Stats          Stats          `json:"stats"`
	AIEnabled      bool           `json:"aiEnabled"`
	HasPage        bool           `json:"hasPage"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastActivityAt time.Time      `json:"lastActivityAt"`
}

// Session is one user's play-through. Safe for concurrent use; actions are
// processed strictly in the order they acquire the session lock.
type Session struct {
	id     string
	userID string
	gameID string
	url    string
	base   *game.Base
	ai     Learner
	pages  PageProvider
	logger *log.Logger
	now    func() time.Time

	createdAt time.Time

	mu        sync.Mutex // serializes actions and lifecycle transitions
	page      *browser.PageHandle
	hasPage   atomic.Bool
	started   bool
	ended     atomic.Bool // set under mu, read without it
	inFlight  atomic.Int32
	summary   game.Summary
	trainCh   chan gameai.Transition
	trainDone chan struct{}

	statsMu      sync.RWMutex
	stats        Stats
	history      ring
	lastActivity time.Time

	cleanupOnce sync.Once
	cleanupErr  error
}

// New creates a session around rules. Call Initialize before use.
func New(cfg Config, rules game.Rules, deps Deps) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	size := cfg.HistorySize
	if size <= 0 {
		size = DefaultHistorySize
	}
	buf := cfg.TrainBuffer
	if buf <= 0 {
		buf = DefaultTrainBuffer
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Session{
		id:     id,
		userID: cfg.UserID,
		gameID: cfg.GameID,
		url:    cfg.URL,
		base:   game.New(cfg.GameID, rules, game.Options{Limits: cfg.Limits, Seed: cfg.Seed, Now: now}),
		ai:     deps.AI,
		pages:  deps.Pages,
		logger: logger.With("session", id, "user", cfg.UserID, "game", cfg.GameID),
		now:    now,

		createdAt: now(),
		history:   newRing(size),
	}
	s.lastActivity = s.createdAt
	if s.ai != nil {
		s.trainCh = make(chan gameai.Transition, buf)
		s.trainDone = make(chan struct{})
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user.
func (s *Session) UserID() string { return s.userID }

// GameID returns the game being played.
func (s *Session) GameID() string { return s.gameID }

// HasPage reports whether the session owns a browser page.
func (s *Session) HasPage() bool {
	return s.hasPage.Load()
}

// Initialize opens the browser page when the rules need one, warms the AI
// model and starts the game. On error every acquired resource is released.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended.Load() {
		return ErrEnded
	}

	rules := s.base.Rules()
	if pa, ok := rules.(game.PageAware); ok {
		if s.pages == nil || s.url == "" {
			return fmt.Errorf("session: game %s needs a browser page: %w", s.gameID, core.ErrEngineNotReady)
		}
		page, err := s.pages.CreatePageForSession(ctx, s.id, s.url)
		if err != nil {
			return fmt.Errorf("session: open page: %w", err)
		}
		s.page = page
		s.hasPage.Store(true)
		pa.AttachPage(page)
	}

	if err := s.base.Initialize(); err != nil {
		s.releasePageLocked()
		return fmt.Errorf("session: initialize game: %w", err)
	}
	if err := s.base.Start(); err != nil {
		s.releasePageLocked()
		return fmt.Errorf("session: start game: %w", err)
	}

	if s.ai != nil {
		s.ai.LoadModel(ctx, s.gameID)
		go s.trainLoop(s.trainCh)
	}
	s.started = true

	s.logger.Debug("session initialized")
	return nil
}

func (s *Session) releasePageLocked() {
	if s.page != nil {
		s.page.Close()
		s.page = nil
		s.hasPage.Store(false)
	}
}

func (s *Session) trainLoop(ch <-chan gameai.Transition) {
	defer close(s.trainDone)
	for t := range ch {
		s.ai.Train(context.Background(), s.gameID, t)
	}
}

// ProcessAction applies one action and records it.
func (s *Session) ProcessAction(ctx context.Context, action string, data core.ActionData) core.ActionResult {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended.Load() {
		return core.ActionResult{
			Code:    core.CodeSessionEnded,
			Message: "session has ended",
			State:   s.base.State(),
		}
	}

	var sig string
	if s.ai != nil {
		sig = gameai.Signature(s.base.SignatureFields())
	}

	start := s.now()
	res := s.base.ProcessAction(ctx, action, data)
	took := s.now().Sub(start)

	switch res.Code {
	case core.CodePaused, core.CodeNotRunning, core.CodeSessionEnded:
		// Rejected by the lifecycle; nothing was attempted.
		return res
	}

	s.record(action, data, res, took)

	if s.ai != nil {
		t := gameai.Transition{
			Signature:  sig,
			Action:     action,
			Success:    res.Success,
			ScoreDelta: res.ScoreDelta,
			Score:      res.State.Score,
		}
		select {
		case s.trainCh <- t:
		case <-ctx.Done():
			s.logger.Warn("training transition dropped", "action", action, "error", ctx.Err())
		}
	}

	if res.Code == core.CodeEngineFailure {
		s.logger.Error("browser engine failed during action", "action", action, "error", res.Err)
	}
	return res
}

func (s *Session) record(action string, data core.ActionData, res core.ActionResult, took time.Duration) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	st := &s.stats
	st.ActionsPerformed++
	if res.Success {
		st.Correct++
	} else {
		st.Incorrect++
	}
	st.AvgResponseTime += (took - st.AvgResponseTime) / time.Duration(st.ActionsPerformed)
	if res.State.Score > st.PeakScore {
		st.PeakScore = res.State.Score
	}

	s.history.push(core.ActionRecord{
		Action:    action,
		Data:      data.Clone(),
		Result:    res,
		Timestamp: s.now(),
	})
	s.lastActivity = s.now()
}

// Suggestion asks the AI for the next action in the current state.
func (s *Session) Suggestion(ctx context.Context) (gameai.Suggestion, error) {
	if s.ai == nil {
		return gameai.Suggestion{}, ErrAIDisabled
	}
	sig := gameai.Signature(s.base.SignatureFields())
	return s.ai.Suggest(ctx, s.gameID, sig, s.base.Actions())
}

// ExecuteAIAction performs the AI's suggested action.
func (s *Session) ExecuteAIAction(ctx context.Context) (gameai.Suggestion, core.ActionResult, error) {
	sug, err := s.Suggestion(ctx)
	if err != nil {
		return sug, core.ActionResult{}, err
	}
	return sug, s.ProcessAction(ctx, sug.Action, nil), nil
}

// Pause pauses the game.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended.Load() {
		return ErrEnded
	}
	if err := s.base.Pause(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	s.touch()
	return nil
}

// Resume resumes a paused game.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended.Load() {
		return ErrEnded
	}
	if err := s.base.Resume(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	s.touch()
	return nil
}

func (s *Session) touch() {
	s.statsMu.Lock()
	s.lastActivity = s.now()
	s.statsMu.Unlock()
}

// CheckTimeLimit ends the game when its time limit elapsed without input.
func (s *Session) CheckTimeLimit() bool {
	return s.base.CheckTimeLimit()
}

// GameEnded reports whether the game reached its terminal phase, even if the
// session has not been finished yet.
func (s *Session) GameEnded() bool {
	return s.base.Phase() == core.PhaseEnded
}

// Finish ends the game and stops accepting actions. Idempotent: only the
// first call returns true. Resources are released by Cleanup.
func (s *Session) Finish(reason string) (game.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended.Load() {
		return s.summary, false
	}
	s.ended.Store(true)
	s.summary, _ = s.base.End(reason)
	if s.trainCh != nil {
		close(s.trainCh)
	}
	s.logger.Info("session finished", "reason", s.summary.Reason, "score", s.summary.FinalScore, "actions", s.summary.Actions)
	return s.summary, true
}

// Cleanup drains pending training, reports the outcome to the AI and closes
// the browser page. Runs once; later calls return the first result. The
// page is closed even when ctx expires before training drains.
func (s *Session) Cleanup(ctx context.Context) error {
	s.cleanupOnce.Do(func() {
		s.cleanupErr = s.cleanup(ctx)
	})
	return s.cleanupErr
}

func (s *Session) cleanup(ctx context.Context) error {
	s.mu.Lock()
	summary := s.summary
	ended := s.ended.Load()
	started := s.started
	page := s.page
	s.page = nil
	s.mu.Unlock()

	if !ended {
		return fmt.Errorf("session: cleanup before finish")
	}

	var err error
	if s.ai != nil && started {
		select {
		case <-s.trainDone:
			s.ai.OnSessionEnd(ctx, s.gameID, gameai.SessionResult{
				Score:   summary.FinalScore,
				Actions: summary.Actions,
				Reason:  summary.Reason,
			})
		case <-ctx.Done():
			err = fmt.Errorf("session: training drain: %w", ctx.Err())
		}
	}

	if page != nil {
		page.Close()
		s.hasPage.Store(false)
	}
	return err
}

// End finishes the session and releases its resources.
func (s *Session) End(ctx context.Context, reason string) (game.Summary, bool) {
	sum, first := s.Finish(reason)
	if err := s.Cleanup(ctx); err != nil {
		s.logger.Warn("session cleanup incomplete", "error", err)
	}
	return sum, first
}

// Ended reports whether Finish has been called. Never blocks.
func (s *Session) Ended() bool {
	return s.ended.Load()
}

// Busy reports whether an action is running or waiting to run.
func (s *Session) Busy() bool {
	return s.inFlight.Load() > 0
}

// Summary returns the final summary once finished.
func (s *Session) Summary() (game.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary, s.ended.Load()
}

// LastActivity returns the time of the last action or lifecycle change.
func (s *Session) LastActivity() time.Time {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.lastActivity
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Stats returns a copy of the counters.
func (s *Session) Stats() Stats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

// History returns the recorded actions, oldest first.
func (s *Session) History() []core.ActionRecord {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.history.items()
}

// State returns the current game snapshot.
func (s *Session) State() core.GameState {
	return s.base.State()
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	info := Info{
		ID:        s.id,
		UserID:    s.userID,
		GameID:    s.gameID,
		URL:       s.url,
		Phase:     s.base.Phase(),
		State:     s.base.State(),
		AIEnabled: s.ai != nil,
		HasPage:   s.HasPage(),
		CreatedAt: s.createdAt,
	}
	s.statsMu.RLock()
	info.Stats = s.stats
	info.LastActivityAt = s.lastActivity
	s.statsMu.RUnlock()
	return info
}

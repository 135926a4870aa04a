// Package manager is the top-level orchestrator: it owns the game catalog,
// the session registry with its one-session-per-user and capacity
// invariants, the idle reaper, and the lifecycle of the AI and the browser
// engine.
package manager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/gamehub/internal/browser"
	"github.com/vovakirdan/gamehub/internal/config"
	"github.com/vovakirdan/gamehub/internal/core"
	"github.com/vovakirdan/gamehub/internal/events"
	"github.com/vovakirdan/gamehub/internal/game"
	"github.com/vovakirdan/gamehub/internal/gameai"
	"github.com/vovakirdan/gamehub/internal/games/webgame"
	"github.com/vovakirdan/gamehub/internal/registry"
	"github.com/vovakirdan/gamehub/internal/session"
)

var (
	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("manager: shut down")

	// ErrInvalidUser is returned for an empty user id.
	ErrInvalidUser = &core.Error{Code: core.CodeValidationError, Msg: "user id is empty"}

	// ErrMissingURL is returned when a browser game has no URL to open.
	ErrMissingURL = &core.Error{Code: core.CodeValidationError, Msg: "browser game has no url"}

	// ErrAIDisabled is returned by AI calls when the AI is not configured.
	ErrAIDisabled = session.ErrAIDisabled
)

// SummarySaver is an interface for saving finished sessions.
// This allows the manager to save summaries without depending on the storage package.
type SummarySaver interface {
	SaveSessionSummary(ctx context.Context, rec SessionRecord) error
}

// SessionRecord contains session summary data for persistence.
type SessionRecord struct {
	SessionID  string
	UserID     string
	GameID     string
	Reason     string
	FinalScore int
	BestScore  int
	Level      int
	Actions    int
	Succeeded  int
	Failed     int
	Duration   time.Duration
	Leaked     bool
	StartedAt  time.Time
	EndedAt    time.Time
}

// Deps are the collaborators of a Manager. Registry is required.
type Deps struct {
	Registry  *registry.Registry
	AI        *gameai.AI      // nil disables learning
	Engine    *browser.Engine // nil disables browser games
	Summaries SummarySaver    // optional, can be nil
	Logger    *log.Logger
	HTTP      *http.Client     // static server discovery
	Now       func() time.Time // nil means time.Now
}

// Options tune a StartSession call.
type Options struct {
	URL       string // overrides the game's default URL
	DisableAI bool
	Seed      int64
}

// Status is a point-in-time view of the manager.
type Status struct {
	ActiveSessions int  `json:"activeSessions"`
	MaxSessions    int  `json:"maxSessions"`
	EngineReady    bool `json:"engineReady"`
	AIReady        bool `json:"aiReady"`
	BrowserPages   int  `json:"browserPages"`
	Games          int  `json:"games"`
}

// Manager orchestrates sessions. Safe for concurrent use.
type Manager struct {
	cfg       config.Config
	registry  *registry.Registry
	ai        *gameai.AI
	engine    *browser.Engine
	summaries SummarySaver
	events    *events.Queue
	logger    *log.Logger
	http      *http.Client
	now       func() time.Time

	mu        sync.RWMutex
	bySession map[string]*session.Session
	byUser    map[string]*session.Session
	closed    bool

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a manager and registers the configured browser games.
func New(cfg config.Config, deps Deps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	client := deps.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	reg := deps.Registry
	if reg == nil {
		reg = registry.New()
	}

	m := &Manager{
		cfg:       cfg,
		registry:  reg,
		ai:        deps.AI,
		engine:    deps.Engine,
		summaries: deps.Summaries,
		events:    events.NewQueue(cfg.Sessions.EventBuffer),
		logger:    logger,
		http:      client,
		now:       now,
		bySession: make(map[string]*session.Session),
		byUser:    make(map[string]*session.Session),
		done:      make(chan struct{}),
	}

	if m.engine != nil {
		m.engine.OnFailure(m.handleEngineFailure)
		m.registerBrowserGames(cfg.Browser.Games)
	}
	return m
}

func (m *Manager) registerBrowserGames(games []config.BrowserGame) int {
	added := 0
	for _, g := range games {
		if g.ID == "" || g.URL == "" {
			m.logger.Warn("skipping browser game without id or url", "id", g.ID, "url", g.URL)
			continue
		}
		def := webgame.Definition(g.ID, g.Title, g.URL, m.cfg.Browser.ScoreScript)
		if err := m.registry.Register(def); err != nil {
			m.logger.Warn("skipping browser game", "id", g.ID, "error", err)
			continue
		}
		added++
	}
	return added
}

// Start initializes the browser engine, starts the AI flush loop and the
// idle reaper. A browser that fails to start leaves native games usable.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		if m.engine != nil {
			if err := m.engine.Initialize(ctx); err != nil {
				m.logger.Warn("browser engine unavailable, native games only", "error", err)
			}
		}
		if m.ai != nil {
			m.ai.Start()
		}
		m.wg.Add(1)
		go m.reapLoop()
		m.logger.Info("session manager started",
			"games", m.registry.Len(),
			"max_sessions", m.cfg.Sessions.MaxConcurrent,
		)
	})
}

// ListGames returns the catalog sorted by id.
func (m *Manager) ListGames() []registry.GameDefinition {
	return m.registry.List()
}

// Events returns the notification queue.
func (m *Manager) Events() <-chan events.Event {
	return m.events.Events()
}

// StartSession creates and starts a session of gameID for userID.
func (m *Manager) StartSession(ctx context.Context, userID, gameID string, opts Options) (session.Info, error) {
	if userID == "" {
		return session.Info{}, fmt.Errorf("manager: start session: %w", ErrInvalidUser)
	}
	def, ok := m.registry.Get(gameID)
	if !ok {
		return session.Info{}, fmt.Errorf("manager: start %q: %w", gameID, core.ErrGameNotFound)
	}

	url := opts.URL
	if url == "" {
		url = def.URL
	}

	deps := session.Deps{Logger: m.logger}
	if m.ai != nil && !opts.DisableAI {
		deps.AI = m.ai
	}
	if def.NeedsBrowser() {
		if url == "" {
			return session.Info{}, fmt.Errorf("manager: start %q: %w", gameID, ErrMissingURL)
		}
		if m.engine == nil || !m.engine.Ready() {
			return session.Info{}, fmt.Errorf("manager: start %q: %w", gameID, core.ErrEngineNotReady)
		}
		deps.Pages = m.engine
	}

	s := session.New(session.Config{
		UserID:      userID,
		GameID:      gameID,
		URL:         url,
		Limits:      m.cfg.Limits.For(gameID, def.Limits),
		HistorySize: m.cfg.Sessions.HistorySize,
		TrainBuffer: m.cfg.Sessions.TrainBuffer,
		Seed:        opts.Seed,
		Now:         m.now,
	}, def.Factory(), deps)

	if err := m.reserve(s); err != nil {
		return session.Info{}, err
	}

	if err := s.Initialize(ctx); err != nil {
		s.Finish(core.ReasonEngineFailure)
		m.remove(s)
		m.logger.Warn("session initialization failed", "user", userID, "game", gameID, "error", err)
		return session.Info{}, fmt.Errorf("manager: start %q: %w", gameID, err)
	}

	m.logger.Info("session started", "session", s.ID(), "user", userID, "game", gameID)
	m.events.Publish(events.SessionStartedEvent{
		SessionID: s.ID(),
		UserID:    userID,
		GameID:    gameID,
		At:        m.now(),
	})
	return s.Info(), nil
}

// reserve inserts s after checking uniqueness and capacity in one critical
// section.
func (m *Manager) reserve(s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, busy := m.byUser[s.UserID()]; busy {
		return fmt.Errorf("manager: user %q: %w", s.UserID(), core.ErrUserAlreadyPlaying)
	}
	if limit := m.cfg.Sessions.MaxConcurrent; limit > 0 && len(m.bySession) >= limit {
		return fmt.Errorf("manager: %d sessions active: %w", len(m.bySession), core.ErrSessionLimitReached)
	}
	m.bySession[s.ID()] = s
	m.byUser[s.UserID()] = s
	return nil
}

func (m *Manager) remove(s *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.bySession[s.ID()]; ok && cur == s {
		delete(m.bySession, s.ID())
	}
	if cur, ok := m.byUser[s.UserID()]; ok && cur == s {
		delete(m.byUser, s.UserID())
	}
}

func (m *Manager) sessionForUser(userID string) (*session.Session, error) {
	m.mu.RLock()
	s, ok := m.byUser[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("manager: user %q: %w", userID, core.ErrSessionNotFound)
	}
	return s, nil
}

// SubmitAction applies an action to the user's session. A result that ends
// the game tears the session down before returning.
func (m *Manager) SubmitAction(ctx context.Context, userID, action string, data core.ActionData) (core.ActionResult, error) {
	s, err := m.sessionForUser(userID)
	if err != nil {
		return core.ActionResult{}, err
	}
	res := s.ProcessAction(ctx, action, data)
	m.afterAction(s, res)
	return res, nil
}

func (m *Manager) afterAction(s *session.Session, res core.ActionResult) {
	switch {
	case res.Code == core.CodeEngineFailure:
		m.end(s, core.ReasonEngineFailure)
	case res.Ended():
		m.end(s, res.State.EndReason)
	}
}

// Suggest returns the AI's next action for the user's session.
func (m *Manager) Suggest(ctx context.Context, userID string) (gameai.Suggestion, error) {
	s, err := m.sessionForUser(userID)
	if err != nil {
		return gameai.Suggestion{}, err
	}
	return s.Suggestion(ctx)
}

// AutoPlay lets the AI take one action in the user's session.
func (m *Manager) AutoPlay(ctx context.Context, userID string) (gameai.Suggestion, core.ActionResult, error) {
	s, err := m.sessionForUser(userID)
	if err != nil {
		return gameai.Suggestion{}, core.ActionResult{}, err
	}
	sug, res, err := s.ExecuteAIAction(ctx)
	if err != nil {
		return sug, res, fmt.Errorf("manager: autoplay: %w", err)
	}
	m.afterAction(s, res)
	return sug, res, nil
}

// Pause pauses the user's game.
func (m *Manager) Pause(userID string) error {
	s, err := m.sessionForUser(userID)
	if err != nil {
		return err
	}
	return s.Pause()
}

// Resume resumes the user's game.
func (m *Manager) Resume(userID string) error {
	s, err := m.sessionForUser(userID)
	if err != nil {
		return err
	}
	return s.Resume()
}

// StopSession ends the user's session manually.
func (m *Manager) StopSession(ctx context.Context, userID string) (game.Summary, error) {
	s, err := m.sessionForUser(userID)
	if err != nil {
		return game.Summary{}, err
	}
	sum, _ := m.end(s, core.ReasonManual)
	return sum, nil
}

// EndSession ends a session by id. Idempotent: unknown or already ended
// sessions are a no-op and return false.
func (m *Manager) EndSession(ctx context.Context, sessionID, reason string) (game.Summary, bool) {
	m.mu.RLock()
	s, ok := m.bySession[sessionID]
	m.mu.RUnlock()
	if !ok {
		return game.Summary{}, false
	}
	return m.end(s, reason)
}

// end finishes s once, runs cleanup bounded by the cleanup timeout, removes
// the registry entries and records the summary. Later calls no-op.
func (m *Manager) end(s *session.Session, reason string) (game.Summary, bool) {
	sum, first := s.Finish(reason)
	if !first {
		return sum, false
	}

	leaked := m.cleanup(s)
	m.remove(s)

	endedAt := m.now()
	m.logger.Info("session ended",
		"session", s.ID(),
		"user", s.UserID(),
		"game", s.GameID(),
		"reason", sum.Reason,
		"score", sum.FinalScore,
		"leaked", leaked,
	)

	if m.summaries != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.cleanupTimeout())
		rec := SessionRecord{
			SessionID:  s.ID(),
			UserID:     s.UserID(),
			GameID:     s.GameID(),
			Reason:     sum.Reason,
			FinalScore: sum.FinalScore,
			BestScore:  sum.BestScore,
			Level:      sum.Level,
			Actions:    sum.Actions,
			Succeeded:  sum.Succeeded,
			Failed:     sum.Failed,
			Duration:   sum.Duration,
			Leaked:     leaked,
			StartedAt:  s.CreatedAt(),
			EndedAt:    endedAt,
		}
		if err := m.summaries.SaveSessionSummary(ctx, rec); err != nil {
			m.logger.Warn("session summary not saved", "session", s.ID(), "error", err)
		}
		cancel()
	}

	m.events.Publish(events.SessionEndedEvent{
		SessionID:  s.ID(),
		UserID:     s.UserID(),
		GameID:     s.GameID(),
		Reason:     sum.Reason,
		FinalScore: sum.FinalScore,
		Actions:    sum.Actions,
		Duration:   sum.Duration,
		Leaked:     leaked,
		At:         endedAt,
	})
	return sum, true
}

// cleanup releases session resources within the cleanup timeout.
// Returns true if cleanup did not finish.
func (m *Manager) cleanup(s *session.Session) bool {
	ctx, cancel := context.WithTimeout(context.Background(), m.cleanupTimeout())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Cleanup(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			m.logger.Warn("session cleanup incomplete", "session", s.ID(), "error", err)
			return true
		}
		return false
	case <-ctx.Done():
		m.logger.Error("session cleanup timed out, resources may leak", "session", s.ID(), "timeout", m.cleanupTimeout())
		return true
	}
}

func (m *Manager) cleanupTimeout() time.Duration {
	if d := m.cfg.Sessions.CleanupTimeout; d > 0 {
		return d
	}
	return 5 * time.Second
}

// Session returns a snapshot of the user's session.
func (m *Manager) Session(userID string) (session.Info, error) {
	s, err := m.sessionForUser(userID)
	if err != nil {
		return session.Info{}, err
	}
	return s.Info(), nil
}

// History returns the recorded actions of the user's session.
func (m *Manager) History(userID string) ([]core.ActionRecord, error) {
	s, err := m.sessionForUser(userID)
	if err != nil {
		return nil, err
	}
	return s.History(), nil
}

// Sessions returns snapshots of every registered session, oldest first.
func (m *Manager) Sessions() []session.Info {
	list := m.snapshot()
	out := make([]session.Info, 0, len(list))
	for _, s := range list {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Manager) snapshot() []*session.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*session.Session, 0, len(m.bySession))
	for _, s := range m.bySession {
		out = append(out, s)
	}
	return out
}

// Status reports capacity and engine health.
func (m *Manager) Status() Status {
	m.mu.RLock()
	active := len(m.bySession)
	m.mu.RUnlock()

	st := Status{
		ActiveSessions: active,
		MaxSessions:    m.cfg.Sessions.MaxConcurrent,
		Games:          m.registry.Len(),
	}
	if m.engine != nil {
		st.EngineReady = m.engine.Ready()
		st.BrowserPages = m.engine.PageCount()
	}
	if m.ai != nil {
		st.AIReady = m.ai.Ready()
	}
	return st
}

// AIStats returns the learned aggregates of gameID.
func (m *Manager) AIStats(ctx context.Context, gameID string) (gameai.AggregateStats, error) {
	if m.ai == nil {
		return gameai.AggregateStats{}, ErrAIDisabled
	}
	if !m.registry.Exists(gameID) {
		return gameai.AggregateStats{}, fmt.Errorf("manager: ai stats %q: %w", gameID, core.ErrGameNotFound)
	}
	return m.ai.Stats(ctx, gameID), nil
}

// AllAIStats returns aggregates for every model loaded so far.
func (m *Manager) AllAIStats() ([]gameai.AggregateStats, error) {
	if m.ai == nil {
		return nil, ErrAIDisabled
	}
	return m.ai.AllStats(), nil
}

// handleEngineFailure is called by the engine when the browser dies. It may
// run inside a session action, so teardown happens on another goroutine.
// After Shutdown the failure is only logged; Shutdown ends the sessions.
func (m *Manager) handleEngineFailure(cause error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.logger.Warn("browser engine failed during shutdown", "error", cause)
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()

		var affected []string
		for _, s := range m.snapshot() {
			if !s.HasPage() {
				continue
			}
			if _, first := m.end(s, core.ReasonEngineFailure); first {
				affected = append(affected, s.ID())
			}
		}
		sort.Strings(affected)

		m.logger.Error("browser engine failed", "error", cause, "sessions_ended", len(affected))
		m.events.Publish(events.EngineFailureEvent{
			Err:              cause,
			AffectedSessions: affected,
			At:               m.now(),
		})
	}()
}

// Shutdown ends every session, stops the reaper, flushes AI models and
// shuts the browser engine down.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)

		for _, s := range m.snapshot() {
			m.end(s, core.ReasonShutdown)
		}
		m.wg.Wait()

		if m.ai != nil {
			if err := m.ai.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("manager: flush models: %w", err))
			}
		}
		if m.engine != nil {
			if err := m.engine.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("manager: browser shutdown: %w", err))
			}
		}
		m.events.Close()
		m.logger.Info("session manager stopped")
	})
	return errors.Join(errs...)
}

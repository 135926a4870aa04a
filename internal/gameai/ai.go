// Package gameai implements the adaptive player: one tabular value model per
// game, trained from session transitions, with an epsilon-greedy policy whose
// exploration rate decays after every finished session.
package gameai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/gamehub/internal/config"
)

// Strategy names reported with a suggestion.
const (
	StrategyExploration  = "exploration"
	StrategyExploitation = "exploitation"
)

// ErrNoActions is returned when neither the caller nor the model knows any
// action for the state.
var ErrNoActions = errors.New("gameai: no actions available")

// Transition is one observed step of a session.
type Transition struct {
	Signature  string
	Action     string
	Success    bool
	ScoreDelta int
	Score      int
}

// Suggestion is the policy's recommended next action.
type Suggestion struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Strategy   string  `json:"strategy"`
}

// SessionResult summarizes a finished session for the model aggregates.
type SessionResult struct {
	Score   int
	Actions int
	Reason  string
}

// Option configures an AI.
type Option func(*AI)

// WithSeed makes exploration deterministic.
func WithSeed(seed int64) Option {
	return func(a *AI) { a.rng = rand.New(rand.NewSource(seed)) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *AI) { a.now = now }
}

type modelEntry struct {
	mu      sync.Mutex // serializes store loads
	model   atomic.Pointer[Model]
	settled atomic.Bool // the store answered; no more loads
}

// AI owns the models of every game. Safe for concurrent use.
type AI struct {
	cfg    config.AIConfig
	store  ModelStore // nil disables persistence
	logger *log.Logger
	now    func() time.Time

	mu     sync.Mutex
	models map[string]*modelEntry

	rngMu sync.Mutex
	rng   *rand.Rand

	flushReq  chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
}

// New creates an AI. A nil store keeps models in memory only.
func New(cfg config.AIConfig, store ModelStore, logger *log.Logger, opts ...Option) *AI {
	a := &AI{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		now:      time.Now,
		models:   make(map[string]*modelEntry),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		flushReq: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ready reports whether the flush loop is running.
func (a *AI) Ready() bool {
	return a.started.Load()
}

// LoadModel returns the model of gameID, loading it from the store on first
// use. Missing or unreadable records yield an empty model. When the store
// fails, the returned model is provisional: it is never saved and the load
// is retried on the next call.
func (a *AI) LoadModel(ctx context.Context, gameID string) *Model {
	a.mu.Lock()
	e, ok := a.models[gameID]
	if !ok {
		e = &modelEntry{}
		a.models[gameID] = e
	}
	a.mu.Unlock()

	if e.settled.Load() {
		return e.model.Load()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settled.Load() {
		return e.model.Load()
	}

	m, err := a.load(ctx, gameID)
	if err != nil {
		if cur := e.model.Load(); cur != nil {
			return cur
		}
		m.provisional = true
		e.model.Store(m)
		return m
	}
	if prev := e.model.Load(); prev != nil {
		m.absorb(prev, a.cfg.DecayRate, a.cfg.MinExploration)
	}
	e.model.Store(m)
	e.settled.Store(true)
	return m
}

// lockModel returns the current model of gameID with its lock held.
// A provisional model retired while the caller waited for its lock is
// skipped in favour of the model that replaced it.
func (a *AI) lockModel(ctx context.Context, gameID string) *Model {
	for {
		m := a.LoadModel(ctx, gameID)
		m.mu.Lock()
		if !m.retired {
			return m
		}
		m.mu.Unlock()
	}
}

// load reads the model of gameID. An error means the store could not answer;
// the returned model is then empty.
func (a *AI) load(ctx context.Context, gameID string) (*Model, error) {
	fresh := newModel(gameID, a.cfg.InitialExploration, a.cfg.MaxEvents)
	if a.store == nil {
		return fresh, nil
	}

	data, err := a.store.Load(ctx, gameID)
	if errors.Is(err, ErrModelNotFound) {
		return fresh, nil
	}
	if err != nil {
		a.logger.Warn("model load failed, will retry", "game", gameID, "error", err)
		return fresh, err
	}

	m, err := decodeModel(gameID, data, a.cfg.InitialExploration, a.cfg.MaxEvents)
	if err != nil {
		a.logger.Warn("model unreadable, starting empty", "game", gameID, "error", err)
		return fresh, nil
	}
	a.logger.Debug("model loaded", "game", gameID, "states", len(m.values), "actions", m.stats.TotalActions)
	return m, nil
}

// Reward maps an outcome to [-1, 1].
func (a *AI) Reward(success bool, scoreDelta int) float64 {
	r := a.cfg.FailurePenalty
	if success {
		r = a.cfg.SuccessReward
	}
	r += float64(scoreDelta) * a.cfg.ScoreScale
	return math.Max(-1, math.Min(1, r))
}

// Train applies one transition to the model of gameID.
func (a *AI) Train(ctx context.Context, gameID string, t Transition) {
	if t.Action == "" {
		return
	}
	reward := a.Reward(t.Success, t.ScoreDelta)

	m := a.lockModel(ctx, gameID)
	defer m.mu.Unlock()
	m.updateLocked(t.Signature, t.Action, reward, a.cfg.LearningRate, t.Score, a.now())
}

// Signature encodes game-state fields independently of map order.
func Signature(fields map[string]any) string {
	keys := sortedKeys(fields)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('|')
		}
		fmt.Fprintf(&b, "%s=%v", k, fields[k])
	}
	return b.String()
}

// Suggest picks the next action for signature. Candidates restrict the
// choice to actions that can be issued without arguments; when empty, any
// learned action qualifies.
func (a *AI) Suggest(ctx context.Context, gameID, signature string, candidates []string) (Suggestion, error) {
	m := a.lockModel(ctx, gameID)
	defer m.mu.Unlock()

	known := m.actionsLocked(signature)
	if len(candidates) > 0 {
		known = intersect(known, candidates)
	}
	pool := candidates
	if len(pool) == 0 {
		pool = known
	}
	if len(pool) == 0 {
		return Suggestion{}, ErrNoActions
	}

	if m.stats.TotalActions < a.cfg.MinActionsForPrediction || len(known) == 0 {
		return a.explore(pool), nil
	}
	if a.float() < m.exploration {
		return a.explore(known), nil
	}

	best, bestValue := known[0], math.Inf(-1)
	for _, action := range known {
		if v := m.values[signature][action]; v > bestValue {
			best, bestValue = action, v
		}
	}

	conf := a.cfg.MaxConfidence
	if a.cfg.ConfidenceVisits > 0 {
		ratio := float64(m.visits[signature][best]) / float64(a.cfg.ConfidenceVisits)
		conf *= math.Min(1, ratio)
	}
	return Suggestion{Action: best, Confidence: conf, Strategy: StrategyExploitation}, nil
}

func (a *AI) explore(pool []string) Suggestion {
	a.rngMu.Lock()
	action := pool[a.rng.Intn(len(pool))]
	a.rngMu.Unlock()
	return Suggestion{Action: action, Confidence: a.cfg.ExplorationConfidence, Strategy: StrategyExploration}
}

func (a *AI) float() float64 {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return a.rng.Float64()
}

func intersect(sorted, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, s := range allowed {
		set[s] = struct{}{}
	}
	out := sorted[:0:0]
	for _, s := range sorted {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// OnSessionEnd folds a finished session into the aggregates and decays the
// exploration rate.
func (a *AI) OnSessionEnd(ctx context.Context, gameID string, res SessionResult) {
	m := a.lockModel(ctx, gameID)
	m.stats.TotalGames++
	m.stats.AverageScore += (float64(res.Score) - m.stats.AverageScore) / float64(m.stats.TotalGames)
	if res.Score > m.stats.BestScore {
		m.stats.BestScore = res.Score
	}
	m.decayLocked(a.cfg.DecayRate, a.cfg.MinExploration)
	m.touchLocked()
	rate := m.exploration
	m.mu.Unlock()

	a.logger.Debug("session folded into model", "game", gameID, "score", res.Score, "exploration", rate)
	a.RequestFlush()
}

// RequestFlush asks the flush loop to save soon. Never blocks.
func (a *AI) RequestFlush() {
	select {
	case a.flushReq <- struct{}{}:
	default:
	}
}

// SaveAll persists every dirty model. A failing game does not stop the
// others; it stays dirty and is retried on the next flush.
func (a *AI) SaveAll(ctx context.Context) error {
	if a.store == nil {
		return nil
	}

	a.mu.Lock()
	ids := make([]string, 0, len(a.models))
	for id := range a.models {
		ids = append(ids, id)
	}
	a.mu.Unlock()
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := a.save(ctx, id); err != nil {
			a.logger.Error("model save failed", "game", id, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *AI) save(ctx context.Context, gameID string) error {
	a.mu.Lock()
	e := a.models[gameID]
	a.mu.Unlock()
	if e == nil {
		return nil
	}
	m := e.model.Load()
	if m == nil {
		return nil
	}

	m.mu.Lock()
	if !m.dirty || m.provisional {
		m.mu.Unlock()
		return nil
	}
	rec := m.recordLocked(a.now())
	version := m.version
	m.mu.Unlock()

	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("gameai: %w", err)
	}
	if err := a.store.Save(ctx, gameID, data); err != nil {
		return fmt.Errorf("gameai: save %s: %w", gameID, err)
	}

	m.mu.Lock()
	if m.version == version {
		m.dirty = false
	}
	m.mu.Unlock()
	return nil
}

// Start runs the background flush loop.
func (a *AI) Start() {
	a.startOnce.Do(func() {
		a.started.Store(true)
		a.wg.Add(1)
		go a.flushLoop()
	})
}

// Stop ends the flush loop and performs a final save.
func (a *AI) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		close(a.done)
	})
	a.wg.Wait()
	a.started.Store(false)
	return a.SaveAll(ctx)
}

func (a *AI) flushLoop() {
	defer a.wg.Done()

	interval := a.cfg.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
		case <-a.flushReq:
		}
		if err := a.SaveAll(context.Background()); err != nil {
			a.logger.Warn("periodic model flush incomplete", "error", err)
		}
	}
}

// Stats returns the aggregates of gameID.
func (a *AI) Stats(ctx context.Context, gameID string) AggregateStats {
	return a.LoadModel(ctx, gameID).Stats()
}

// AllStats returns aggregates for every model loaded so far, sorted by game.
func (a *AI) AllStats() []AggregateStats {
	a.mu.Lock()
	entries := make([]*modelEntry, 0, len(a.models))
	for _, e := range a.models {
		entries = append(entries, e)
	}
	a.mu.Unlock()

	out := make([]AggregateStats, 0, len(entries))
	for _, e := range entries {
		if m := e.model.Load(); m != nil {
			out = append(out, m.Stats())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}

package gameai

import (
	"math"
	"sort"
	"sync"
	"time"
)

// AggregateStats summarizes what a model has learned.
type AggregateStats struct {
	GameID          string  `json:"game_id"`
	TotalGames      int     `json:"total_games"`
	TotalActions    int     `json:"total_actions"`
	AverageScore    float64 `json:"average_score"`
	BestScore       int     `json:"best_score"`
	ExplorationRate float64 `json:"exploration_rate"`
	States          int     `json:"states"`
}

// LearningEvent is one training step kept in the bounded history.
type LearningEvent struct {
	State  string    `json:"state"`
	Action string    `json:"action"`
	Reward float64   `json:"reward"`
	Score  int       `json:"score"`
	At     time.Time `json:"at"`
}

// Model is the learned policy of one game: visit counts and value estimates
// per state signature and action. All fields are guarded by mu.
type Model struct {
	mu sync.Mutex

	gameID      string
	visits      map[string]map[string]int
	values      map[string]map[string]float64
	stats       AggregateStats
	events      []LearningEvent
	maxEvents   int
	exploration float64

	dirty   bool
	version uint64

	// provisional models stand in for a record the store failed to return.
	provisional bool
	// retired is set once a provisional model has been folded into the
	// loaded one; writers holding it must move to the replacement.
	retired bool
	// decays counts exploration decay steps applied to this model.
	decays int
}

func newModel(gameID string, exploration float64, maxEvents int) *Model {
	return &Model{
		gameID:      gameID,
		visits:      make(map[string]map[string]int),
		values:      make(map[string]map[string]float64),
		stats:       AggregateStats{GameID: gameID},
		maxEvents:   maxEvents,
		exploration: exploration,
	}
}

// GameID returns the game this model belongs to.
func (m *Model) GameID() string {
	return m.gameID
}

// ExplorationRate returns the current epsilon.
func (m *Model) ExplorationRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exploration
}

// Stats returns a copy of the aggregate statistics.
func (m *Model) Stats() AggregateStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

func (m *Model) statsLocked() AggregateStats {
	s := m.stats
	s.GameID = m.gameID
	s.ExplorationRate = m.exploration
	s.States = len(m.values)
	return s
}

// Value returns the estimated value and visit count of action in state.
func (m *Model) Value(state, action string) (float64, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[state][action], m.visits[state][action]
}

// Events returns a copy of the learning-event history, oldest first.
func (m *Model) Events() []LearningEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LearningEvent(nil), m.events...)
}

// Dirty reports whether the model has unsaved changes.
func (m *Model) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// updateLocked applies one value update. Caller holds mu.
func (m *Model) updateLocked(state, action string, reward, lr float64, score int, at time.Time) {
	if m.visits[state] == nil {
		m.visits[state] = make(map[string]int)
	}
	if m.values[state] == nil {
		m.values[state] = make(map[string]float64)
	}
	m.visits[state][action]++
	v := m.values[state][action]
	m.values[state][action] = v + lr*(reward-v)
	m.stats.TotalActions++

	m.events = append(m.events, LearningEvent{State: state, Action: action, Reward: reward, Score: score, At: at})
	if m.maxEvents > 0 && len(m.events) > m.maxEvents {
		m.events = append(m.events[:0:0], m.events[len(m.events)-m.maxEvents:]...)
	}
	m.touchLocked()
}

func (m *Model) touchLocked() {
	m.dirty = true
	m.version++
}

// actionsLocked returns the known actions of state, sorted.
func (m *Model) actionsLocked(state string) []string {
	known := m.values[state]
	out := make([]string, 0, len(known))
	for a := range known {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// decayLocked applies one exploration decay step. Caller holds mu.
func (m *Model) decayLocked(rate, floor float64) {
	m.exploration = math.Max(floor, m.exploration*rate)
	m.decays++
}

// absorb folds what a provisional model learned into m, so training done
// while the store was unavailable survives the reload. prev is retired.
func (m *Model) absorb(prev *Model, rate, floor float64) {
	prev.mu.Lock()
	defer prev.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	prev.retired = true
	if prev.stats.TotalActions == 0 && prev.stats.TotalGames == 0 && prev.decays == 0 {
		return
	}
	for i := 0; i < prev.decays; i++ {
		m.decayLocked(rate, floor)
	}
	for state, counts := range prev.visits {
		if m.visits[state] == nil {
			m.visits[state] = make(map[string]int, len(counts))
		}
		for action, n := range counts {
			m.visits[state][action] += n
		}
	}
	for state, vals := range prev.values {
		if m.values[state] == nil {
			m.values[state] = make(map[string]float64, len(vals))
		}
		for action, v := range vals {
			if _, ok := m.values[state][action]; !ok {
				m.values[state][action] = v
			}
		}
	}

	games := m.stats.TotalGames + prev.stats.TotalGames
	if games > 0 {
		m.stats.AverageScore = (m.stats.AverageScore*float64(m.stats.TotalGames) +
			prev.stats.AverageScore*float64(prev.stats.TotalGames)) / float64(games)
	}
	m.stats.TotalGames = games
	m.stats.TotalActions += prev.stats.TotalActions
	if prev.stats.BestScore > m.stats.BestScore {
		m.stats.BestScore = prev.stats.BestScore
	}
	m.events = append(m.events, prev.events...)
	if m.maxEvents > 0 && len(m.events) > m.maxEvents {
		m.events = append(m.events[:0:0], m.events[len(m.events)-m.maxEvents:]...)
	}
	m.touchLocked()
}

package gameai

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// schemaVersion is written into every model record.
const schemaVersion = 1

// modelRecord is the persisted form of a Model. Maps are stored as sorted
// association lists so files diff cleanly and decode into explicit types.
type modelRecord struct {
	Version         int             `json:"version"`
	GameID          string          `json:"game_id"`
	Visits          []stateVisits   `json:"visits"`
	Values          []stateValues   `json:"values"`
	TotalGames      int             `json:"total_games"`
	TotalActions    int             `json:"total_actions"`
	AverageScore    float64         `json:"average_score"`
	BestScore       int             `json:"best_score"`
	ExplorationRate float64         `json:"exploration_rate"`
	Events          []LearningEvent `json:"events"`
	SavedAt         time.Time       `json:"saved_at"`
}

type stateVisits struct {
	State   string        `json:"state"`
	Actions []actionCount `json:"actions"`
}

type actionCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

type stateValues struct {
	State   string        `json:"state"`
	Actions []actionValue `json:"actions"`
}

type actionValue struct {
	Action string  `json:"action"`
	Value  float64 `json:"value"`
}

// recordLocked snapshots m. Caller holds mu.
func (m *Model) recordLocked(now time.Time) modelRecord {
	rec := modelRecord{
		Version:         schemaVersion,
		GameID:          m.gameID,
		TotalGames:      m.stats.TotalGames,
		TotalActions:    m.stats.TotalActions,
		AverageScore:    m.stats.AverageScore,
		BestScore:       m.stats.BestScore,
		ExplorationRate: m.exploration,
		Events:          append([]LearningEvent(nil), m.events...),
		SavedAt:         now,
	}

	for _, state := range sortedKeys(m.visits) {
		sv := stateVisits{State: state}
		for _, action := range sortedKeys(m.visits[state]) {
			sv.Actions = append(sv.Actions, actionCount{Action: action, Count: m.visits[state][action]})
		}
		rec.Visits = append(rec.Visits, sv)
	}
	for _, state := range sortedKeys(m.values) {
		sv := stateValues{State: state}
		for _, action := range sortedKeys(m.values[state]) {
			sv.Actions = append(sv.Actions, actionValue{Action: action, Value: m.values[state][action]})
		}
		rec.Values = append(rec.Values, sv)
	}
	return rec
}

func encodeRecord(rec modelRecord) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode model %s: %w", rec.GameID, err)
	}
	return data, nil
}

// decodeModel rebuilds a model from persisted bytes. An out-of-range
// exploration rate is replaced by defaultExploration.
func decodeModel(gameID string, data []byte, defaultExploration float64, maxEvents int) (*Model, error) {
	var rec modelRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", gameID, err)
	}
	if rec.Version > schemaVersion {
		return nil, fmt.Errorf("decode model %s: unsupported version %d", gameID, rec.Version)
	}
	if rec.GameID != "" && rec.GameID != gameID {
		return nil, fmt.Errorf("decode model %s: record belongs to %q", gameID, rec.GameID)
	}

	exploration := rec.ExplorationRate
	if exploration < 0 || exploration > 1 {
		exploration = defaultExploration
	}

	m := newModel(gameID, exploration, maxEvents)
	for _, sv := range rec.Visits {
		counts := make(map[string]int, len(sv.Actions))
		for _, ac := range sv.Actions {
			counts[ac.Action] = ac.Count
		}
		m.visits[sv.State] = counts
		m.values[sv.State] = make(map[string]float64, len(counts))
	}
	for _, sv := range rec.Values {
		vals := m.values[sv.State]
		if vals == nil {
			vals = make(map[string]float64, len(sv.Actions))
			m.values[sv.State] = vals
		}
		for _, av := range sv.Actions {
			vals[av.Action] = av.Value
		}
		if m.visits[sv.State] == nil {
			m.visits[sv.State] = make(map[string]int)
		}
	}

	m.stats = AggregateStats{
		GameID:       gameID,
		TotalGames:   rec.TotalGames,
		TotalActions: rec.TotalActions,
		AverageScore: rec.AverageScore,
		BestScore:    rec.BestScore,
	}
	m.events = rec.Events
	if maxEvents > 0 && len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
	return m, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

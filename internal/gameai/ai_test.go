package gameai

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/gamehub/internal/config"
)

func testConfig() config.AIConfig {
	return config.Default().AI
}

func newTestAI(cfg config.AIConfig, store ModelStore) *AI {
	return New(cfg, store, log.New(io.Discard), WithSeed(1))
}

func TestSuggest_FreshModelExplores(t *testing.T) {
	ai := newTestAI(testConfig(), nil)

	s, err := ai.Suggest(context.Background(), "simple_test", "x=0|y=0", []string{"up", "down", "left", "right"})
	require.NoError(t, err)
	assert.Equal(t, StrategyExploration, s.Strategy)
	assert.Less(t, s.Confidence, 0.2)
	assert.Contains(t, []string{"up", "down", "left", "right"}, s.Action)
}

func TestSuggest_NoActions(t *testing.T) {
	ai := newTestAI(testConfig(), nil)

	_, err := ai.Suggest(context.Background(), "g", "s", nil)
	assert.ErrorIs(t, err, ErrNoActions)
}

func TestTrain_ValueUpdate(t *testing.T) {
	ai := newTestAI(testConfig(), nil)
	ctx := context.Background()

	ai.Train(ctx, "g", Transition{Signature: "s", Action: "up", Success: true, ScoreDelta: 10})

	v, visits := ai.LoadModel(ctx, "g").Value("s", "up")
	// reward = 0.5 + 10*0.01 = 0.6; value = 0 + 0.1*(0.6-0)
	assert.InDelta(t, 0.06, v, 1e-9)
	assert.Equal(t, 1, visits)

	ai.Train(ctx, "g", Transition{Signature: "s", Action: "up", Success: false})
	v, visits = ai.LoadModel(ctx, "g").Value("s", "up")
	assert.InDelta(t, 0.06+0.1*(-0.5-0.06), v, 1e-9)
	assert.Equal(t, 2, visits)
	assert.Equal(t, 2, ai.Stats(ctx, "g").TotalActions)
	assert.True(t, ai.LoadModel(ctx, "g").Dirty())
}

func TestReward_Clamped(t *testing.T) {
	ai := newTestAI(testConfig(), nil)

	assert.Equal(t, 1.0, ai.Reward(true, 1000))
	assert.Equal(t, -1.0, ai.Reward(false, -1000))
	assert.InDelta(t, 0.5, ai.Reward(true, 0), 1e-9)
}

func TestSuggest_ExploitsBestAction(t *testing.T) {
	cfg := testConfig()
	cfg.InitialExploration = 0
	cfg.MinExploration = 0
	cfg.MinActionsForPrediction = 3
	ai := newTestAI(cfg, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ai.Train(ctx, "g", Transition{Signature: "s", Action: "right", Success: true, ScoreDelta: 10})
	}
	ai.Train(ctx, "g", Transition{Signature: "s", Action: "left", Success: false})

	s, err := ai.Suggest(ctx, "g", "s", []string{"up", "down", "left", "right"})
	require.NoError(t, err)
	assert.Equal(t, StrategyExploitation, s.Strategy)
	assert.Equal(t, "right", s.Action)
	assert.InDelta(t, cfg.MaxConfidence*5.0/float64(cfg.ConfidenceVisits), s.Confidence, 1e-9)
}

func TestSuggest_IgnoresActionsOutsideCandidates(t *testing.T) {
	cfg := testConfig()
	cfg.InitialExploration = 0
	cfg.MinExploration = 0
	cfg.MinActionsForPrediction = 1
	ai := newTestAI(cfg, nil)
	ctx := context.Background()

	ai.Train(ctx, "g", Transition{Signature: "s", Action: "move", Success: true, ScoreDelta: 50})
	ai.Train(ctx, "g", Transition{Signature: "s", Action: "up", Success: true})

	s, err := ai.Suggest(ctx, "g", "s", []string{"up", "down"})
	require.NoError(t, err)
	assert.Equal(t, "up", s.Action)
}

func TestOnSessionEnd_DecaysExploration(t *testing.T) {
	cfg := testConfig()
	ai := newTestAI(cfg, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ai.OnSessionEnd(ctx, "g", SessionResult{Score: 10 * (i + 1)})
	}

	want := math.Max(cfg.MinExploration, cfg.InitialExploration*math.Pow(cfg.DecayRate, 3))
	stats := ai.Stats(ctx, "g")
	assert.InDelta(t, want, stats.ExplorationRate, 1e-12)
	assert.Equal(t, 3, stats.TotalGames)
	assert.InDelta(t, 20.0, stats.AverageScore, 1e-9)
	assert.Equal(t, 30, stats.BestScore)
}

func TestOnSessionEnd_ExplorationFloor(t *testing.T) {
	cfg := testConfig()
	cfg.DecayRate = 0.5
	ai := newTestAI(cfg, nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		ai.OnSessionEnd(ctx, "g", SessionResult{})
	}
	assert.Equal(t, cfg.MinExploration, ai.Stats(ctx, "g").ExplorationRate)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cfg := testConfig()

	first := newTestAI(cfg, NewFileStore(dir))
	first.Train(ctx, "simple_test", Transition{Signature: "x=0|y=0", Action: "right", Success: true, ScoreDelta: 10, Score: 10})
	first.Train(ctx, "simple_test", Transition{Signature: "x=1|y=0", Action: "down", Success: false, Score: 10})
	first.OnSessionEnd(ctx, "simple_test", SessionResult{Score: 10, Actions: 2})
	require.NoError(t, first.SaveAll(ctx))
	assert.False(t, first.LoadModel(ctx, "simple_test").Dirty())
	assert.FileExists(t, filepath.Join(dir, "simple_test.json"))

	second := newTestAI(cfg, NewFileStore(dir))
	got := second.LoadModel(ctx, "simple_test")
	want := first.LoadModel(ctx, "simple_test")

	assert.Equal(t, want.Stats(), got.Stats())
	for _, key := range [][2]string{{"x=0|y=0", "right"}, {"x=1|y=0", "down"}} {
		wv, wn := want.Value(key[0], key[1])
		gv, gn := got.Value(key[0], key[1])
		assert.InDelta(t, wv, gv, 1e-12)
		assert.Equal(t, wn, gn)
	}
	assert.Len(t, got.Events(), 2)
	assert.False(t, got.Dirty())
}

func TestLoad_CorruptFileYieldsEmptyModel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "g.json"), []byte("{not json"), 0o644))

	ai := newTestAI(testConfig(), NewFileStore(dir))
	m := ai.LoadModel(context.Background(), "g")

	assert.Equal(t, 0, m.Stats().TotalActions)
	assert.Equal(t, testConfig().InitialExploration, m.ExplorationRate())
}

func TestLoad_OutOfRangeExplorationReset(t *testing.T) {
	store := NewMemoryStore()
	store.Put("g", []byte(`{"version":1,"game_id":"g","exploration_rate":7,"total_actions":4}`))

	ai := newTestAI(testConfig(), store)
	m := ai.LoadModel(context.Background(), "g")

	assert.Equal(t, testConfig().InitialExploration, m.ExplorationRate())
	assert.Equal(t, 4, m.Stats().TotalActions)
}

func TestLoad_VisitsWithoutValues(t *testing.T) {
	store := NewMemoryStore()
	store.Put("g", []byte(`{"version":1,"game_id":"g","exploration_rate":0.2,`+
		`"visits":[{"state":"s","actions":[{"action":"up","count":2}]}],"values":[]}`))

	ai := newTestAI(testConfig(), store)
	ctx := context.Background()

	require.NotPanics(t, func() {
		ai.Train(ctx, "g", Transition{Signature: "s", Action: "up", Success: true})
	})
	v, visits := ai.LoadModel(ctx, "g").Value("s", "up")
	assert.Equal(t, 3, visits)
	assert.InDelta(t, 0.05, v, 1e-9)
	assert.Equal(t, 1, ai.Stats(ctx, "g").States)
}

func TestLoad_ZeroExplorationSurvivesReload(t *testing.T) {
	cfg := testConfig()
	cfg.MinExploration = 0
	cfg.DecayRate = 0
	store := NewMemoryStore()
	ctx := context.Background()

	first := newTestAI(cfg, store)
	first.OnSessionEnd(ctx, "g", SessionResult{Score: 5})
	require.Equal(t, 0.0, first.LoadModel(ctx, "g").ExplorationRate())
	require.NoError(t, first.SaveAll(ctx))

	second := newTestAI(cfg, store)
	assert.Equal(t, 0.0, second.LoadModel(ctx, "g").ExplorationRate())
}

// flakyStore fails the first failLoads calls to Load.
type flakyStore struct {
	*MemoryStore
	mu        sync.Mutex
	failLoads int
}

func (s *flakyStore) Load(ctx context.Context, gameID string) ([]byte, error) {
	s.mu.Lock()
	if s.failLoads > 0 {
		s.failLoads--
		s.mu.Unlock()
		return nil, errors.New("database is locked")
	}
	s.mu.Unlock()
	return s.MemoryStore.Load(ctx, gameID)
}

func seedModel(t *testing.T, store ModelStore, actions int) {
	t.Helper()
	ctx := context.Background()
	ai := newTestAI(testConfig(), store)
	for i := 0; i < actions; i++ {
		ai.Train(ctx, "g", Transition{Signature: "s", Action: "up", Success: true})
	}
	require.NoError(t, ai.SaveAll(ctx))
}

func TestLoad_StoreErrorRetriesLater(t *testing.T) {
	mem := NewMemoryStore()
	seedModel(t, mem, 50)
	store := &flakyStore{MemoryStore: mem, failLoads: 1}
	ctx := context.Background()

	ai := newTestAI(testConfig(), store)
	assert.Equal(t, 0, ai.LoadModel(ctx, "g").Stats().TotalActions)

	ai.Train(ctx, "g", Transition{Signature: "s", Action: "up", Success: true})
	require.NoError(t, ai.SaveAll(ctx))

	reloaded := newTestAI(testConfig(), mem)
	assert.Equal(t, 51, reloaded.LoadModel(ctx, "g").Stats().TotalActions)
}

func TestLoad_ProvisionalTrainingSurvivesReload(t *testing.T) {
	mem := NewMemoryStore()
	seedModel(t, mem, 50)
	store := &flakyStore{MemoryStore: mem, failLoads: 2}
	ctx := context.Background()

	ai := newTestAI(testConfig(), store)
	ai.LoadModel(ctx, "g")
	ai.Train(ctx, "g", Transition{Signature: "t", Action: "down", Success: true})

	m := ai.LoadModel(ctx, "g")
	assert.Equal(t, 51, m.Stats().TotalActions)
	_, visits := m.Value("t", "down")
	assert.Equal(t, 1, visits)
	_, visits = m.Value("s", "up")
	assert.Equal(t, 50, visits)
}

func TestLoad_ProvisionalDecaySurvivesReload(t *testing.T) {
	mem := NewMemoryStore()
	seedModel(t, mem, 5)
	store := &flakyStore{MemoryStore: mem, failLoads: 1}
	ctx := context.Background()
	cfg := testConfig()

	ai := newTestAI(cfg, store)
	ai.OnSessionEnd(ctx, "g", SessionResult{Score: 10})

	st := ai.LoadModel(ctx, "g").Stats()
	assert.Equal(t, 1, st.TotalGames)
	assert.Equal(t, 5, st.TotalActions)
	want := math.Max(cfg.MinExploration, cfg.InitialExploration*cfg.DecayRate)
	assert.InDelta(t, want, st.ExplorationRate, 1e-9)
}

func TestLoad_LateWriterMovesToSettledModel(t *testing.T) {
	mem := NewMemoryStore()
	seedModel(t, mem, 50)
	store := &flakyStore{MemoryStore: mem, failLoads: 2}
	ctx := context.Background()

	ai := newTestAI(testConfig(), store)
	prov := ai.LoadModel(ctx, "g")

	// Hold the provisional model so the writer below queues on it.
	prov.mu.Lock()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ai.Train(ctx, "g", Transition{Signature: "t", Action: "down", Success: true})
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		defer wg.Done()
		ai.LoadModel(ctx, "g")
	}()
	time.Sleep(20 * time.Millisecond)
	prov.mu.Unlock()
	wg.Wait()

	m := ai.LoadModel(ctx, "g")
	assert.NotSame(t, prov, m)
	assert.Equal(t, 51, m.Stats().TotalActions)
	_, visits := m.Value("t", "down")
	assert.Equal(t, 1, visits)

	prov.mu.Lock()
	assert.True(t, prov.retired)
	prov.mu.Unlock()
}

func TestLoad_ProvisionalModelIsNotSaved(t *testing.T) {
	mem := NewMemoryStore()
	seedModel(t, mem, 50)
	store := &flakyStore{MemoryStore: mem, failLoads: 100}
	ctx := context.Background()

	ai := newTestAI(testConfig(), store)

	ai.Train(ctx, "g", Transition{Signature: "s", Action: "up", Success: true})
	require.NoError(t, ai.SaveAll(ctx))
	assert.True(t, ai.LoadModel(ctx, "g").Dirty())

	reloaded := newTestAI(testConfig(), mem)
	assert.Equal(t, 50, reloaded.LoadModel(ctx, "g").Stats().TotalActions)
}

func TestSaveAll_FailureKeepsModelDirty(t *testing.T) {
	store := NewMemoryStore()
	store.SaveErr = errors.New("disk full")
	ai := newTestAI(testConfig(), store)
	ctx := context.Background()

	ai.Train(ctx, "a", Transition{Signature: "s", Action: "up", Success: true})
	ai.Train(ctx, "b", Transition{Signature: "s", Action: "up", Success: true})

	err := ai.SaveAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.SaveErr)
	assert.True(t, ai.LoadModel(ctx, "a").Dirty())

	store.SaveErr = nil
	require.NoError(t, ai.SaveAll(ctx))
	assert.False(t, ai.LoadModel(ctx, "a").Dirty())
	assert.False(t, ai.LoadModel(ctx, "b").Dirty())
}

func TestTrain_ConcurrentWriters(t *testing.T) {
	ai := newTestAI(testConfig(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ai.Train(ctx, "g", Transition{Signature: "s", Action: "up", Success: true})
			}
		}()
	}
	wg.Wait()

	_, visits := ai.LoadModel(ctx, "g").Value("s", "up")
	assert.Equal(t, 800, visits)
	assert.Equal(t, 800, ai.Stats(ctx, "g").TotalActions)
	assert.Len(t, ai.LoadModel(ctx, "g").Events(), testConfig().MaxEvents)
}

func TestStopFlushes(t *testing.T) {
	store := NewMemoryStore()
	ai := newTestAI(testConfig(), store)
	ctx := context.Background()

	ai.Start()
	assert.True(t, ai.Ready())
	ai.Train(ctx, "g", Transition{Signature: "s", Action: "up", Success: true})
	require.NoError(t, ai.Stop(ctx))
	assert.False(t, ai.Ready())

	_, err := store.Load(ctx, "g")
	assert.NoError(t, err)
}

func TestSignature_OrderIndependent(t *testing.T) {
	a := Signature(map[string]any{"x": 1, "y": 2, "level": 3})
	b := Signature(map[string]any{"level": 3, "y": 2, "x": 1})
	assert.Equal(t, a, b)
	assert.Equal(t, "level=3|x=1|y=2", a)
}

func TestAllStatsSorted(t *testing.T) {
	ai := newTestAI(testConfig(), nil)
	ctx := context.Background()
	ai.Train(ctx, "zeta", Transition{Signature: "s", Action: "a", Success: true})
	ai.Train(ctx, "alpha", Transition{Signature: "s", Action: "a", Success: true})

	all := ai.AllStats()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].GameID)
	assert.Equal(t, "zeta", all[1].GameID)
}

package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/gamehub/internal/browser"
	"github.com/vovakirdan/gamehub/internal/browser/browsertest"
	"github.com/vovakirdan/gamehub/internal/config"
	"github.com/vovakirdan/gamehub/internal/core"
	"github.com/vovakirdan/gamehub/internal/gameai"
	"github.com/vovakirdan/gamehub/internal/games/simpletest"
	"github.com/vovakirdan/gamehub/internal/games/webgame"
)

var quiet = log.New(io.Discard)

func newSimple(t *testing.T, cfg Config, deps Deps) *Session {
	t.Helper()
	cfg.UserID = "alice"
	cfg.GameID = simpletest.ID
	cfg.Seed = 7
	deps.Logger = quiet
	s := New(cfg, simpletest.New(), deps)
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func TestProcessAction_MoveSucceeds(t *testing.T) {
	s := newSimple(t, Config{}, Deps{})

	res := s.ProcessAction(context.Background(), "move", core.ActionData{"x": 1, "y": 1})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 1, res.State.Fields["x"])
	assert.Equal(t, 1, res.State.Fields["y"])

	stats := s.Stats()
	assert.Equal(t, 1, stats.ActionsPerformed)
	assert.Equal(t, 1, stats.Correct)

	hist := s.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "move", hist[0].Action)
}

func TestProcessAction_ValidationCountsIncorrect(t *testing.T) {
	s := newSimple(t, Config{}, Deps{})
	before := s.State()

	res := s.ProcessAction(context.Background(), "move", core.ActionData{"x": 99, "y": 0})
	assert.False(t, res.Success)
	assert.Equal(t, core.CodeValidation, res.Code)
	assert.Equal(t, before.Score, s.State().Score)
	assert.Equal(t, before.Fields["x"], s.State().Fields["x"])

	stats := s.Stats()
	assert.Equal(t, 1, stats.ActionsPerformed)
	assert.Equal(t, 1, stats.Incorrect)
}

func TestHistoryIsBoundedAndOrdered(t *testing.T) {
	s := newSimple(t, Config{HistorySize: 3}, Deps{})
	ctx := context.Background()

	for _, a := range []string{"right", "right", "down", "down", "left"} {
		s.ProcessAction(ctx, a, nil)
	}

	hist := s.History()
	require.Len(t, hist, 3)
	assert.Equal(t, []string{"down", "down", "left"}, []string{hist[0].Action, hist[1].Action, hist[2].Action})
	assert.Equal(t, 5, s.Stats().ActionsPerformed)
}

func TestPausedActionsAreRejected(t *testing.T) {
	s := newSimple(t, Config{}, Deps{})
	ctx := context.Background()

	require.NoError(t, s.Pause())
	res := s.ProcessAction(ctx, "right", nil)
	assert.Equal(t, core.CodePaused, res.Code)
	assert.Equal(t, 0, s.Stats().ActionsPerformed)
	assert.Error(t, s.Pause())

	require.NoError(t, s.Resume())
	assert.True(t, s.ProcessAction(ctx, "right", nil).Success)
}

func TestFinishIsIdempotent(t *testing.T) {
	s := newSimple(t, Config{}, Deps{})
	ctx := context.Background()
	s.ProcessAction(ctx, "score", core.ActionData{"points": 5})

	var wg sync.WaitGroup
	firsts := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, first := s.End(ctx, core.ReasonManual)
			firsts <- first
		}()
	}
	wg.Wait()
	close(firsts)

	count := 0
	for f := range firsts {
		if f {
			count++
		}
	}
	assert.Equal(t, 1, count)

	sum, ended := s.Summary()
	require.True(t, ended)
	assert.Equal(t, core.ReasonManual, sum.Reason)
	assert.Equal(t, 5, sum.FinalScore)

	res := s.ProcessAction(ctx, "right", nil)
	assert.Equal(t, core.CodeSessionEnded, res.Code)
	assert.ErrorIs(t, s.Pause(), ErrEnded)
}

func TestScoreLimitKeepsFirstReason(t *testing.T) {
	s := newSimple(t, Config{Limits: core.Limits{ScoreLimit: 10}}, Deps{})
	ctx := context.Background()

	res := s.ProcessAction(ctx, "score", core.ActionData{"points": 10})
	require.True(t, res.Success)
	assert.True(t, res.Ended())
	assert.True(t, s.GameEnded())
	assert.False(t, s.Ended())

	sum, first := s.End(ctx, core.ReasonManual)
	assert.True(t, first)
	assert.Equal(t, core.ReasonScoreLimit, sum.Reason)
}

func TestTrainingReachesModel(t *testing.T) {
	ai := gameai.New(config.Default().AI, nil, quiet, gameai.WithSeed(3))
	s := newSimple(t, Config{TrainBuffer: 1}, Deps{AI: ai})
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		s.ProcessAction(ctx, "right", nil)
	}
	s.ProcessAction(ctx, "move", core.ActionData{"x": -1, "y": 0})

	_, first := s.End(ctx, core.ReasonManual)
	require.True(t, first)

	stats := ai.Stats(ctx, simpletest.ID)
	assert.Equal(t, 7, stats.TotalActions)
	assert.Equal(t, 1, stats.TotalGames)
}

func TestExecuteAIAction(t *testing.T) {
	ai := gameai.New(config.Default().AI, nil, quiet, gameai.WithSeed(3))
	s := newSimple(t, Config{}, Deps{AI: ai})

	sug, res, err := s.ExecuteAIAction(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gameai.StrategyExploration, sug.Strategy)
	assert.Less(t, sug.Confidence, 0.2)
	assert.NotEmpty(t, res.Code+res.Message)
	assert.Equal(t, 1, s.Stats().ActionsPerformed)
}

func TestSuggestionWithoutAI(t *testing.T) {
	s := newSimple(t, Config{}, Deps{})
	_, err := s.Suggestion(context.Background())
	assert.ErrorIs(t, err, ErrAIDisabled)
}

func newEngine(t *testing.T) (*browser.Engine, *browsertest.Launcher) {
	t.Helper()
	l := browsertest.NewLauncher()
	e := browser.NewEngine(l, quiet)
	require.NoError(t, e.Initialize(context.Background()))
	return e, l
}

func TestBrowserGamePageClosedOnce(t *testing.T) {
	engine, l := newEngine(t)
	ctx := context.Background()

	s := New(Config{UserID: "bob", GameID: "web", URL: "http://static/web"}, webgame.New(""), Deps{Pages: engine, Logger: quiet})
	require.NoError(t, s.Initialize(ctx))
	assert.True(t, s.HasPage())
	assert.Equal(t, 1, engine.PageCount())

	l.Browser.Pages()[0].SetScore(25)
	res := s.ProcessAction(ctx, "space", nil)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 25, res.ScoreDelta)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.End(ctx, core.ReasonManual)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, l.Browser.Pages()[0].Closes())
	assert.Equal(t, 0, engine.PageCount())
	assert.False(t, s.HasPage())
}

func TestBrowserGameWithoutEngine(t *testing.T) {
	s := New(Config{UserID: "bob", GameID: "web", URL: "http://static/web"}, webgame.New(""), Deps{Logger: quiet})
	err := s.Initialize(context.Background())
	assert.ErrorIs(t, err, core.ErrEngineNotReady)
}

func TestBrowserGameNavigationFailure(t *testing.T) {
	engine, l := newEngine(t)
	l.Browser.GotoErr = assert.AnError

	s := New(Config{UserID: "bob", GameID: "web", URL: "http://bad"}, webgame.New(""), Deps{Pages: engine, Logger: quiet})
	require.Error(t, s.Initialize(context.Background()))
	assert.False(t, s.HasPage())
	assert.Equal(t, 0, engine.PageCount())
}

// blockingLearner never finishes training until released.
type blockingLearner struct {
	release chan struct{}
}

func (b *blockingLearner) LoadModel(ctx context.Context, gameID string) *gameai.Model { return nil }
func (b *blockingLearner) Train(ctx context.Context, gameID string, t gameai.Transition) {
	<-b.release
}
func (b *blockingLearner) Suggest(ctx context.Context, gameID, sig string, c []string) (gameai.Suggestion, error) {
	return gameai.Suggestion{}, gameai.ErrNoActions
}
func (b *blockingLearner) OnSessionEnd(ctx context.Context, gameID string, res gameai.SessionResult) {}

func TestCleanupTimeoutStillClosesPage(t *testing.T) {
	engine, l := newEngine(t)
	learner := &blockingLearner{release: make(chan struct{})}
	defer close(learner.release)

	s := New(Config{UserID: "bob", GameID: "web", URL: "http://static/web"}, webgame.New(""), Deps{AI: learner, Pages: engine, Logger: quiet})
	require.NoError(t, s.Initialize(context.Background()))
	s.ProcessAction(context.Background(), "up", nil)

	_, first := s.Finish(core.ReasonManual)
	require.True(t, first)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Cleanup(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.Browser.Pages()[0].Closes())
}

func TestInfoSnapshot(t *testing.T) {
	s := newSimple(t, Config{ID: "fixed"}, Deps{})
	s.ProcessAction(context.Background(), "score", core.ActionData{"points": 3})

	info := s.Info()
	assert.Equal(t, "fixed", info.ID)
	assert.Equal(t, "alice", info.UserID)
	assert.Equal(t, core.PhaseRunning, info.Phase)
	assert.Equal(t, 3, info.State.Score)
	assert.Equal(t, 3, info.Stats.PeakScore)
	assert.False(t, info.AIEnabled)
}

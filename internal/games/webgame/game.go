// Package webgame adapts a web-hosted game to the game lifecycle. Actions
// are forwarded to the session's browser page and the score is read back
// from the page after every action.
package webgame

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/vovakirdan/gamehub/internal/core"
	"github.com/vovakirdan/gamehub/internal/game"
	"github.com/vovakirdan/gamehub/internal/registry"
)

// DefaultScoreScript reads the score most demo games publish on window.
const DefaultScoreScript = "window.gameScore ?? 0"

// DefaultWaitTimeout bounds the wait action when no timeout_ms is given.
const DefaultWaitTimeout = 5 * time.Second

// ScrollStep is the scroll distance when dx and dy are omitted.
const ScrollStep = 100

var errNoPage = errors.New("no browser page attached")

// keys maps argument-free actions to the key they press.
var keys = map[string]string{
	"up":    "ArrowUp",
	"down":  "ArrowDown",
	"left":  "ArrowLeft",
	"right": "ArrowRight",
	"space": "Space",
	"enter": "Enter",
}

// Game drives one browser page.
type Game struct {
	scoreScript string
	page        game.Page

	score      int
	lastAction string
	lastShot   int
}

// New creates a web game that reads its score with scoreScript.
func New(scoreScript string) *Game {
	if scoreScript == "" {
		scoreScript = DefaultScoreScript
	}
	return &Game{scoreScript: scoreScript}
}

// Definition returns a catalog entry for a browser game served at url.
func Definition(id, title, url, scoreScript string) registry.GameDefinition {
	if title == "" {
		title = id
	}
	return registry.GameDefinition{
		ID:          id,
		Kind:        registry.KindBrowser,
		Title:       title,
		Description: "Browser game at " + url,
		URL:         url,
		Factory:     func() game.Rules { return New(scoreScript) },
	}
}

// AttachPage binds the session's page.
func (g *Game) AttachPage(p game.Page) {
	g.page = p
}

func (g *Game) Setup(_ *rand.Rand) error {
	g.score = 0
	g.lastAction = ""
	g.lastShot = 0
	return nil
}

// Actions returns the keyboard actions an automated player can take.
func (g *Game) Actions() []string {
	return []string{"up", "down", "left", "right", "space"}
}

func (g *Game) Validate(action string, data core.ActionData) error {
	if _, ok := keys[action]; ok {
		return nil
	}
	switch action {
	case "click":
		if s, ok := data.String("target"); !ok || s == "" {
			return fmt.Errorf("click requires a target selector")
		}
	case "type":
		if _, ok := data.String("text"); !ok {
			return fmt.Errorf("type requires text")
		}
	case "key":
		if s, ok := data.String("key"); !ok || s == "" {
			return fmt.Errorf("key requires a key name")
		}
	case "scroll":
		for _, k := range []string{"dx", "dy"} {
			if _, present := data[k]; !present {
				continue
			}
			if _, ok := data.Float(k); !ok {
				return fmt.Errorf("scroll %s must be a number", k)
			}
		}
	case "eval":
		if s, ok := data.String("script"); !ok || s == "" {
			return fmt.Errorf("eval requires a script")
		}
	case "wait":
		if s, ok := data.String("selector"); !ok || s == "" {
			return fmt.Errorf("wait requires a selector")
		}
		if _, present := data["timeout_ms"]; present {
			if ms, ok := data.Int("timeout_ms"); !ok || ms <= 0 {
				return fmt.Errorf("wait timeout_ms must be positive")
			}
		}
	case "screenshot":
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

// Apply forwards the action to the page, then reads the new score.
func (g *Game) Apply(ctx context.Context, action string, data core.ActionData) (game.Outcome, error) {
	if g.page == nil {
		return game.Outcome{}, errNoPage
	}

	msg, err := g.perform(ctx, action, data)
	if err != nil {
		return game.Outcome{}, err
	}
	g.lastAction = action

	score, err := g.readScore(ctx)
	if err != nil {
		if errors.Is(err, core.ErrEngineFailure) {
			return game.Outcome{}, err
		}
		// The action happened; an unreadable score only costs the delta.
		return game.Outcome{Message: msg}, nil
	}

	delta := score - g.score
	g.score = score
	return game.Outcome{Message: msg, ScoreDelta: delta}, nil
}

func (g *Game) perform(ctx context.Context, action string, data core.ActionData) (string, error) {
	if key, ok := keys[action]; ok {
		return "pressed " + key, g.page.PressKey(ctx, key)
	}

	switch action {
	case "click":
		target, _ := data.String("target")
		return "clicked " + target, g.page.Click(ctx, target)
	case "type":
		target, _ := data.String("target")
		text, _ := data.String("text")
		return fmt.Sprintf("typed %d chars", len(text)), g.page.Type(ctx, target, text)
	case "key":
		key, _ := data.String("key")
		return "pressed " + key, g.page.PressKey(ctx, key)
	case "scroll":
		dx, _ := data.Float("dx")
		dy, ok := data.Float("dy")
		if !ok {
			dy = ScrollStep
		}
		return fmt.Sprintf("scrolled %.0f,%.0f", dx, dy), g.page.Scroll(ctx, dx, dy)
	case "eval":
		script, _ := data.String("script")
		out, err := g.page.Evaluate(ctx, script)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("result: %v", out), nil
	case "wait":
		sel, _ := data.String("selector")
		timeout := DefaultWaitTimeout
		if ms, ok := data.Int("timeout_ms"); ok {
			timeout = time.Duration(ms) * time.Millisecond
		}
		return "found " + sel, g.page.WaitForSelector(ctx, sel, timeout)
	default:
		shot, err := g.page.Screenshot(ctx)
		if err != nil {
			return "", err
		}
		g.lastShot = len(shot)
		return fmt.Sprintf("screenshot %d bytes", len(shot)), nil
	}
}

func (g *Game) readScore(ctx context.Context) (int, error) {
	v, err := g.page.Evaluate(ctx, g.scoreScript)
	if err != nil {
		return 0, err
	}
	return toScore(v)
}

// toScore converts a JavaScript value to an integer score.
func toScore(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("score is %v", n)
		}
		return int(math.Round(n)), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("score %q is not a number", n)
		}
		return int(math.Round(f)), nil
	default:
		return 0, fmt.Errorf("score has type %T", v)
	}
}

func (g *Game) Observe() map[string]any {
	return map[string]any{
		"page_score":  g.score,
		"last_action": g.lastAction,
		"screenshot":  g.lastShot,
	}
}

// SignatureFields buckets the score so the AI sees a small state space.
func (g *Game) SignatureFields() map[string]any {
	return map[string]any{
		"score_band":  g.score / 100,
		"last_action": g.lastAction,
	}
}

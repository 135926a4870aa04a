// Package simpletest implements simple_test, a small grid game used for
// smoke tests and AI demos. The player moves on a grid and collects a goal
// cell that relocates after each pickup.
package simpletest

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/vovakirdan/gamehub/internal/core"
	"github.com/vovakirdan/gamehub/internal/game"
	"github.com/vovakirdan/gamehub/internal/registry"
)

// ID is the registry id of the game.
const ID = "simple_test"

const (
	// GridSize is the width and height of the board.
	GridSize = 10

	// GoalPoints is awarded for reaching the goal cell.
	GoalPoints = 10

	// MaxBonus caps a single "score" action.
	MaxBonus = 100
)

// Game holds the board position.
type Game struct {
	rng   *rand.Rand
	x, y  int
	goalX int
	goalY int
	moves int
}

// New creates a simple_test game.
func New() *Game {
	return &Game{}
}

// Definition returns the catalog entry for simple_test.
func Definition() registry.GameDefinition {
	return registry.GameDefinition{
		ID:          ID,
		Kind:        registry.KindNative,
		Title:       "Simple Test",
		Description: "Walk the grid and collect the goal cell.",
		Limits:      core.Limits{ScoreLimit: 100},
		Factory:     func() game.Rules { return New() },
	}
}

// Setup places the player at the origin and picks a goal.
func (g *Game) Setup(rng *rand.Rand) error {
	g.rng = rng
	g.x, g.y = 0, 0
	g.moves = 0
	g.placeGoal()
	return nil
}

// Actions returns the directional moves an automated player can take.
func (g *Game) Actions() []string {
	return []string{"up", "down", "left", "right"}
}

// Validate checks arguments and bounds.
func (g *Game) Validate(action string, data core.ActionData) error {
	switch action {
	case "move":
		x, okX := data.Int("x")
		y, okY := data.Int("y")
		if !okX || !okY {
			return fmt.Errorf("move requires integer x and y")
		}
		if !inBounds(x, y) {
			return fmt.Errorf("position (%d,%d) is outside the %dx%d grid", x, y, GridSize, GridSize)
		}
	case "up", "down", "left", "right":
		dx, dy := delta(action)
		if !inBounds(g.x+dx, g.y+dy) {
			return fmt.Errorf("cannot move %s from (%d,%d)", action, g.x, g.y)
		}
	case "score":
		n, ok := data.Int("points")
		if !ok || n <= 0 || n > MaxBonus {
			return fmt.Errorf("score requires points in 1..%d", MaxBonus)
		}
	case "damage", "wait":
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

// Apply performs a validated action.
func (g *Game) Apply(_ context.Context, action string, data core.ActionData) (game.Outcome, error) {
	switch action {
	case "move":
		x, _ := data.Int("x")
		y, _ := data.Int("y")
		return g.moveTo(x, y), nil
	case "up", "down", "left", "right":
		dx, dy := delta(action)
		return g.moveTo(g.x+dx, g.y+dy), nil
	case "score":
		n, _ := data.Int("points")
		return game.Outcome{ScoreDelta: n, Message: fmt.Sprintf("+%d points", n)}, nil
	case "damage":
		return game.Outcome{LivesDelta: -1, Message: "ouch"}, nil
	default:
		return game.Outcome{Message: "waited"}, nil
	}
}

// Observe exposes the player and goal positions.
func (g *Game) Observe() map[string]any {
	return map[string]any{
		"x":      g.x,
		"y":      g.y,
		"goal_x": g.goalX,
		"goal_y": g.goalY,
	}
}

// Position returns the player position.
func (g *Game) Position() (int, int) {
	return g.x, g.y
}

func (g *Game) moveTo(x, y int) game.Outcome {
	g.x, g.y = x, y
	g.moves++
	if x == g.goalX && y == g.goalY {
		g.placeGoal()
		return game.Outcome{ScoreDelta: GoalPoints, Message: fmt.Sprintf("goal reached at (%d,%d)", x, y)}
	}
	return game.Outcome{Message: fmt.Sprintf("moved to (%d,%d)", x, y)}
}

// placeGoal picks a goal cell different from the player position.
func (g *Game) placeGoal() {
	for {
		gx, gy := g.rng.Intn(GridSize), g.rng.Intn(GridSize)
		if gx != g.x || gy != g.y {
			g.goalX, g.goalY = gx, gy
			return
		}
	}
}

func delta(dir string) (int, int) {
	switch dir {
	case "up":
		return 0, -1
	case "down":
		return 0, 1
	case "left":
		return -1, 0
	default:
		return 1, 0
	}
}

func inBounds(x, y int) bool {
	return x >= 0 && x < GridSize && y >= 0 && y < GridSize
}

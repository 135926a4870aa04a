package t2048

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/vovakirdan/gamehub/internal/core"
	"github.com/vovakirdan/gamehub/internal/game"
	"github.com/vovakirdan/gamehub/internal/registry"
)

// ID is the registry id of the game.
const ID = "2048"

// End reasons specific to 2048.
const (
	ReasonBoardLocked = "board_locked"
	ReasonWon         = "won"
)

// Game implements the 2048 puzzle rules.
type Game struct {
	rng        *rand.Rand
	board      Board
	levelIndex int
	won        bool
}

// New creates a 2048 game.
func New() *Game {
	return &Game{}
}

// Definition returns the catalog entry for 2048.
func Definition() registry.GameDefinition {
	return registry.GameDefinition{
		ID:          ID,
		Kind:        registry.KindNative,
		Title:       "2048",
		Description: "Slide tiles, merge equal values, reach 2048.",
		Limits:      core.Limits{Lives: 1},
		Factory:     func() game.Rules { return New() },
	}
}

// Setup clears the board and spawns the two opening tiles.
func (g *Game) Setup(rng *rand.Rand) error {
	g.rng = rng
	g.board = Board{}
	g.levelIndex = 0
	g.won = false
	g.spawnTile()
	g.spawnTile()
	return nil
}

// Actions returns the four slide directions.
func (g *Game) Actions() []string {
	return []string{"up", "down", "left", "right"}
}

// Validate rejects unknown directions and slides that would not move anything.
func (g *Game) Validate(action string, _ core.ActionData) error {
	dir, ok := ParseDirection(action)
	if !ok {
		return fmt.Errorf("unknown action %q, want up/down/left/right", action)
	}
	if _, _, changed := g.board.Slide(dir); !changed {
		return fmt.Errorf("nothing moves %s", action)
	}
	return nil
}

// Apply slides the board, spawns a tile and advances the campaign level.
func (g *Game) Apply(_ context.Context, action string, _ core.ActionData) (game.Outcome, error) {
	dir, _ := ParseDirection(action)
	board, points, _ := g.board.Slide(dir)
	g.board = board

	out := game.Outcome{ScoreDelta: points, Message: fmt.Sprintf("slid %s", action)}

	if lvl := GetLevel(g.levelIndex); lvl != nil && g.board.MaxTile() >= lvl.Target {
		if g.levelIndex == len(Levels)-1 {
			g.won = true
			out.Message = fmt.Sprintf("reached %d", lvl.Target)
			return out, nil
		}
		g.levelIndex++
		out.LevelDelta = 1
		out.Message = fmt.Sprintf("level %d cleared", lvl.ID)
	}

	g.spawnTile()
	return out, nil
}

// CheckEnd ends the game on a win or a locked board.
func (g *Game) CheckEnd(core.GameState) (string, bool) {
	if g.won {
		return ReasonWon, true
	}
	if !g.board.CanMove() {
		return ReasonBoardLocked, true
	}
	return "", false
}

// Observe exposes the board and the current target.
func (g *Game) Observe() map[string]any {
	target := 0
	if lvl := GetLevel(g.levelIndex); lvl != nil {
		target = lvl.Target
	}
	return map[string]any{
		"board":    g.board,
		"max_tile": g.board.MaxTile(),
		"empty":    len(g.board.Empty()),
		"target":   target,
	}
}

// SignatureFields is the coarse view the AI learns on; the full board is too sparse.
func (g *Game) SignatureFields() map[string]any {
	return map[string]any{
		"max_tile": g.board.MaxTile(),
		"empty":    len(g.board.Empty()),
		"corner":   g.board.MaxInCorner(),
	}
}

// Board returns the current board.
func (g *Game) Board() Board {
	return g.board
}

// spawnTile places a 2 (or sometimes a 4) in a random empty cell.
func (g *Game) spawnTile() {
	empty := g.board.Empty()
	if len(empty) == 0 {
		return
	}
	c := empty[g.rng.Intn(len(empty))]

	p := 0.10
	if lvl := GetLevel(g.levelIndex); lvl != nil {
		p = lvl.Spawn4
	}
	value := 2
	if g.rng.Float64() < p {
		value = 4
	}
	g.board[c.Y][c.X] = value
}

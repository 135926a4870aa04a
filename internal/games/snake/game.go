package snake

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/vovakirdan/gamehub/internal/core"
	"github.com/vovakirdan/gamehub/internal/game"
	"github.com/vovakirdan/gamehub/internal/registry"
)

// ID is the registry id of the game.
const ID = "snake"

// FoodPoints is awarded for every food eaten.
const FoodPoints = 10

// ReasonWon ends the game after the last level.
const ReasonWon = "won"

// Direction represents the snake's movement direction.
type Direction int

const (
	DirRight Direction = iota
	DirDown
	DirLeft
	DirUp
)

// Point represents a 2D coordinate.
type Point struct {
	X, Y int
}

// Game implements the Snake rules.
type Game struct {
	rng        *rand.Rand
	foodEaten  int // Food eaten in current level
	levelIndex int // Current level (0-indexed)
	moves      int

	// Snake state
	snake     []Point // Head at index 0
	direction Direction

	// Map state
	mapWidth  int
	mapHeight int
	walls     map[Point]bool
	food      Point

	won bool
}

// New creates a Snake game.
func New() *Game {
	return &Game{}
}

// Definition returns the catalog entry for snake.
func Definition() registry.GameDefinition {
	return registry.GameDefinition{
		ID:          ID,
		Kind:        registry.KindNative,
		Title:       "Snake",
		Description: "Eat food, grow, avoid the walls and your own tail.",
		Limits:      core.Limits{Lives: 3},
		Factory:     func() game.Rules { return New() },
	}
}

// Setup starts the campaign from the first level.
func (g *Game) Setup(rng *rand.Rand) error {
	g.rng = rng
	g.levelIndex = 0
	g.moves = 0
	g.won = false
	return g.loadLevel()
}

// loadLevel loads the current level's map and spawns the snake.
func (g *Game) loadLevel() error {
	level := GetLevel(g.levelIndex)
	if level == nil {
		return fmt.Errorf("snake: no level %d", g.levelIndex+1)
	}
	g.foodEaten = 0

	// Parse layout
	g.walls = make(map[Point]bool)
	g.mapHeight = len(level.Layout)
	g.mapWidth = 0
	for y, row := range level.Layout {
		if len(row) > g.mapWidth {
			g.mapWidth = len(row)
		}
		for x, ch := range row {
			if ch == '#' {
				g.walls[Point{X: x, Y: y}] = true
			}
		}
	}

	g.initSnake()
	g.spawnFood()
	return nil
}

// initSnake places a three-segment snake heading right at a clear spot.
func (g *Game) initSnake() {
	startX := g.mapWidth / 4
	startY := g.mapHeight / 2

	// Search for a clear spot
	for n := 0; n < 100; n++ {
		if g.clearRun(startX, startY) {
			break
		}
		startX = 1 + g.rng.Intn(max(1, g.mapWidth/2))
		startY = 1 + g.rng.Intn(max(1, g.mapHeight-2))
	}

	g.snake = []Point{
		{X: startX + 2, Y: startY}, // Head
		{X: startX + 1, Y: startY},
		{X: startX, Y: startY},
	}
	g.direction = DirRight
}

// clearRun reports whether the three cells from (x, y) rightwards and the
// cell ahead of them are free.
func (g *Game) clearRun(x, y int) bool {
	for i := 0; i < 4; i++ {
		p := Point{X: x + i, Y: y}
		if g.blocked(p) {
			return false
		}
	}
	return true
}

// spawnFood places food at a random empty cell.
func (g *Game) spawnFood() {
	var emptyCells []Point
	for y := 0; y < g.mapHeight; y++ {
		for x := 0; x < g.mapWidth; x++ {
			p := Point{X: x, Y: y}
			if !g.walls[p] && !g.isSnakeAt(p) {
				emptyCells = append(emptyCells, p)
			}
		}
	}

	if len(emptyCells) == 0 {
		g.food = Point{X: -1, Y: -1}
		return
	}
	g.food = emptyCells[g.rng.Intn(len(emptyCells))]
}

// isSnakeAt checks if the snake occupies the given point.
func (g *Game) isSnakeAt(p Point) bool {
	for _, seg := range g.snake {
		if seg == p {
			return true
		}
	}
	return false
}

func (g *Game) blocked(p Point) bool {
	return g.walls[p] || p.X < 0 || p.X >= g.mapWidth || p.Y < 0 || p.Y >= g.mapHeight
}

// Actions returns the four directions plus "forward".
func (g *Game) Actions() []string {
	return []string{"up", "down", "left", "right", "forward"}
}

// Validate rejects unknown actions and instant reversals.
func (g *Game) Validate(action string, _ core.ActionData) error {
	if action == "forward" {
		return nil
	}
	dir, ok := ParseDirection(action)
	if !ok {
		return fmt.Errorf("unknown action %q, want up/down/left/right/forward", action)
	}
	if isOpposite(dir, g.direction) {
		return fmt.Errorf("cannot reverse from %s to %s", g.direction, dir)
	}
	return nil
}

// Apply turns and moves the snake one cell.
func (g *Game) Apply(_ context.Context, action string, _ core.ActionData) (game.Outcome, error) {
	if dir, ok := ParseDirection(action); ok {
		g.direction = dir
	}
	g.moves++
	return g.moveSnake(), nil
}

// moveSnake moves the snake one cell in the current direction. A crash costs
// a life and respawns the snake on the same level.
func (g *Game) moveSnake() game.Outcome {
	newHead := g.ahead(g.direction)

	crashed := g.blocked(newHead)
	if !crashed {
		// The tail moves away unless the snake eats this move.
		checkLen := len(g.snake)
		if newHead != g.food {
			checkLen--
		}
		for i := 0; i < checkLen; i++ {
			if g.snake[i] == newHead {
				crashed = true
				break
			}
		}
	}
	if crashed {
		g.initSnake()
		g.spawnFood()
		return game.Outcome{LivesDelta: -1, Message: "crashed"}
	}

	g.snake = append([]Point{newHead}, g.snake...)
	if newHead != g.food {
		g.snake = g.snake[:len(g.snake)-1]
		return game.Outcome{Message: "moved " + g.direction.String()}
	}

	out := game.Outcome{ScoreDelta: FoodPoints, Message: "ate food"}
	g.foodEaten++
	level := GetLevel(g.levelIndex)
	if level != nil && g.foodEaten >= level.TargetFood {
		if g.levelIndex == LevelCount()-1 {
			g.won = true
			out.Message = "campaign cleared"
			return out
		}
		g.levelIndex++
		_ = g.loadLevel()
		out.LevelDelta = 1
		out.Message = fmt.Sprintf("level %d cleared", level.ID)
		return out
	}
	g.spawnFood()
	return out
}

// CheckEnd ends the game once the last level is cleared.
func (g *Game) CheckEnd(core.GameState) (string, bool) {
	if g.won {
		return ReasonWon, true
	}
	return "", false
}

func (g *Game) ahead(d Direction) Point {
	head := g.snake[0]
	switch d {
	case DirUp:
		return Point{X: head.X, Y: head.Y - 1}
	case DirDown:
		return Point{X: head.X, Y: head.Y + 1}
	case DirLeft:
		return Point{X: head.X - 1, Y: head.Y}
	default:
		return Point{X: head.X + 1, Y: head.Y}
	}
}

// Observe exposes the head, the food, the length and the heading.
func (g *Game) Observe() map[string]any {
	head := g.snake[0]
	return map[string]any{
		"head_x":    head.X,
		"head_y":    head.Y,
		"food_x":    g.food.X,
		"food_y":    g.food.Y,
		"length":    len(g.snake),
		"direction": g.direction.String(),
		"food_left": g.foodLeft(),
	}
}

// SignatureFields is the relative view the AI learns on: where the food is
// and which neighbouring cells are deadly.
func (g *Game) SignatureFields() map[string]any {
	head := g.snake[0]
	return map[string]any{
		"food_dx":   sign(g.food.X - head.X),
		"food_dy":   sign(g.food.Y - head.Y),
		"direction": g.direction.String(),
		"danger":    g.danger(),
	}
}

// danger encodes which of up, down, left, right would crash, e.g. "u-l-".
func (g *Game) danger() string {
	b := []byte("----")
	for i, d := range []Direction{DirUp, DirDown, DirLeft, DirRight} {
		p := g.ahead(d)
		if g.blocked(p) || g.isSnakeAt(p) {
			b[i] = "udlr"[i]
		}
	}
	return string(b)
}

func (g *Game) foodLeft() int {
	if level := GetLevel(g.levelIndex); level != nil {
		return level.TargetFood - g.foodEaten
	}
	return 0
}

// ParseDirection converts an action name to a direction.
func ParseDirection(action string) (Direction, bool) {
	switch action {
	case "up":
		return DirUp, true
	case "down":
		return DirDown, true
	case "left":
		return DirLeft, true
	case "right":
		return DirRight, true
	default:
		return 0, false
	}
}

// isOpposite checks if two directions are opposite.
func isOpposite(d1, d2 Direction) bool {
	return (d1 == DirUp && d2 == DirDown) ||
		(d1 == DirDown && d2 == DirUp) ||
		(d1 == DirLeft && d2 == DirRight) ||
		(d1 == DirRight && d2 == DirLeft)
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "unknown"
	}
}

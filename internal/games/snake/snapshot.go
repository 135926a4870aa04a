package snake

// Snapshot captures the rules state for determinism tests.
type Snapshot struct {
	Moves     int
	Level     int // Current level (1-indexed for display)
	FoodEaten int // Food eaten in current level
	SnakeLen  int
	HeadX     int
	HeadY     int
	Dir       Direction
	FoodX     int
	FoodY     int
	Won       bool
}

// Snapshot returns the current game snapshot for determinism verification.
func (g *Game) Snapshot() Snapshot {
	headX, headY := 0, 0
	if len(g.snake) > 0 {
		headX = g.snake[0].X
		headY = g.snake[0].Y
	}

	return Snapshot{
		Moves:     g.moves,
		Level:     g.levelIndex + 1,
		FoodEaten: g.foodEaten,
		SnakeLen:  len(g.snake),
		HeadX:     headX,
		HeadY:     headY,
		Dir:       g.direction,
		FoodX:     g.food.X,
		FoodY:     g.food.Y,
		Won:       g.won,
	}
}

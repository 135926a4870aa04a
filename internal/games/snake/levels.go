// Package snake implements Snake as a turn-based game: every action moves the
// snake one cell. Eating food grows the snake; clearing a level's food target
// loads the next map.
package snake

// Level is one map of the campaign. '#' cells are walls.
type Level struct {
	ID         int
	Name       string
	TargetFood int
	Layout     []string
}

// Levels defines the campaign. Clearing the last level wins the game.
var Levels = []Level{
	{
		ID:         1,
		Name:       "Open Field",
		TargetFood: 5,
		Layout: []string{
			"####################",
			"#                  #",
			"#                  #",
			"#                  #",
			"#                  #",
			"#                  #",
			"#                  #",
			"#                  #",
			"#                  #",
			"####################",
		},
	},
	{
		ID:         2,
		Name:       "Pillars",
		TargetFood: 8,
		Layout: []string{
			"####################",
			"#                  #",
			"#   ##        ##   #",
			"#   ##        ##   #",
			"#                  #",
			"#                  #",
			"#   ##        ##   #",
			"#   ##        ##   #",
			"#                  #",
			"####################",
		},
	},
	{
		ID:         3,
		Name:       "Corridors",
		TargetFood: 10,
		Layout: []string{
			"####################",
			"#                  #",
			"#  ############    #",
			"#                  #",
			"#    ############  #",
			"#                  #",
			"#  ############    #",
			"#                  #",
			"#                  #",
			"####################",
		},
	},
}

// LevelCount returns the number of campaign levels.
func LevelCount() int {
	return len(Levels)
}

// GetLevel returns the level at the given index (0-based).
// Returns nil if index is out of range.
func GetLevel(index int) *Level {
	if index < 0 || index >= len(Levels) {
		return nil
	}
	return &Levels[index]
}

package t2048

// Direction represents a move direction.
type Direction int

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

// ParseDirection maps an action name to a direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
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

// BoardSize is the board dimension.
const BoardSize = 4

// Board is a BoardSize x BoardSize grid of tile values, 0 for empty.
type Board [BoardSize][BoardSize]int

type cell struct{ X, Y int }

// mergeRow slides one row toward index 0. Each tile merges at most once per move.
// Returns the new row and the points earned.
func mergeRow(row [BoardSize]int) ([BoardSize]int, int) {
	var out [BoardSize]int
	n, points := 0, 0
	sealed := false // out[n-1] is the product of a merge this move
	for _, v := range row {
		if v == 0 {
			continue
		}
		if n > 0 && !sealed && out[n-1] == v {
			out[n-1] = v * 2
			points += v * 2
			sealed = true
			continue
		}
		out[n] = v
		n++
		sealed = false
	}
	return out, points
}

// Slide moves every tile in dir. Returns the new board, the points earned
// and whether anything moved.
func (b Board) Slide(dir Direction) (Board, int, bool) {
	var out Board
	total := 0
	for i := 0; i < BoardSize; i++ {
		line := b.line(dir, i)
		merged, points := mergeRow(line)
		out.setLine(dir, i, merged)
		total += points
	}
	return out, total, out != b
}

// line reads row or column i ordered so that index 0 is the edge tiles slide toward.
func (b Board) line(dir Direction, i int) [BoardSize]int {
	var l [BoardSize]int
	for j := 0; j < BoardSize; j++ {
		x, y := coords(dir, i, j)
		l[j] = b[y][x]
	}
	return l
}

func (b *Board) setLine(dir Direction, i int, l [BoardSize]int) {
	for j := 0; j < BoardSize; j++ {
		x, y := coords(dir, i, j)
		b[y][x] = l[j]
	}
}

// coords maps (line i, position j) to board coordinates for dir.
func coords(dir Direction, i, j int) (x, y int) {
	last := BoardSize - 1
	switch dir {
	case DirLeft:
		return j, i
	case DirRight:
		return last - j, i
	case DirUp:
		return i, j
	default:
		return i, last - j
	}
}

// Empty returns all empty cells in row-major order.
func (b Board) Empty() []cell {
	var cells []cell
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			if b[y][x] == 0 {
				cells = append(cells, cell{x, y})
			}
		}
	}
	return cells
}

// CanMove returns true if any slide would change the board.
func (b Board) CanMove() bool {
	if len(b.Empty()) > 0 {
		return true
	}
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			v := b[y][x]
			if x < BoardSize-1 && b[y][x+1] == v {
				return true
			}
			if y < BoardSize-1 && b[y+1][x] == v {
				return true
			}
		}
	}
	return false
}

// MaxTile returns the highest tile value.
func (b Board) MaxTile() int {
	m := 0
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			m = max(m, b[y][x])
		}
	}
	return m
}

// MaxInCorner reports whether the highest tile sits in a corner.
func (b Board) MaxInCorner() bool {
	m, last := b.MaxTile(), BoardSize-1
	return b[0][0] == m || b[0][last] == m || b[last][0] == m || b[last][last] == m
}

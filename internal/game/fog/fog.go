// Package fog computes fog-of-war reveals. The server reveals a square window
// around the player after every successful move; clients render undiscovered
// cells dark.
package fog

import "github.com/Beykus-Y/mcp-agent/internal/game/character"

// RevealSize is the side length of the square revealed around the player.
const RevealSize = 6

// Coord is one map cell.
type Coord struct {
	X int
	Y int
}

// Window returns the in-bounds cells of a size×size square centered on
// (cx, cy). For even sizes the window spans offsets [-size/2, size/2-1], so
// the center sits on the upper-left of the middle four cells.
func Window(cx, cy, size, width, height int) []Coord {
	half := size / 2
	cells := make([]Coord, 0, size*size)
	for dy := -half; dy < size-half; dy++ {
		for dx := -half; dx < size-half; dx++ {
			x, y := cx+dx, cy+dy
			if x < 0 || x >= width || y < 0 || y >= height {
				continue
			}
			cells = append(cells, Coord{X: x, Y: y})
		}
	}
	return cells
}

// Reveal unions the reveal window around (cx, cy) into the set. Cells are
// only ever added; the set stays monotonic.
func Reveal(set character.CoordSet, cx, cy, width, height int) {
	for _, c := range Window(cx, cy, RevealSize, width, height) {
		set.Add(c.X, c.Y)
	}
}

package board

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/KDT2006/minewars/internal/protocol"
)

// MaxAttempts is how many random layouts a no-guess board may reject before
// an opening is forced.
const MaxAttempts = 100

// ErrInvalidDimensions is returned when a board cannot satisfy its request.
var ErrInvalidDimensions = errors.New("invalid board dimensions")

// Point addresses a cell by row and column.
type Point struct {
	R, C int
}

// Board is a rectangular minefield. The mine layout never changes once built,
// except for the forced opening applied during generation.
type Board struct {
	Rows  int
	Cols  int
	Tiles [][]protocol.Tile
	mines int
}

// New builds a board with mines at exactly the given cells and computes the
// adjacency counts. Duplicate and out of range cells are ignored.
func New(rows, cols int, mines []Point) *Board {
	tiles := make([][]protocol.Tile, rows)
	for r := range tiles {
		tiles[r] = make([]protocol.Tile, cols)
	}

	b := &Board{Rows: rows, Cols: cols, Tiles: tiles}
	for _, p := range mines {
		if !b.InBounds(p.R, p.C) || b.Tiles[p.R][p.C].IsMine {
			continue
		}
		b.Tiles[p.R][p.C].IsMine = true
		b.mines++
	}
	b.calculateCounts()

	return b
}

// Generate places mineCount mines uniformly at random. With noGuess set the
// board is regenerated until some safe cell has a zero count; after
// MaxAttempts failures a 3x3 area is cleared around a random cell instead,
// which may leave fewer mines than requested.
func Generate(rng *rand.Rand, rows, cols, mineCount int, noGuess bool) (*Board, error) {
	if rows < 3 || cols < 3 {
		return nil, fmt.Errorf("%w: %dx%d is smaller than 3x3", ErrInvalidDimensions, rows, cols)
	}
	if mineCount < 0 || mineCount > rows*cols-9 {
		return nil, fmt.Errorf("%w: %d mines on %dx%d", ErrInvalidDimensions, mineCount, rows, cols)
	}

	for attempt := 1; ; attempt++ {
		b := New(rows, cols, placeMines(rng, rows, cols, mineCount))
		if !noGuess || b.HasOpening() {
			return b, nil
		}
		if attempt >= MaxAttempts {
			b.forceOpening(rng)
			return b, nil
		}
	}
}

func placeMines(rng *rand.Rand, rows, cols, count int) []Point {
	cells := rng.Perm(rows * cols)[:count]
	mines := make([]Point, len(cells))
	for i, idx := range cells {
		mines[i] = Point{R: idx / cols, C: idx % cols}
	}
	return mines
}

func (b *Board) forceOpening(rng *rand.Rand) {
	center := Point{R: rng.IntN(b.Rows), C: rng.IntN(b.Cols)}
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			r, c := center.R+dr, center.C+dc
			if b.InBounds(r, c) && b.Tiles[r][c].IsMine {
				b.Tiles[r][c].IsMine = false
				b.mines--
			}
		}
	}
	b.calculateCounts()
}

// calculateCounts recomputes every non-mine cell's neighbour count.
func (b *Board) calculateCounts() {
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			tile := &b.Tiles[r][c]
			if tile.IsMine {
				tile.Count = 0
				continue
			}
			count := 0
			for _, n := range b.Neighbors(r, c) {
				if b.Tiles[n.R][n.C].IsMine {
					count++
				}
			}
			tile.Count = count
		}
	}
}

// InBounds reports whether (r, c) is on the board.
func (b *Board) InBounds(r, c int) bool {
	return r >= 0 && r < b.Rows && c >= 0 && c < b.Cols
}

// Neighbors returns the up to eight cells surrounding (r, c).
func (b *Board) Neighbors(r, c int) []Point {
	neighbors := make([]Point, 0, 8)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			if b.InBounds(r+dr, c+dc) {
				neighbors = append(neighbors, Point{R: r + dr, C: c + dc})
			}
		}
	}
	return neighbors
}

// Tile returns a pointer to the cell at (r, c). The caller must check bounds.
func (b *Board) Tile(r, c int) *protocol.Tile {
	return &b.Tiles[r][c]
}

// Mines is the number of mines on the board.
func (b *Board) Mines() int {
	return b.mines
}

// HasOpening reports whether any safe cell has no adjacent mines.
func (b *Board) HasOpening() bool {
	for r := range b.Tiles {
		for _, tile := range b.Tiles[r] {
			if !tile.IsMine && tile.Count == 0 {
				return true
			}
		}
	}
	return false
}

// ClosedSafe counts safe cells that are still closed.
func (b *Board) ClosedSafe() int {
	closed := 0
	for r := range b.Tiles {
		for _, tile := range b.Tiles[r] {
			if !tile.IsMine && !tile.IsOpen {
				closed++
			}
		}
	}
	return closed
}

// Flagged counts flagged cells.
func (b *Board) Flagged() int {
	flagged := 0
	for r := range b.Tiles {
		for _, tile := range b.Tiles[r] {
			if tile.Flagged {
				flagged++
			}
		}
	}
	return flagged
}

// MinesLeft is the display counter: mines minus flags.
func (b *Board) MinesLeft() int {
	return b.mines - b.Flagged()
}

// Snapshot returns a deep copy of the tiles.
func (b *Board) Snapshot() [][]protocol.Tile {
	tiles := make([][]protocol.Tile, len(b.Tiles))
	for r := range b.Tiles {
		tiles[r] = append([]protocol.Tile(nil), b.Tiles[r]...)
	}
	return tiles
}

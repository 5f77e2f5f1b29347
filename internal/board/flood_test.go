package board

import "testing"

func TestFloodFillOpensWholeBoardAroundSingleCornerMine(t *testing.T) {
	b := New(5, 5, []Point{{0, 0}})

	opened := b.FloodFill(4, 4)

	if len(opened) != 24 {
		t.Fatalf("expected 24 opened cells, got %d", len(opened))
	}
	if b.ClosedSafe() != 0 {
		t.Fatalf("expected no closed safe cells, got %d", b.ClosedSafe())
	}
	if b.Tile(0, 0).IsOpen {
		t.Fatalf("flood fill opened a mine")
	}
}

func TestFloodFillStopsAtNumberedCell(t *testing.T) {
	b := New(5, 5, []Point{{0, 0}})

	opened := b.FloodFill(1, 1)

	if len(opened) != 1 || opened[0] != (Point{1, 1}) {
		t.Fatalf("expected only (1,1) opened, got %v", opened)
	}
}

func TestFloodFillIgnoresMinesAndOpenCells(t *testing.T) {
	b := New(5, 5, []Point{{0, 0}})

	if opened := b.FloodFill(0, 0); opened != nil {
		t.Fatalf("expected mine start to open nothing, got %v", opened)
	}
	b.FloodFill(1, 1)
	if opened := b.FloodFill(1, 1); opened != nil {
		t.Fatalf("expected open start to open nothing, got %v", opened)
	}
	if opened := b.FloodFill(-1, 9); opened != nil {
		t.Fatalf("expected out of range start to open nothing, got %v", opened)
	}
}

func TestFloodFillClearsFlagsOnOpenedCells(t *testing.T) {
	b := New(5, 5, []Point{{0, 0}})
	b.Tile(3, 3).Flagged = true

	b.FloodFill(4, 4)

	if b.Tile(3, 3).Flagged {
		t.Fatalf("opened cell kept its flag")
	}
}

// The opened region must be exactly the zero-count cells connected to the
// start plus their neighbours, with no cell reported twice.
func TestFloodFillRegionMatchesClosure(t *testing.T) {
	rng := newRand(42)
	for i := 0; i < 40; i++ {
		b, err := Generate(rng, 12, 14, 25, true)
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		var start *Point
		for r := 0; r < b.Rows && start == nil; r++ {
			for c := 0; c < b.Cols; c++ {
				if !b.Tiles[r][c].IsMine && b.Tiles[r][c].Count == 0 {
					start = &Point{r, c}
					break
				}
			}
		}
		if start == nil {
			t.Fatalf("no-guess board without opening")
		}

		opened := b.FloodFill(start.R, start.C)

		seen := make(map[Point]bool, len(opened))
		for _, p := range opened {
			if seen[p] {
				t.Fatalf("cell %v reported twice", p)
			}
			seen[p] = true
		}

		for r := 0; r < b.Rows; r++ {
			for c := 0; c < b.Cols; c++ {
				p := Point{r, c}
				tile := b.Tiles[r][c]
				if tile.IsOpen != seen[p] {
					t.Fatalf("cell %v open=%v but reported=%v", p, tile.IsOpen, seen[p])
				}
				if !tile.IsOpen {
					continue
				}
				if tile.IsMine {
					t.Fatalf("mine %v opened", p)
				}
				if tile.Count == 0 {
					for _, n := range b.Neighbors(r, c) {
						if !b.Tiles[n.R][n.C].IsOpen {
							t.Fatalf("neighbour %v of zero cell %v left closed", n, p)
						}
					}
				}
				if p != *start {
					border := false
					for _, n := range b.Neighbors(r, c) {
						if seen[n] && b.Tiles[n.R][n.C].Count == 0 {
							border = true
							break
						}
					}
					if !border {
						t.Fatalf("cell %v opened without a zero-count neighbour", p)
					}
				}
			}
		}
	}
}

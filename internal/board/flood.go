package board

// FloodFill opens (r, c) and, through every zero-count cell it reaches, the
// connected safe region and its numbered border. Cells are returned in the
// order they were opened; each appears once. Mines and already open cells are
// never opened, so a mine or open start yields nothing.
//
// The expansion uses an explicit stack so large boards cannot exhaust the
// goroutine stack.
func (b *Board) FloodFill(r, c int) []Point {
	if !b.InBounds(r, c) {
		return nil
	}
	start := b.Tile(r, c)
	if start.IsOpen || start.IsMine {
		return nil
	}

	queued := make([]bool, b.Rows*b.Cols)
	queued[r*b.Cols+c] = true
	stack := []Point{{R: r, C: c}}
	var opened []Point

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		tile := b.Tile(p.R, p.C)
		tile.IsOpen = true
		tile.Flagged = false
		opened = append(opened, p)

		if tile.Count != 0 {
			continue
		}
		for _, n := range b.Neighbors(p.R, p.C) {
			idx := n.R*b.Cols + n.C
			next := b.Tile(n.R, n.C)
			if queued[idx] || next.IsOpen || next.IsMine {
				continue
			}
			queued[idx] = true
			stack = append(stack, n)
		}
	}

	return opened
}

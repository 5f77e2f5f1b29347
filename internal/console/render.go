package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/KDT2006/minewars/internal/protocol"
	"github.com/KDT2006/minewars/internal/replica"
)

// Render writes the board with a status line.
func Render(w io.Writer, view replica.State) {
	if view.Board == nil {
		fmt.Fprintln(w, "no game in progress")
		return
	}

	var b strings.Builder
	b.WriteString("   ")
	for c := 0; c < view.Cols; c++ {
		fmt.Fprintf(&b, "%2d", c%100)
	}
	b.WriteByte('\n')
	for r, row := range view.Board {
		fmt.Fprintf(&b, "%2d ", r)
		for _, tile := range row {
			b.WriteByte(' ')
			b.WriteByte(glyph(tile))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "mines left: %d", view.MinesLeft)
	if view.Active && view.Config.Mode == protocol.ModeTurn {
		if current, ok := view.CurrentPlayer(); ok {
			fmt.Fprintf(&b, "  turn: %s", current.Name)
		}
	}
	if self, ok := view.Player(view.SelfID); ok && self.Eliminated {
		b.WriteString("  (eliminated)")
	}
	b.WriteByte('\n')

	io.WriteString(w, b.String())
}

func glyph(t protocol.Tile) byte {
	switch {
	case !t.IsOpen && t.Flagged:
		return 'F'
	case !t.IsOpen:
		return '#'
	case t.IsMine:
		return '*'
	case t.Count == 0:
		return '.'
	default:
		return byte('0' + t.Count)
	}
}

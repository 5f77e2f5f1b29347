package replica

import (
	"github.com/KDT2006/minewars/internal/cursor"
	"github.com/KDT2006/minewars/internal/protocol"
)

// State is a participant's read-only view of the session. It changes only by
// applying messages received from the host and never runs game logic.
type State struct {
	SelfID    string
	Players   []protocol.Player
	Config    protocol.GameConfig
	Board     [][]protocol.Tile
	Rows      int
	Cols      int
	Mines     int
	MinesLeft int
	TurnIndex int
	Active    bool
	Outcome   *protocol.GameOverPayload
	Cursors   cursor.Positions
}

func New(selfID string) *State {
	return &State{SelfID: selfID, Cursors: cursor.Positions{}}
}

// Apply folds one host message into the view and reports whether anything
// changed. Messages that are not deltas, or that do not fit the current
// view, are ignored.
func (s *State) Apply(msg protocol.Message) bool {
	switch p := msg.Payload.(type) {
	case protocol.LobbyUpdatePayload:
		s.Players = append([]protocol.Player(nil), p.Players...)
		s.Config = p.Config
		s.pruneCursors()
		return true
	case protocol.GameStartPayload:
		return s.applyGameStart(p)
	case protocol.UpdateGridPayload:
		return s.applyUpdate(p)
	case protocol.TurnChangePayload:
		if p.Index < 0 || p.Index >= len(s.Players) {
			return false
		}
		s.TurnIndex = p.Index
		return true
	case protocol.FlagPayload:
		if !s.inBounds(p.R, p.C) || s.Board[p.R][p.C].IsOpen {
			return false
		}
		s.Board[p.R][p.C].Flagged = !s.Board[p.R][p.C].Flagged
		s.recount()
		return true
	case protocol.GameOverPayload:
		outcome := p
		s.Active = false
		s.Outcome = &outcome
		return true
	case protocol.CursorPayload:
		if p.ID == s.SelfID || s.player(p.ID) == nil {
			return false
		}
		return s.Cursors.Apply(p)
	case protocol.JoinPayload, protocol.MovePayload, protocol.RematchPayload, protocol.ErrorPayload:
		return false
	default:
		return false
	}
}

func (s *State) applyGameStart(p protocol.GameStartPayload) bool {
	if p.Rows <= 0 || p.Cols <= 0 || len(p.Board) != p.Rows {
		return false
	}
	board := make([][]protocol.Tile, p.Rows)
	for r := range p.Board {
		if len(p.Board[r]) != p.Cols {
			return false
		}
		board[r] = append([]protocol.Tile(nil), p.Board[r]...)
	}

	s.Board = board
	s.Rows = p.Rows
	s.Cols = p.Cols
	s.Mines = p.Mines
	s.TurnIndex = p.TurnIndex
	s.Active = true
	s.Outcome = nil
	for i := range s.Players {
		s.Players[i].Eliminated = false
	}
	s.recount()
	return true
}

func (s *State) applyUpdate(p protocol.UpdateGridPayload) bool {
	if !s.inBounds(p.R, p.C) {
		return false
	}
	// Opened tiles never close again.
	if s.Board[p.R][p.C].IsOpen && !p.Tile.IsOpen {
		return false
	}
	s.Board[p.R][p.C] = p.Tile
	if p.Tile.IsMine && p.Tile.IsOpen && p.By != "" {
		for i := range s.Players {
			if s.Players[i].ID == p.By {
				s.Players[i].Eliminated = true
			}
		}
	}
	s.recount()
	return true
}

func (s *State) recount() {
	flagged := 0
	for r := range s.Board {
		for _, tile := range s.Board[r] {
			if tile.Flagged {
				flagged++
			}
		}
	}
	s.MinesLeft = s.Mines - flagged
}

func (s *State) pruneCursors() {
	for id := range s.Cursors {
		if s.player(id) == nil {
			delete(s.Cursors, id)
		}
	}
}

func (s *State) inBounds(r, c int) bool {
	return r >= 0 && r < s.Rows && c >= 0 && c < s.Cols && r < len(s.Board) && c < len(s.Board[r])
}

func (s *State) player(id string) *protocol.Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// Player looks up a roster entry by id.
func (s *State) Player(id string) (protocol.Player, bool) {
	p := s.player(id)
	if p == nil {
		return protocol.Player{}, false
	}
	return *p, true
}

// CurrentPlayer is the turn holder, meaningful in turn mode only.
func (s *State) CurrentPlayer() (protocol.Player, bool) {
	if s.TurnIndex < 0 || s.TurnIndex >= len(s.Players) {
		return protocol.Player{}, false
	}
	return s.Players[s.TurnIndex], true
}

// CanAct reports whether the local participant may send a move right now.
// The host re-validates every move; this only saves pointless traffic.
func (s *State) CanAct() bool {
	if !s.Active {
		return false
	}
	if s.player(s.SelfID) == nil {
		return false
	}
	if s.Config.Mode != protocol.ModeTurn {
		return true
	}
	current, ok := s.CurrentPlayer()
	return ok && current.ID == s.SelfID && !current.Eliminated
}

// Tile returns the replicated tile at (r, c).
func (s *State) Tile(r, c int) (protocol.Tile, bool) {
	if !s.inBounds(r, c) {
		return protocol.Tile{}, false
	}
	return s.Board[r][c], true
}

// Clone returns a deep copy that shares nothing with s.
func (s *State) Clone() State {
	out := *s
	out.Players = append([]protocol.Player(nil), s.Players...)
	if s.Board != nil {
		out.Board = make([][]protocol.Tile, len(s.Board))
		for r := range s.Board {
			out.Board[r] = append([]protocol.Tile(nil), s.Board[r]...)
		}
	}
	if s.Outcome != nil {
		outcome := *s.Outcome
		out.Outcome = &outcome
	}
	out.Cursors = make(cursor.Positions, len(s.Cursors))
	for id, pos := range s.Cursors {
		out.Cursors[id] = pos
	}
	return out
}

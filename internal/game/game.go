package game

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/KDT2006/minewars/internal/board"
	"github.com/KDT2006/minewars/internal/protocol"
)

type Phase byte

const (
	PhaseLobby Phase = iota
	PhaseActive
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseActive:
		return "active"
	case PhaseEnded:
		return "ended"
	default:
		return fmt.Sprintf("phase(%d)", byte(p))
	}
}

const (
	MsgSectorCleared = "Sector Cleared"
	MsgDraw          = "Draw"
)

// Dimensions is the resolved size of a round.
type Dimensions struct {
	Rows  int
	Cols  int
	Mines int
}

// Match is the authoritative state machine of one session. It is driven from
// a single goroutine and returns the messages each step produces instead of
// sending them.
type Match struct {
	rng       *rand.Rand
	logger    *slog.Logger
	mode      protocol.Mode
	players   []*protocol.Player
	board     *board.Board
	turnIndex int
	phase     Phase
	outcome   *protocol.GameOverPayload
}

// New returns a match in the lobby phase.
func New(rng *rand.Rand, logger *slog.Logger) *Match {
	if logger == nil {
		logger = slog.Default()
	}
	return &Match{rng: rng, logger: logger, phase: PhaseLobby}
}

// Start generates a fresh board and begins a round with the given players in
// turn order. Elimination flags are cleared and the turn goes to index 0. The
// returned GAME_START message is a full snapshot.
func (m *Match) Start(cfg protocol.GameConfig, players []*protocol.Player) (protocol.Message, error) {
	if len(players) == 0 {
		return protocol.Message{}, fmt.Errorf("start game: no players")
	}

	dims := Resolve(cfg)
	b, err := board.Generate(m.rng, dims.Rows, dims.Cols, dims.Mines, cfg.NoGuess)
	if err != nil {
		return protocol.Message{}, fmt.Errorf("start game: %w", err)
	}

	return m.begin(cfg.Mode, b, players), nil
}

// StartWithBoard begins a round on a prepared board.
func (m *Match) StartWithBoard(mode protocol.Mode, b *board.Board, players []*protocol.Player) protocol.Message {
	return m.begin(mode, b, players)
}

func (m *Match) begin(mode protocol.Mode, b *board.Board, players []*protocol.Player) protocol.Message {
	for _, p := range players {
		p.Eliminated = false
	}

	m.mode = mode
	// the roster may shrink under us; keep our own slice of the same players
	m.players = append([]*protocol.Player(nil), players...)
	m.board = b
	m.turnIndex = 0
	m.phase = PhaseActive
	m.outcome = nil

	m.logger.Info("round started", "mode", mode, "rows", b.Rows, "cols", b.Cols, "mines", b.Mines(), "players", len(players))

	return protocol.New(protocol.GameStartPayload{
		Board:     b.Snapshot(),
		TurnIndex: 0,
		Mines:     b.Mines(),
		Rows:      b.Rows,
		Cols:      b.Cols,
	})
}

// Move applies a player's action on (r, c). A closed target is revealed; an
// open numbered target is chorded. Illegal moves return no messages. Only turn
// mode gates on the mover; elsewhere a detonated player keeps sweeping.
func (m *Match) Move(r, c int, playerID string) []protocol.Message {
	if m.phase != PhaseActive || !m.board.InBounds(r, c) {
		return nil
	}
	player := m.player(playerID)
	if player == nil {
		return nil
	}
	if m.mode == protocol.ModeTurn && m.players[m.turnIndex].ID != playerID {
		return nil
	}

	var out []protocol.Message
	if m.board.Tile(r, c).IsOpen {
		out = m.chord(r, c, player)
	} else {
		out = m.reveal(r, c, player)
	}
	if len(out) == 0 {
		return nil
	}

	if m.phase == PhaseActive {
		out = append(out, m.advanceTurn()...)
	}
	return out
}

// reveal opens one closed cell, then evaluates the round.
func (m *Match) reveal(r, c int, player *protocol.Player) []protocol.Message {
	tile := m.board.Tile(r, c)
	if tile.IsOpen {
		return nil
	}

	if tile.IsMine {
		tile.IsOpen = true
		tile.Flagged = false
		player.Eliminated = true
		m.logger.Info("mine detonated", "player", player.ID, "r", r, "c", c)

		out := []protocol.Message{m.gridUpdate(board.Point{R: r, C: c}, player.ID)}
		return append(out, m.evaluate(player)...)
	}

	opened := m.board.FloodFill(r, c)
	out := make([]protocol.Message, 0, len(opened)+1)
	for _, p := range opened {
		out = append(out, m.gridUpdate(p, player.ID))
	}
	return append(out, m.evaluate(nil)...)
}

// chord reveals every unflagged closed neighbour of an open numbered cell when
// the flags around it match its count.
func (m *Match) chord(r, c int, player *protocol.Player) []protocol.Message {
	tile := m.board.Tile(r, c)
	if tile.IsMine || tile.Count == 0 {
		return nil
	}

	neighbors := m.board.Neighbors(r, c)
	flags := 0
	for _, n := range neighbors {
		if m.board.Tile(n.R, n.C).Flagged {
			flags++
		}
	}
	if flags != tile.Count {
		return nil
	}

	var out []protocol.Message
	for _, n := range neighbors {
		if m.phase != PhaseActive {
			break
		}
		next := m.board.Tile(n.R, n.C)
		if next.IsOpen || next.Flagged {
			continue
		}
		out = append(out, m.reveal(n.R, n.C, player)...)
	}
	return out
}

// evaluate checks the win conditions. victim is set when the last reveal was
// a mine.
func (m *Match) evaluate(victim *protocol.Player) []protocol.Message {
	if m.board.ClosedSafe() == 0 {
		return m.end(true, MsgSectorCleared)
	}
	if victim == nil {
		return nil
	}

	switch m.mode {
	case protocol.ModeCoop:
		return m.end(false, fmt.Sprintf("%s Detonated", victim.Name))
	case protocol.ModeTurn:
		var remaining []*protocol.Player
		for _, p := range m.players {
			if !p.Eliminated {
				remaining = append(remaining, p)
			}
		}
		switch len(remaining) {
		case 0:
			return m.end(false, MsgDraw)
		case 1:
			return m.end(true, fmt.Sprintf("%s Wins", remaining[0].Name))
		}
	}
	return nil
}

func (m *Match) end(win bool, msg string) []protocol.Message {
	m.phase = PhaseEnded
	m.outcome = &protocol.GameOverPayload{Win: win, Msg: msg}
	m.logger.Info("round ended", "win", win, "reason", msg)
	return []protocol.Message{protocol.New(*m.outcome)}
}

// advanceTurn moves the turn to the next non-eliminated player. When no other
// player is eligible the index is left where it is.
func (m *Match) advanceTurn() []protocol.Message {
	if m.mode != protocol.ModeTurn {
		return nil
	}

	n := len(m.players)
	for step := 1; step <= n; step++ {
		candidate := (m.turnIndex + step) % n
		if !m.players[candidate].Eliminated {
			m.turnIndex = candidate
			break
		}
	}

	return []protocol.Message{protocol.New(protocol.TurnChangePayload{Index: m.turnIndex})}
}

// ToggleFlag flips the flag annotation on a closed cell. Open cells are
// rejected. Flags never affect the outcome of a round.
func (m *Match) ToggleFlag(r, c int) []protocol.Message {
	if m.phase != PhaseActive || !m.board.InBounds(r, c) {
		return nil
	}
	tile := m.board.Tile(r, c)
	if tile.IsOpen {
		return nil
	}
	tile.Flagged = !tile.Flagged
	return []protocol.Message{protocol.New(protocol.FlagPayload{R: r, C: c})}
}

// Abort ends an active round, e.g. when a participant disconnects.
func (m *Match) Abort(msg string) []protocol.Message {
	if m.phase != PhaseActive {
		return nil
	}
	return m.end(false, msg)
}

func (m *Match) gridUpdate(p board.Point, by string) protocol.Message {
	return protocol.New(protocol.UpdateGridPayload{
		R:    p.R,
		C:    p.C,
		Tile: *m.board.Tile(p.R, p.C),
		By:   by,
	})
}

func (m *Match) player(id string) *protocol.Player {
	for _, p := range m.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *Match) Phase() Phase {
	return m.phase
}

func (m *Match) Active() bool {
	return m.phase == PhaseActive
}

func (m *Match) TurnIndex() int {
	return m.turnIndex
}

func (m *Match) Board() *board.Board {
	return m.board
}

// Outcome is the result of the last finished round, if any.
func (m *Match) Outcome() (protocol.GameOverPayload, bool) {
	if m.outcome == nil {
		return protocol.GameOverPayload{}, false
	}
	return *m.outcome, true
}

// MinesLeft is the mine count minus placed flags.
func (m *Match) MinesLeft() int {
	if m.board == nil {
		return 0
	}
	return m.board.MinesLeft()
}

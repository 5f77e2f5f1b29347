package replica

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/KDT2006/minewars/internal/board"
	"github.com/KDT2006/minewars/internal/game"
	"github.com/KDT2006/minewars/internal/protocol"
)

func lobbyUpdate(mode protocol.Mode, ids ...string) protocol.Message {
	players := make([]protocol.Player, len(ids))
	for i, id := range ids {
		players[i] = protocol.Player{ID: id, Name: id, Host: i == 0}
	}
	return protocol.New(protocol.LobbyUpdatePayload{
		Players: players,
		Config:  protocol.GameConfig{Size: game.SizeSmall, MaxPlayers: 4, Mode: mode},
	})
}

func TestReplicaConvergesWithHost(t *testing.T) {
	players := []*protocol.Player{{ID: "host"}, {ID: "guest"}}
	m := game.New(rand.New(rand.NewPCG(11, 12)), slog.New(slog.NewTextHandler(io.Discard, nil)))
	start, err := m.Start(protocol.GameConfig{Size: game.SizeMedium, Mode: protocol.ModeRace, NoGuess: true}, players)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	view := New("guest")
	view.Apply(lobbyUpdate(protocol.ModeRace, "host", "guest"))
	if !view.Apply(start) {
		t.Fatalf("game start not applied")
	}

	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 60 && m.Active(); i++ {
		r, c := rng.IntN(16), rng.IntN(16)
		var msgs []protocol.Message
		if i%5 == 0 {
			msgs = m.ToggleFlag(r, c)
		} else {
			msgs = m.Move(r, c, players[i%2].ID)
		}
		for _, msg := range msgs {
			view.Apply(msg)
		}
	}

	if !reflect.DeepEqual(view.Board, m.Board().Snapshot()) {
		t.Fatalf("replica board diverged from the authoritative board")
	}
	if view.MinesLeft != m.MinesLeft() {
		t.Fatalf("mines left %d, host has %d", view.MinesLeft, m.MinesLeft())
	}
	if view.Active != m.Active() {
		t.Fatalf("active %v, host has %v", view.Active, m.Active())
	}
	for i, p := range players {
		if view.Players[i].Eliminated != p.Eliminated {
			t.Fatalf("player %s elimination %v, host has %v", p.ID, view.Players[i].Eliminated, p.Eliminated)
		}
	}
}

func TestReplicaIgnoresDeltasBeforeGameStart(t *testing.T) {
	view := New("guest")
	if view.Apply(protocol.New(protocol.UpdateGridPayload{R: 0, C: 0, Tile: protocol.Tile{IsOpen: true}})) {
		t.Fatalf("delta applied without a board")
	}
	if view.Apply(protocol.New(protocol.FlagPayload{R: 0, C: 0})) {
		t.Fatalf("flag applied without a board")
	}
	if view.Apply(protocol.New(protocol.TurnChangePayload{Index: 3})) {
		t.Fatalf("turn index applied without players")
	}
}

func TestReplicaRejectsMalformedGameStart(t *testing.T) {
	view := New("guest")
	bad := protocol.New(protocol.GameStartPayload{Rows: 2, Cols: 2, Board: [][]protocol.Tile{{{}, {}}}})
	if view.Apply(bad) {
		t.Fatalf("mismatched board applied")
	}
}

func TestReplicaFlagsAndOpenTiles(t *testing.T) {
	b := board.New(5, 5, []board.Point{{R: 0, C: 0}})
	view := New("guest")
	view.Apply(lobbyUpdate(protocol.ModeCoop, "host", "guest"))
	view.Apply(protocol.New(protocol.GameStartPayload{Board: b.Snapshot(), Mines: 1, Rows: 5, Cols: 5}))

	view.Apply(protocol.New(protocol.FlagPayload{R: 0, C: 0}))
	if view.MinesLeft != 0 || !view.Board[0][0].Flagged {
		t.Fatalf("flag not applied: minesLeft=%d", view.MinesLeft)
	}

	open := protocol.Tile{IsOpen: true, Count: 1}
	view.Apply(protocol.New(protocol.UpdateGridPayload{R: 1, C: 1, Tile: open, By: "host"}))
	if view.Apply(protocol.New(protocol.FlagPayload{R: 1, C: 1})) {
		t.Fatalf("flag on an open tile applied")
	}
	if view.Apply(protocol.New(protocol.UpdateGridPayload{R: 1, C: 1, Tile: protocol.Tile{Count: 1}})) {
		t.Fatalf("open tile was closed again")
	}

	view.Apply(protocol.New(protocol.UpdateGridPayload{R: 0, C: 0, Tile: protocol.Tile{IsMine: true, IsOpen: true}, By: "guest"}))
	if self, _ := view.Player("guest"); !self.Eliminated {
		t.Fatalf("detonating player not marked eliminated")
	}
	if view.MinesLeft != 1 {
		t.Fatalf("expected opened mine to drop its flag, minesLeft=%d", view.MinesLeft)
	}

	view.Apply(protocol.New(protocol.GameOverPayload{Win: false, Msg: "GUEST Detonated"}))
	if view.Active || view.Outcome == nil || view.Outcome.Msg != "GUEST Detonated" {
		t.Fatalf("game over not applied: %+v", view.Outcome)
	}
}

func TestReplicaTurnGating(t *testing.T) {
	b := board.New(5, 5, nil)
	view := New("guest")
	view.Apply(lobbyUpdate(protocol.ModeTurn, "host", "guest"))
	view.Apply(protocol.New(protocol.GameStartPayload{Board: b.Snapshot(), Rows: 5, Cols: 5}))

	if view.CanAct() {
		t.Fatalf("guest may not act on the host's turn")
	}
	view.Apply(protocol.New(protocol.TurnChangePayload{Index: 1}))
	if !view.CanAct() {
		t.Fatalf("guest should act on its own turn")
	}
	if current, _ := view.CurrentPlayer(); current.ID != "guest" {
		t.Fatalf("unexpected current player %s", current.ID)
	}
}

func TestReplicaCursors(t *testing.T) {
	view := New("guest")
	view.Apply(lobbyUpdate(protocol.ModeRace, "host", "guest", "other"))

	if view.Apply(protocol.New(protocol.CursorPayload{X: 0.5, Y: 0.5, ID: "guest"})) {
		t.Fatalf("own cursor echoed into the view")
	}
	if view.Apply(protocol.New(protocol.CursorPayload{X: 0.5, Y: 0.5, ID: "ghost"})) {
		t.Fatalf("cursor of unknown participant applied")
	}
	if !view.Apply(protocol.New(protocol.CursorPayload{X: 0.5, Y: 0.5, ID: "other"})) {
		t.Fatalf("cursor not applied")
	}

	view.Apply(lobbyUpdate(protocol.ModeRace, "host", "guest"))
	if _, ok := view.Cursors["other"]; ok {
		t.Fatalf("cursor of departed participant kept")
	}
}

func TestReplicaEliminatedRacerMayStillAct(t *testing.T) {
	b := board.New(5, 5, []board.Point{{R: 0, C: 0}, {R: 4, C: 4}})
	view := New("guest")
	view.Apply(lobbyUpdate(protocol.ModeRace, "host", "guest"))
	view.Apply(protocol.New(protocol.GameStartPayload{Board: b.Snapshot(), Mines: 2, Rows: 5, Cols: 5}))
	view.Apply(protocol.New(protocol.UpdateGridPayload{R: 0, C: 0, Tile: protocol.Tile{IsMine: true, IsOpen: true}, By: "guest"}))

	if self, _ := view.Player("guest"); !self.Eliminated {
		t.Fatalf("detonating player not marked eliminated")
	}
	if !view.CanAct() {
		t.Fatalf("eliminated racer blocked while the round runs")
	}
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/KDT2006/minewars/internal/board"
	"github.com/KDT2006/minewars/internal/cursor"
	"github.com/KDT2006/minewars/internal/game"
	"github.com/KDT2006/minewars/internal/lobby"
	"github.com/KDT2006/minewars/internal/protocol"
	"github.com/KDT2006/minewars/internal/replica"
	"github.com/KDT2006/minewars/internal/transport"
)

type HostOptions struct {
	Name           string
	Config         protocol.GameConfig
	CursorInterval time.Duration
	Rand           *rand.Rand
	Logger         *slog.Logger
	Now            func() time.Time
	// Board, when set, lays out every round instead of random generation.
	Board          func(protocol.GameConfig) (*board.Board, error)
}

// Host is the authoritative participant. It is the only writer of the lobby
// and the board; everything it changes goes out as messages, including to its
// own view.
type Host struct {
	loop

	code     string
	selfID   string
	listener transport.Listener
	lobby    *lobby.Lobby
	match    *game.Match
	view     *replica.State
	limiter  *cursor.Limiter
	throttle *cursor.Throttle
	conns    map[string]transport.Conn
	validate *validator.Validate
	newBoard func(protocol.GameConfig) (*board.Board, error)
	logger   *slog.Logger
	now      func() time.Time
}

// NewHost prepares a session for code on a listener registered under
// lobby.HostPeerID(code). The host joins its own lobby as the first player.
func NewHost(code string, l transport.Listener, opts HostOptions) (*Host, error) {
	code, err := lobby.NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(opts.Config); err != nil {
		return nil, fmt.Errorf("invalid game config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("code", code, "role", "host")

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	interval := opts.CursorInterval
	if interval <= 0 {
		interval = cursor.DefaultInterval
	}

	h := &Host{
		loop:     newLoop(),
		code:     code,
		selfID:   lobby.HostPeerID(code),
		listener: l,
		lobby:    lobby.New(code, opts.Config),
		match:    game.New(rng, logger),
		limiter:  cursor.NewLimiter(interval),
		throttle: cursor.NewThrottle(interval),
		conns:    make(map[string]transport.Conn),
		validate: validate,
		newBoard: opts.Board,
		logger:   logger,
		now:      now,
	}
	h.view = replica.New(h.selfID)

	self, err := h.lobby.Add(protocol.Player{ID: h.selfID, Name: opts.Name, Host: true}, false)
	if err != nil {
		return nil, fmt.Errorf("add host player: %w", err)
	}
	h.view.Apply(h.lobby.Snapshot())
	logger.Info("session created", "name", self.Name)

	return h, nil
}

func (h *Host) Code() string {
	return h.code
}

func (h *Host) SelfID() string {
	return h.selfID
}

// Updates delivers every message applied to the host's own view.
func (h *Host) Updates() <-chan protocol.Message {
	return h.updates
}

// Run handles transport events and local actions until ctx is done. The
// listener is closed on return.
func (h *Host) Run(ctx context.Context) error {
	defer close(h.done)
	defer h.listener.Close()

	h.logger.Info("hosting session")
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("session shutting down")
			return ctx.Err()
		case ev := <-h.listener.Events():
			h.handleEvent(ev)
		case fn := <-h.actions:
			fn()
		}
	}
}

func (h *Host) handleEvent(ev transport.Event) {
	peerID := ev.Conn.PeerID()

	switch ev.Kind {
	case transport.EventOpen:
		if _, taken := h.conns[peerID]; taken {
			h.logger.Info("refusing duplicate peer link", "peer", peerID)
			ev.Conn.Close()
			return
		}
		h.conns[peerID] = ev.Conn
		h.logger.Info("peer connected", "peer", peerID)
	case transport.EventData:
		if h.conns[peerID] != ev.Conn {
			return
		}
		h.handleMessage(ev.Conn, ev.Message)
	case transport.EventClose:
		h.disconnect(ev.Conn)
	case transport.EventError:
		h.logger.Error("peer error", "peer", peerID, "error", ev.Err)
	}
}

func (h *Host) handleMessage(conn transport.Conn, msg protocol.Message) {
	peerID := conn.PeerID()

	if join, ok := msg.Payload.(protocol.JoinPayload); ok {
		h.join(conn, join)
		return
	}
	if h.lobby.Player(peerID) == nil {
		h.logger.Debug("ignoring message from peer outside the lobby", "peer", peerID, "type", msg.Type)
		return
	}

	switch p := msg.Payload.(type) {
	case protocol.MovePayload:
		h.broadcast(h.match.Move(p.R, p.C, peerID)...)
	case protocol.FlagPayload:
		h.broadcast(h.match.ToggleFlag(p.R, p.C)...)
	case protocol.CursorPayload:
		h.relayCursor(peerID, p)
	case protocol.RematchPayload:
		if h.match.Phase() != game.PhaseEnded {
			return
		}
		if err := h.startRound(); err != nil {
			h.logger.Error("failed to start rematch", "peer", peerID, "error", err)
		}
	default:
		h.logger.Debug("ignoring message", "peer", peerID, "type", msg.Type)
	}
}

func (h *Host) join(conn transport.Conn, join protocol.JoinPayload) {
	peerID := conn.PeerID()
	if h.lobby.Player(peerID) != nil {
		return
	}

	p, err := h.lobby.Add(protocol.Player{ID: peerID, Name: join.Name}, h.match.Active())
	if err != nil {
		h.logger.Info("join rejected", "peer", peerID, "error", err)
		if err := conn.Send(protocol.New(protocol.ErrorPayload{Msg: rejection(err)})); err != nil {
			h.logger.Error("failed to send rejection", "peer", peerID, "error", err)
		}
		delete(h.conns, peerID)
		conn.Close()
		return
	}

	h.logger.Info("player joined", "peer", peerID, "name", p.Name, "color", p.Color)
	h.broadcast(h.lobby.Snapshot())
}

func rejection(err error) string {
	switch {
	case errors.Is(err, lobby.ErrLobbyFull):
		return "Lobby full"
	case errors.Is(err, lobby.ErrGameInProgress):
		return "Game in progress"
	default:
		return err.Error()
	}
}

// disconnect removes a departed player. A running round cannot continue
// without them, so it ends for everyone before the roster is re-sent.
func (h *Host) disconnect(conn transport.Conn) {
	peerID := conn.PeerID()
	if h.conns[peerID] != conn {
		return
	}
	delete(h.conns, peerID)
	h.limiter.Forget(peerID)

	player := h.lobby.Player(peerID)
	if player == nil {
		h.logger.Info("peer left before joining", "peer", peerID)
		return
	}
	name := player.Name

	var msgs []protocol.Message
	if h.match.Active() {
		msgs = h.match.Abort(name + " Disconnected")
	}
	h.lobby.Remove(peerID)
	msgs = append(msgs, h.lobby.Snapshot())

	h.logger.Info("player left", "peer", peerID, "name", name, "phase", h.match.Phase())
	h.broadcast(msgs...)
}

func (h *Host) relayCursor(peerID string, p protocol.CursorPayload) {
	if !h.limiter.Allow(peerID, h.now()) {
		return
	}
	p.ID = peerID
	msg := protocol.New(p)
	if h.view.Apply(msg) {
		h.notify(msg)
	}
	h.send(msg, peerID)
}

// broadcast applies msgs to the host's view and sends them, in order, to
// every joined guest.
func (h *Host) broadcast(msgs ...protocol.Message) {
	for _, msg := range msgs {
		if h.view.Apply(msg) {
			h.notify(msg)
		}
		h.send(msg, "")
	}
}

func (h *Host) send(msg protocol.Message, except string) {
	for _, p := range h.lobby.Players() {
		if p.ID == h.selfID || p.ID == except {
			continue
		}
		conn, ok := h.conns[p.ID]
		if !ok {
			continue
		}
		if err := conn.Send(msg); err != nil {
			h.logger.Error("failed to send message", "peer", p.ID, "type", msg.Type, "error", err)
		}
	}
}

func (h *Host) startRound() error {
	if h.match.Active() {
		return ErrGameActive
	}
	cfg := h.lobby.Config()
	if h.newBoard == nil {
		start, err := h.match.Start(cfg, h.lobby.Players())
		if err != nil {
			return err
		}
		h.broadcast(start)
		return nil
	}

	b, err := h.newBoard(cfg)
	if err != nil {
		return fmt.Errorf("lay out board: %w", err)
	}
	h.broadcast(h.match.StartWithBoard(cfg.Mode, b, h.lobby.Players()))
	return nil
}

// StartGame begins a round from the lobby, or a rematch once a round ended.
func (h *Host) StartGame(ctx context.Context) error {
	return h.do(ctx, h.startRound)
}

// SetConfig replaces the game configuration between rounds.
func (h *Host) SetConfig(ctx context.Context, cfg protocol.GameConfig) error {
	return h.do(ctx, func() error {
		if h.match.Active() {
			return ErrGameActive
		}
		if err := h.validate.Struct(cfg); err != nil {
			return fmt.Errorf("invalid game config: %w", err)
		}
		h.lobby.SetConfig(cfg)
		h.broadcast(h.lobby.Snapshot())
		return nil
	})
}

// Move plays the host's own move. Illegal moves change nothing.
func (h *Host) Move(ctx context.Context, r, c int) error {
	return h.do(ctx, func() error {
		h.broadcast(h.match.Move(r, c, h.selfID)...)
		return nil
	})
}

func (h *Host) Flag(ctx context.Context, r, c int) error {
	return h.do(ctx, func() error {
		h.broadcast(h.match.ToggleFlag(r, c)...)
		return nil
	})
}

// Cursor shares the host's pointer with every guest, at most once per
// throttle window.
func (h *Host) Cursor(ctx context.Context, pos cursor.Position, onBoard bool) error {
	return h.do(ctx, func() error {
		if !h.throttle.Allow(h.now()) {
			return nil
		}
		h.send(protocol.New(cursor.Payload(h.selfID, pos, onBoard)), "")
		return nil
	})
}

// View returns a copy of the host's view of the session.
func (h *Host) View(ctx context.Context) (replica.State, error) {
	var view replica.State
	err := h.do(ctx, func() error {
		view = h.view.Clone()
		return nil
	})
	return view, err
}

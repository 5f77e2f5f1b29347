package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/KDT2006/minewars/internal/cursor"
	"github.com/KDT2006/minewars/internal/lobby"
	"github.com/KDT2006/minewars/internal/protocol"
	"github.com/KDT2006/minewars/internal/replica"
	"github.com/KDT2006/minewars/internal/transport"
)

type GuestOptions struct {
	Name string
	// ID is the peer id suffix. A random one is used when empty.
	ID             string
	CursorInterval time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// Guest is a non-authoritative participant. Its view changes only through
// messages from the host; its actions are requests the host may ignore.
type Guest struct {
	loop

	code     string
	selfID   string
	name     string
	conn     transport.Conn
	events   <-chan transport.Event
	view     *replica.State
	throttle *cursor.Throttle
	logger   *slog.Logger
	now      func() time.Time
}

// Join connects to the host of code. A malformed code fails with
// lobby.ErrInvalidCode before any connection is attempted.
func Join(ctx context.Context, dialer transport.Dialer, code string, opts GuestOptions) (*Guest, error) {
	code, err := lobby.NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	suffix := opts.ID
	if suffix == "" {
		suffix = uuid.NewString()
	}
	selfID := lobby.GuestPeerID(suffix)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("code", code, "role", "guest", "self", selfID)

	conn, events, err := dialer.Dial(ctx, selfID, lobby.HostPeerID(code))
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", code, err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Guest{
		loop:     newLoop(),
		code:     code,
		selfID:   selfID,
		name:     opts.Name,
		conn:     conn,
		events:   events,
		view:     replica.New(selfID),
		throttle: cursor.NewThrottle(opts.CursorInterval),
		logger:   logger,
		now:      now,
	}, nil
}

func (g *Guest) Code() string {
	return g.code
}

func (g *Guest) SelfID() string {
	return g.selfID
}

// Updates delivers every message applied to the guest's view.
func (g *Guest) Updates() <-chan protocol.Message {
	return g.updates
}

// Run applies host messages and local actions until the session ends. It
// returns ErrRejected when the host refuses the join and ErrConnectionLost
// when the host goes away.
func (g *Guest) Run(ctx context.Context) error {
	defer close(g.done)

	for {
		select {
		case <-ctx.Done():
			g.conn.Close()
			return ctx.Err()
		case ev, ok := <-g.events:
			if !ok {
				return ErrConnectionLost
			}
			if err := g.handleEvent(ev); err != nil {
				g.conn.Close()
				return err
			}
		case fn := <-g.actions:
			fn()
		}
	}
}

func (g *Guest) handleEvent(ev transport.Event) error {
	switch ev.Kind {
	case transport.EventOpen:
		g.logger.Info("connected to host")
		if err := g.conn.Send(protocol.New(protocol.JoinPayload{Name: g.name})); err != nil {
			return fmt.Errorf("send join: %w", err)
		}
	case transport.EventData:
		if rejected, ok := ev.Message.Payload.(protocol.ErrorPayload); ok {
			g.logger.Info("join rejected", "reason", rejected.Msg)
			return fmt.Errorf("%w: %s", ErrRejected, rejected.Msg)
		}
		if g.view.Apply(ev.Message) {
			g.notify(ev.Message)
		}
	case transport.EventClose:
		g.logger.Info("host connection closed")
		return ErrConnectionLost
	case transport.EventError:
		g.logger.Error("host connection error", "error", ev.Err)
	}
	return nil
}

// Move asks the host to play (r, c). Nothing is sent while the view says
// the move cannot be legal.
func (g *Guest) Move(ctx context.Context, r, c int) error {
	return g.do(ctx, func() error {
		if _, ok := g.view.Tile(r, c); !ok || !g.view.CanAct() {
			return nil
		}
		return g.conn.Send(protocol.New(protocol.MovePayload{R: r, C: c}))
	})
}

// Flag asks the host to toggle the flag on (r, c). The view changes only
// once the host echoes it.
func (g *Guest) Flag(ctx context.Context, r, c int) error {
	return g.do(ctx, func() error {
		tile, ok := g.view.Tile(r, c)
		if !ok || !g.view.Active || tile.IsOpen {
			return nil
		}
		return g.conn.Send(protocol.New(protocol.FlagPayload{R: r, C: c}))
	})
}

// Rematch asks the host for a new round once the current one is over.
func (g *Guest) Rematch(ctx context.Context) error {
	return g.do(ctx, func() error {
		if g.view.Active || g.view.Outcome == nil {
			return nil
		}
		return g.conn.Send(protocol.New(protocol.RematchPayload{}))
	})
}

func (g *Guest) Cursor(ctx context.Context, pos cursor.Position, onBoard bool) error {
	return g.do(ctx, func() error {
		if !g.throttle.Allow(g.now()) {
			return nil
		}
		return g.conn.Send(protocol.New(cursor.Payload(g.selfID, pos, onBoard)))
	})
}

// View returns a copy of the guest's replica.
func (g *Guest) View(ctx context.Context) (replica.State, error) {
	var view replica.State
	err := g.do(ctx, func() error {
		view = g.view.Clone()
		return nil
	})
	return view, err
}

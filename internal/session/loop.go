// Package session runs the two kinds of participant. A Host owns the lobby
// and the authoritative match; a Guest keeps a replica fed by the host. Each
// runs a single goroutine that handles transport events and local actions
// one at a time, so no handler ever observes another one half done.
package session

import (
	"context"
	"errors"

	"github.com/KDT2006/minewars/internal/protocol"
)

var (
	ErrStopped        = errors.New("session stopped")
	ErrConnectionLost = errors.New("connection lost")
	ErrRejected       = errors.New("join rejected")
	ErrGameActive     = errors.New("game already active")
)

const updateBuffer = 256

// loop serializes local actions onto the goroutine that owns the state.
type loop struct {
	actions chan func()
	done    chan struct{}
	updates chan protocol.Message
}

func newLoop() loop {
	return loop{
		actions: make(chan func()),
		done:    make(chan struct{}),
		updates: make(chan protocol.Message, updateBuffer),
	}
}

// do runs fn on the loop goroutine and waits for its result.
func (l *loop) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case l.actions <- func() { errc <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrStopped
		}
	}
}

// notify publishes a message the local view applied. Slow readers miss
// updates rather than stall the loop; the view itself stays complete.
func (l *loop) notify(msg protocol.Message) bool {
	select {
	case l.updates <- msg:
		return true
	default:
		return false
	}
}

// Package transport defines the peer connection contract the session core
// depends on. Implementations hide signalling and NAT traversal; the core
// only sees ordered messages per connection plus open and close events.
package transport

import (
	"context"
	"errors"

	"github.com/KDT2006/minewars/internal/protocol"
)

var (
	ErrClosed          = errors.New("connection closed")
	ErrPeerUnavailable = errors.New("peer unavailable")
	ErrPeerIDTaken     = errors.New("peer id already registered")
	ErrBackpressure    = errors.New("send buffer full")
)

type EventKind byte

const (
	EventOpen EventKind = iota
	EventData
	EventClose
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventData:
		return "data"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a notification about one connection. Message is set for
// EventData, Err for EventError.
type Event struct {
	Kind    EventKind
	Conn    Conn
	Message protocol.Message
	Err     error
}

// Conn is one side of a peer link. Send is fire-and-forget: the message is
// queued and delivery failures surface later as close or error events.
type Conn interface {
	PeerID() string
	Send(msg protocol.Message) error
	Close() error
}

// Listener accepts connections addressed to a host peer id and reports
// everything that happens on them through a single event channel.
type Listener interface {
	Events() <-chan Event
	Close() error
}

// Dialer opens a connection from a guest to a host peer id. Events for the
// returned connection arrive on the returned channel, which is closed after
// the final close event.
type Dialer interface {
	Dial(ctx context.Context, selfID, hostID string) (Conn, <-chan Event, error)
}

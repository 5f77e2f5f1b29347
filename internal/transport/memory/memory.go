// Package memory is an in-process transport. A Network plays the part of the
// connection broker: hosts register under their peer id and guests dial it.
// Messages go through the wire codec so peers never share memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/KDT2006/minewars/internal/protocol"
	"github.com/KDT2006/minewars/internal/transport"
)

const DefaultBuffer = 1024

type Network struct {
	mu        sync.Mutex
	listeners map[string]*Listener
	buffer    int
}

func NewNetwork() *Network {
	return &Network{listeners: make(map[string]*Listener), buffer: DefaultBuffer}
}

// Listen registers hostID and returns its listener.
func (n *Network) Listen(hostID string) (*Listener, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.listeners[hostID]; ok {
		return nil, fmt.Errorf("listen %s: %w", hostID, transport.ErrPeerIDTaken)
	}
	l := &Listener{
		network: n,
		id:      hostID,
		events:  make(chan transport.Event, n.buffer),
		links:   make(map[*link]struct{}),
	}
	n.listeners[hostID] = l
	return l, nil
}

// Dial connects selfID to a registered host. Both sides see an open event.
func (n *Network) Dial(ctx context.Context, selfID, hostID string) (transport.Conn, <-chan transport.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", hostID, err)
	}

	n.mu.Lock()
	l, ok := n.listeners[hostID]
	n.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("dial %s: %w", hostID, transport.ErrPeerUnavailable)
	}

	guestEvents := make(chan transport.Event, n.buffer)
	lk := &link{}
	hostEnd := &end{link: lk, peerID: selfID, inbox: l.events}
	guestEnd := &end{link: lk, peerID: hostID, inbox: guestEvents, closeInbox: true}
	hostEnd.other, guestEnd.other = guestEnd, hostEnd
	lk.ends = [2]*end{hostEnd, guestEnd}

	guestEvents <- transport.Event{Kind: transport.EventOpen, Conn: guestEnd}
	if !l.attach(lk, hostEnd) {
		return nil, nil, fmt.Errorf("dial %s: %w", hostID, transport.ErrPeerUnavailable)
	}

	return guestEnd, guestEvents, nil
}

func (n *Network) unregister(l *Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners[l.id] == l {
		delete(n.listeners, l.id)
	}
}

// Listener receives every event of every connection made to one host id.
// Its event channel is never closed.
type Listener struct {
	network *Network
	id      string
	events  chan transport.Event

	mu     sync.Mutex
	closed bool
	links  map[*link]struct{}
}

func (l *Listener) attach(lk *link, hostEnd *end) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.links[lk] = struct{}{}
	lk.listener = l
	l.events <- transport.Event{Kind: transport.EventOpen, Conn: hostEnd}
	return true
}

func (l *Listener) detach(lk *link) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.links, lk)
}

func (l *Listener) Events() <-chan transport.Event {
	return l.events
}

// Close unregisters the host id and closes every open link.
func (l *Listener) Close() error {
	l.network.unregister(l)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	links := make([]*link, 0, len(l.links))
	for lk := range l.links {
		links = append(links, lk)
	}
	l.mu.Unlock()

	for _, lk := range links {
		lk.close()
	}
	return nil
}

type link struct {
	mu       sync.Mutex
	closed   bool
	ends     [2]*end
	listener *Listener
}

func (lk *link) close() {
	lk.mu.Lock()
	if lk.closed {
		lk.mu.Unlock()
		return
	}
	lk.closed = true
	ends := lk.ends
	lk.mu.Unlock()

	for _, e := range ends {
		e.postClose()
	}
	if lk.listener != nil {
		lk.listener.detach(lk)
	}
}

type end struct {
	link       *link
	other      *end
	peerID     string
	inbox      chan transport.Event
	closeInbox bool
}

func (e *end) PeerID() string {
	return e.peerID
}

func (e *end) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	decoded, err := protocol.Decode(data)
	if err != nil {
		return err
	}

	e.link.mu.Lock()
	defer e.link.mu.Unlock()
	if e.link.closed {
		return transport.ErrClosed
	}

	select {
	case e.other.inbox <- transport.Event{Kind: transport.EventData, Conn: e.other, Message: decoded}:
		return nil
	default:
		return transport.ErrBackpressure
	}
}

func (e *end) Close() error {
	e.link.close()
	return nil
}

// postClose delivers the close event after any data already queued. When the
// inbox is full the event is handed to a goroutine so the closer never blocks.
func (e *end) postClose() {
	deliver := func() {
		e.inbox <- transport.Event{Kind: transport.EventClose, Conn: e}
		if e.closeInbox {
			close(e.inbox)
		}
	}
	select {
	case e.inbox <- transport.Event{Kind: transport.EventClose, Conn: e}:
		if e.closeInbox {
			close(e.inbox)
		}
	default:
		go deliver()
	}
}

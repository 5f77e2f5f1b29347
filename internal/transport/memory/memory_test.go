package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KDT2006/minewars/internal/protocol"
	"github.com/KDT2006/minewars/internal/transport"
)

func next(t *testing.T, events <-chan transport.Event) transport.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatalf("event channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return transport.Event{}
}

func TestDialDeliversOpenDataAndClose(t *testing.T) {
	network := NewNetwork()
	l, err := network.Listen("mw-AB12-host")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	conn, guestEvents, err := network.Dial(context.Background(), "mw-guest", "mw-AB12-host")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if ev := next(t, guestEvents); ev.Kind != transport.EventOpen || ev.Conn.PeerID() != "mw-AB12-host" {
		t.Fatalf("unexpected guest event %+v", ev)
	}
	open := next(t, l.Events())
	if open.Kind != transport.EventOpen || open.Conn.PeerID() != "mw-guest" {
		t.Fatalf("unexpected host event %+v", open)
	}

	if err := conn.Send(protocol.New(protocol.JoinPayload{Name: "bob"})); err != nil {
		t.Fatalf("send: %v", err)
	}
	data := next(t, l.Events())
	join, ok := data.Message.Payload.(protocol.JoinPayload)
	if data.Kind != transport.EventData || !ok || join.Name != "bob" {
		t.Fatalf("unexpected data event %+v", data)
	}

	if err := data.Conn.Send(protocol.New(protocol.TurnChangePayload{Index: 2})); err != nil {
		t.Fatalf("reply: %v", err)
	}
	reply := next(t, guestEvents)
	if turn, ok := reply.Message.Payload.(protocol.TurnChangePayload); !ok || turn.Index != 2 {
		t.Fatalf("unexpected reply %+v", reply)
	}

	conn.Close()
	if ev := next(t, l.Events()); ev.Kind != transport.EventClose || ev.Conn.PeerID() != "mw-guest" {
		t.Fatalf("expected close on host, got %+v", ev)
	}
	if ev := next(t, guestEvents); ev.Kind != transport.EventClose {
		t.Fatalf("expected close on guest, got %+v", ev)
	}
	if _, ok := <-guestEvents; ok {
		t.Fatalf("guest event channel left open after close")
	}
	if err := conn.Send(protocol.New(protocol.RematchPayload{})); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestDialUnknownHost(t *testing.T) {
	network := NewNetwork()
	_, _, err := network.Dial(context.Background(), "mw-guest", "mw-ZZZZ-host")
	if !errors.Is(err, transport.ErrPeerUnavailable) {
		t.Fatalf("expected ErrPeerUnavailable, got %v", err)
	}
}

func TestListenRejectsDuplicateID(t *testing.T) {
	network := NewNetwork()
	if _, err := network.Listen("mw-AB12-host"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	if _, err := network.Listen("mw-AB12-host"); !errors.Is(err, transport.ErrPeerIDTaken) {
		t.Fatalf("expected ErrPeerIDTaken, got %v", err)
	}
}

func TestListenerCloseDropsGuests(t *testing.T) {
	network := NewNetwork()
	l, _ := network.Listen("mw-AB12-host")
	_, guestEvents, err := network.Dial(context.Background(), "mw-guest", "mw-AB12-host")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	next(t, guestEvents)

	l.Close()

	if ev := next(t, guestEvents); ev.Kind != transport.EventClose {
		t.Fatalf("expected close after listener shutdown, got %+v", ev)
	}
	if _, _, err := network.Dial(context.Background(), "mw-late", "mw-AB12-host"); !errors.Is(err, transport.ErrPeerUnavailable) {
		t.Fatalf("expected closed listener to be unreachable, got %v", err)
	}
}

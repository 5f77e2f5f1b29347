package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/KDT2006/minewars/internal/protocol"
	"github.com/KDT2006/minewars/internal/transport"
)

const hostID = "mw-AB12-host"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewServer(hostID, logger)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(func() { server.Close() })
	return server, srv
}

func next(t *testing.T, events <-chan transport.Event) transport.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatalf("event channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return transport.Event{}
}

func TestDialExchangesMessages(t *testing.T) {
	server, srv := newTestServer(t)

	dialer := Dialer{BaseURL: srv.URL}
	conn, guestEvents, err := dialer.Dial(context.Background(), "mw-guest", hostID)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if ev := next(t, guestEvents); ev.Kind != transport.EventOpen {
		t.Fatalf("expected guest open, got %v", ev.Kind)
	}
	open := next(t, server.Events())
	if open.Kind != transport.EventOpen || open.Conn.PeerID() != "mw-guest" {
		t.Fatalf("unexpected host event %+v", open)
	}

	if err := conn.Send(protocol.New(protocol.MovePayload{R: 3, C: 4})); err != nil {
		t.Fatalf("send: %v", err)
	}
	data := next(t, server.Events())
	move, ok := data.Message.Payload.(protocol.MovePayload)
	if data.Kind != transport.EventData || !ok || move.R != 3 || move.C != 4 {
		t.Fatalf("unexpected data event %+v", data)
	}

	if err := data.Conn.Send(protocol.New(protocol.GameOverPayload{Win: true, Msg: "Sector Cleared"})); err != nil {
		t.Fatalf("reply: %v", err)
	}
	reply := next(t, guestEvents)
	if over, ok := reply.Message.Payload.(protocol.GameOverPayload); !ok || !over.Win {
		t.Fatalf("unexpected reply %+v", reply)
	}

	conn.Close()
	if ev := next(t, server.Events()); ev.Kind != transport.EventClose || ev.Conn.PeerID() != "mw-guest" {
		t.Fatalf("expected close on host, got %+v", ev)
	}
}

func TestUnknownMessagesAreSkipped(t *testing.T) {
	server, srv := newTestServer(t)

	target, err := PeerURL(srv.URL, "mw-raw", hostID)
	if err != nil {
		t.Fatalf("peer url: %v", err)
	}
	raw, resp, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		raw.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	next(t, server.Events())

	for _, frame := range []string{`{"type":"TELEPORT","x":1}`, `not json`, `{"type":"JOIN","name":"eve","extra":true}`} {
		if err := raw.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	ev := next(t, server.Events())
	join, ok := ev.Message.Payload.(protocol.JoinPayload)
	if ev.Kind != transport.EventData || !ok || join.Name != "eve" {
		t.Fatalf("expected the join to survive, got %+v", ev)
	}
}

func TestDialWrongHost(t *testing.T) {
	_, srv := newTestServer(t)

	_, _, err := Dialer{BaseURL: srv.URL}.Dial(context.Background(), "mw-guest", "mw-ZZZZ-host")
	if !errors.Is(err, transport.ErrPeerUnavailable) {
		t.Fatalf("expected ErrPeerUnavailable, got %v", err)
	}
}

func TestDuplicatePeerIDRejected(t *testing.T) {
	server, srv := newTestServer(t)
	dialer := Dialer{BaseURL: srv.URL}

	if _, _, err := dialer.Dial(context.Background(), "mw-guest", hostID); err != nil {
		t.Fatalf("dial: %v", err)
	}
	next(t, server.Events())

	if _, _, err := dialer.Dial(context.Background(), "mw-guest", hostID); !errors.Is(err, transport.ErrPeerUnavailable) {
		t.Fatalf("expected second dial with the same id to fail, got %v", err)
	}
}

func TestServerCloseDisconnectsGuests(t *testing.T) {
	server, srv := newTestServer(t)

	_, guestEvents, err := Dialer{BaseURL: srv.URL}.Dial(context.Background(), "mw-guest", hostID)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	next(t, guestEvents)
	next(t, server.Events())

	server.Close()

	for {
		ev := next(t, guestEvents)
		if ev.Kind == transport.EventClose {
			break
		}
	}
	if _, ok := <-guestEvents; ok {
		t.Fatalf("guest event channel left open after close")
	}
}

func TestPeerURL(t *testing.T) {
	got, err := PeerURL("http://127.0.0.1:8080", "mw-1", hostID)
	if err != nil {
		t.Fatalf("peer url: %v", err)
	}
	want := "ws://127.0.0.1:8080/peer?host=mw-AB12-host&id=mw-1"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

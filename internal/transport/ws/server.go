// Package ws carries peer links over websockets. The host serves an
// http.Handler addressed by its peer id; guests dial it with their own id.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/KDT2006/minewars/internal/transport"
)

const (
	PeerPath   = "/peer"
	QueryHost  = "host"
	QueryPeer  = "id"
	eventQueue = 1024
)

// Server is a transport.Listener for one host peer id.
type Server struct {
	hostID   string
	logger   *slog.Logger
	upgrader websocket.Upgrader
	events   chan transport.Event
	stop     chan struct{}

	mu     sync.Mutex
	closed bool
	conns  map[string]*Conn
}

func NewServer(hostID string, logger *slog.Logger) *Server {
	return &Server{
		hostID: hostID,
		logger: logger.With("component", "ws", "host", hostID),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		events: make(chan transport.Event, eventQueue),
		stop:   make(chan struct{}),
		conns:  make(map[string]*Conn),
	}
}

// Handler routes PeerPath to the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(PeerPath, s)
	return mux
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hostID := r.URL.Query().Get(QueryHost)
	peerID := r.URL.Query().Get(QueryPeer)
	if hostID != s.hostID {
		http.Error(w, "unknown host", http.StatusNotFound)
		return
	}
	if peerID == "" {
		http.Error(w, "missing peer id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "host closed", http.StatusServiceUnavailable)
		return
	}
	if _, taken := s.conns[peerID]; taken {
		s.mu.Unlock()
		http.Error(w, "peer id already connected", http.StatusConflict)
		return
	}
	// reserve the id while upgrading
	s.conns[peerID] = nil
	s.mu.Unlock()

	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", "peer", peerID, "error", err)
		s.forget(peerID)
		return
	}

	conn := newConn(sock, peerID, s.logger)
	go conn.writeLoop()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[peerID] = conn
	s.mu.Unlock()

	s.logger.Info("peer connected", "peer", peerID, "remote", r.RemoteAddr)

	select {
	case s.events <- transport.Event{Kind: transport.EventOpen, Conn: conn}:
	case <-s.stop:
		conn.Close()
		return
	}

	go func() {
		conn.readLoop(s.events, s.stop)
		s.forget(peerID)
		s.logger.Info("peer disconnected", "peer", peerID)
	}()
}

func (s *Server) forget(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, peerID)
}

func (s *Server) Events() <-chan transport.Event {
	return s.events
}

// Close drops every peer. The event channel stays open.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stop)
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		if c != nil {
			conns = append(conns, c)
		}
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	return nil
}

// Dialer connects guests to a host reachable at BaseURL, e.g.
// ws://127.0.0.1:8080.
type Dialer struct {
	BaseURL string
	Logger  *slog.Logger
}

func (d Dialer) Dial(ctx context.Context, selfID, hostID string) (transport.Conn, <-chan transport.Event, error) {
	target, err := PeerURL(d.BaseURL, selfID, hostID)
	if err != nil {
		return nil, nil, err
	}

	sock, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, nil, fmt.Errorf("dial %s: %s: %w", hostID, resp.Status, transport.ErrPeerUnavailable)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("dial %s: %w", hostID, err)
		}
		return nil, nil, fmt.Errorf("dial %s: %v: %w", hostID, err, transport.ErrPeerUnavailable)
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	conn := newConn(sock, hostID, logger.With("component", "ws"))
	go conn.writeLoop()

	events := make(chan transport.Event, eventQueue)
	events <- transport.Event{Kind: transport.EventOpen, Conn: conn}

	go func() {
		// nil stop: the final close event is always delivered
		conn.readLoop(events, nil)
		close(events)
	}()

	return conn, events, nil
}

// PeerURL builds the websocket address of hostID for selfID.
func PeerURL(base, selfID, hostID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse host url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = PeerPath
	q := url.Values{}
	q.Set(QueryHost, hostID)
	q.Set(QueryPeer, selfID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

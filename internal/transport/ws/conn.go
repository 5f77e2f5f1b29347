package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/KDT2006/minewars/internal/protocol"
	"github.com/KDT2006/minewars/internal/transport"
)

const (
	writeWait      = 10 * time.Second
	outboundBuffer = 256
	maxMessageSize = 1 << 20
)

// Conn is one websocket peer link. Outgoing messages are queued and written
// by a dedicated goroutine; incoming ones are decoded and posted as events.
type Conn struct {
	conn     *websocket.Conn
	peerID   string
	logger   *slog.Logger
	outbound chan []byte
	done     chan struct{}
	once     sync.Once
}

func newConn(conn *websocket.Conn, peerID string, logger *slog.Logger) *Conn {
	conn.SetReadLimit(maxMessageSize)
	return &Conn{
		conn:     conn,
		peerID:   peerID,
		logger:   logger.With("peer", peerID),
		outbound: make(chan []byte, outboundBuffer),
		done:     make(chan struct{}),
	}
}

func (c *Conn) PeerID() string {
	return c.peerID
}

// Send queues a message. A peer too slow to drain its queue gets
// ErrBackpressure rather than stalling the sender.
func (c *Conn) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return transport.ErrClosed
	default:
	}

	select {
	case c.outbound <- data:
		return nil
	case <-c.done:
		return transport.ErrClosed
	default:
		c.logger.Error("peer too slow to receive message", "type", msg.Type)
		return transport.ErrBackpressure
	}
}

// Close stops the link. Messages already queued are still written before
// the socket is torn down.
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// readLoop posts every decoded message until the socket fails, then posts a
// close event. Unknown message types are dropped.
func (c *Conn) readLoop(events chan<- transport.Event, stop <-chan struct{}) {
	defer c.Close()

	post := func(ev transport.Event) bool {
		select {
		case events <- ev:
			return true
		case <-stop:
			return false
		}
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("error reading from peer", "error", err)
				post(transport.Event{Kind: transport.EventError, Conn: c, Err: err})
			}
			post(transport.Event{Kind: transport.EventClose, Conn: c})
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownType) {
				c.logger.Debug("ignoring unknown message", "error", err)
			} else {
				c.logger.Error("discarding malformed message", "error", err)
			}
			continue
		}

		if !post(transport.Event{Kind: transport.EventData, Conn: c, Message: msg}) {
			return
		}
	}
}

// writeLoop owns the socket for writing and closes it on the way out.
func (c *Conn) writeLoop() {
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			c.flush()
			return
		case data := <-c.outbound:
			if err := c.write(data); err != nil {
				c.logger.Error("error writing to peer", "error", err)
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) flush() {
	for {
		select {
		case data := <-c.outbound:
			if err := c.write(data); err != nil {
				return
			}
		default:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Conn) write(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

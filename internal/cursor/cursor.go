package cursor

import (
	"time"

	"github.com/KDT2006/minewars/internal/protocol"
)

// DefaultInterval is the minimum spacing between two updates from the same
// participant.
const DefaultInterval = 30 * time.Millisecond

// Throttle gates the outgoing cursor updates of one participant.
type Throttle struct {
	interval time.Duration
	last     time.Time
}

func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Throttle{interval: interval}
}

// Allow reports whether an update may be sent at now, and if so records it.
func (t *Throttle) Allow(now time.Time) bool {
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Limiter applies a Throttle per sender. The host uses it to drop relayed
// updates from guests that send faster than the window.
type Limiter struct {
	interval time.Duration
	senders  map[string]*Throttle
}

func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{interval: interval, senders: make(map[string]*Throttle)}
}

func (l *Limiter) Allow(id string, now time.Time) bool {
	t, ok := l.senders[id]
	if !ok {
		t = NewThrottle(l.interval)
		l.senders[id] = t
	}
	return t.Allow(now)
}

// Forget drops a sender's state once it leaves.
func (l *Limiter) Forget(id string) {
	delete(l.senders, id)
}

// Position is a normalized pointer location.
type Position struct {
	X, Y float64
}

// Positions holds the last known pointer of every remote participant. It is
// ephemeral and never part of the authoritative state.
type Positions map[string]Position

// Apply records or, for the off-board sentinel, removes a participant's
// indicator. It reports whether anything changed.
func (p Positions) Apply(update protocol.CursorPayload) bool {
	if update.ID == "" {
		return false
	}
	if update.IsOffBoard() {
		if _, ok := p[update.ID]; !ok {
			return false
		}
		delete(p, update.ID)
		return true
	}
	p[update.ID] = Position{X: clampUnit(update.X), Y: clampUnit(update.Y)}
	return true
}

// Normalize converts a pointer offset within a surface to [0,1] coordinates.
// ok is false when the pointer is outside the surface, in which case the
// sentinel payload should be sent.
func Normalize(x, y, width, height float64) (Position, bool) {
	if width <= 0 || height <= 0 || x < 0 || y < 0 || x > width || y > height {
		return Position{}, false
	}
	return Position{X: clampUnit(x / width), Y: clampUnit(y / height)}, true
}

// Payload builds the wire update for a position, or the sentinel when
// onBoard is false.
func Payload(id string, pos Position, onBoard bool) protocol.CursorPayload {
	if !onBoard {
		return protocol.CursorPayload{X: -1, Y: -1, ID: id}
	}
	return protocol.CursorPayload{X: pos.X, Y: pos.Y, ID: id}
}

func clampUnit(v float64) float64 {
	return max(0, min(1, v))
}

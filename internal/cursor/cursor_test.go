package cursor

import (
	"testing"
	"time"

	"github.com/KDT2006/minewars/internal/protocol"
)

func TestThrottleAllowsOnePerWindow(t *testing.T) {
	th := NewThrottle(30 * time.Millisecond)
	base := time.Unix(1_700_000_000, 0)

	steps := []struct {
		offset time.Duration
		want   bool
	}{
		{0, true},
		{10 * time.Millisecond, false},
		{29 * time.Millisecond, false},
		{30 * time.Millisecond, true},
		{45 * time.Millisecond, false},
		{61 * time.Millisecond, true},
	}
	for _, step := range steps {
		if got := th.Allow(base.Add(step.offset)); got != step.want {
			t.Fatalf("at +%v expected %v, got %v", step.offset, step.want, got)
		}
	}
}

func TestThrottleDefaultsInterval(t *testing.T) {
	th := NewThrottle(0)
	base := time.Unix(0, 0).Add(time.Hour)
	th.Allow(base)
	if th.Allow(base.Add(DefaultInterval - time.Millisecond)) {
		t.Fatalf("zero interval should fall back to the default window")
	}
}

func TestLimiterIsPerSender(t *testing.T) {
	l := NewLimiter(30 * time.Millisecond)
	now := time.Unix(1_700_000_000, 0)

	if !l.Allow("a", now) || !l.Allow("b", now) {
		t.Fatalf("first update from each sender should pass")
	}
	if l.Allow("a", now.Add(time.Millisecond)) {
		t.Fatalf("second update inside the window should be dropped")
	}

	l.Forget("a")
	if !l.Allow("a", now.Add(2*time.Millisecond)) {
		t.Fatalf("forgotten sender should start fresh")
	}
}

func TestPositionsApply(t *testing.T) {
	p := Positions{}

	if !p.Apply(protocol.CursorPayload{X: 0.25, Y: 1.5, ID: "a"}) {
		t.Fatalf("expected position to be recorded")
	}
	if got := p["a"]; got.X != 0.25 || got.Y != 1 {
		t.Fatalf("expected clamped position, got %+v", got)
	}

	if !p.Apply(protocol.CursorPayload{X: -1, Y: -1, ID: "a"}) {
		t.Fatalf("expected sentinel to remove the indicator")
	}
	if _, ok := p["a"]; ok {
		t.Fatalf("sentinel treated as a position")
	}
	if p.Apply(protocol.CursorPayload{X: -1, Y: -1, ID: "a"}) {
		t.Fatalf("removing a missing indicator should report no change")
	}
	if p.Apply(protocol.CursorPayload{X: 0.5, Y: 0.5}) {
		t.Fatalf("update without id should be ignored")
	}
}

func TestNormalizeAndPayload(t *testing.T) {
	pos, ok := Normalize(50, 25, 200, 100)
	if !ok || pos.X != 0.25 || pos.Y != 0.25 {
		t.Fatalf("unexpected normalized position %+v %v", pos, ok)
	}

	if _, ok := Normalize(-3, 10, 200, 100); ok {
		t.Fatalf("pointer outside the surface reported on board")
	}

	off := Payload("me", Position{}, false)
	if !off.IsOffBoard() || off.ID != "me" {
		t.Fatalf("expected sentinel payload, got %+v", off)
	}
}

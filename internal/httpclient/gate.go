package httpclient

import (
	"sync"
	"time"
)

// UnavailabilityGate remembers the last time the upstream answered 503 so
// bulk operations can skip doomed downloads for a hold-off window instead
// of hammering a struggling service.
type UnavailabilityGate struct {
	mu       sync.Mutex
	hold     time.Duration
	lastSeen time.Time
	now      func() time.Time
}

// NewUnavailabilityGate creates a gate with the given hold-off window.
func NewUnavailabilityGate(hold time.Duration) *UnavailabilityGate {
	return &UnavailabilityGate{hold: hold, now: time.Now}
}

// MarkUnavailable records that the upstream just reported unavailability.
func (g *UnavailabilityGate) MarkUnavailable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSeen = g.now()
}

// IsUnavailableRecent reports whether a 503 was seen inside the hold-off
// window.
func (g *UnavailabilityGate) IsUnavailableRecent() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastSeen.IsZero() {
		return false
	}
	return g.now().Sub(g.lastSeen) < g.hold
}

// Reset clears the window. Used when a fresh operation starts.
func (g *UnavailabilityGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSeen = time.Time{}
}

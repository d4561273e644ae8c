// Package governor implements the pre-flight rate gate that protects the
// hard provider quota. It never waits: a call is either permitted now or
// denied, and a denied caller skips the network entirely.
package governor

import (
	"sync"
	"time"

	"github.com/fleveque/restaurant-images/internal/clock"
)

// Governor is a sliding-window counter. Timestamps older than the window are
// pruned on every check; there is no background sweep.
type Governor struct {
	mu         sync.Mutex
	clock      clock.Clock
	window     time.Duration
	max        int
	timestamps []time.Time
	denied     uint64
}

// New creates a governor that permits at most max calls per window.
func New(window time.Duration, max int, clk clock.Clock) *Governor {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Governor{
		clock:      clk,
		window:     window,
		max:        max,
		timestamps: make([]time.Time, 0, max+1),
	}
}

// Allow prunes the window and records a call if one is available.
func (g *Governor) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.prune(now)

	if len(g.timestamps) >= g.max {
		g.denied++
		return false
	}

	g.timestamps = append(g.timestamps, now)
	return true
}

// Usage is a snapshot of the current window.
type Usage struct {
	Used   int           `json:"used"`
	Limit  int           `json:"limit"`
	Window time.Duration `json:"window_ns"`
	Denied uint64        `json:"denied"`
}

// Usage returns how many calls are counted in the current window.
func (g *Governor) Usage() Usage {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune(g.clock.Now())
	return Usage{
		Used:   len(g.timestamps),
		Limit:  g.max,
		Window: g.window,
		Denied: g.denied,
	}
}

// prune drops timestamps that fell out of the window. Timestamps are appended
// in clock order, so the expired ones are always a prefix.
func (g *Governor) prune(now time.Time) {
	cutoff := 0
	for cutoff < len(g.timestamps) && now.Sub(g.timestamps[cutoff]) >= g.window {
		cutoff++
	}
	if cutoff > 0 {
		g.timestamps = append(g.timestamps[:0], g.timestamps[cutoff:]...)
	}
}

package thread

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Tracker remembers when each thread last saw bot traffic. Used to keep
// group-reply senders attached to a thread for a TTL window.
//
// IsActive is read-only; expired entries are evicted lazily on Touch. A
// racing IsActive/Touch pair is acceptable, no lock spans both calls.
type Tracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   clockwork.Clock
	touched map[string]time.Time
}

// NewTracker creates a tracker. A ttl of zero disables tracking entirely.
// A nil clock means wall clock.
func NewTracker(ttl time.Duration, clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{
		ttl:     ttl,
		clock:   clock,
		touched: make(map[string]time.Time),
	}
}

// IsActive reports whether the thread was touched within the TTL window.
func (t *Tracker) IsActive(threadID string) bool {
	if t.ttl <= 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.touched[threadID]
	return ok && t.clock.Since(last) < t.ttl
}

// Touch stamps the thread with the current time and evicts expired entries.
func (t *Tracker) Touch(threadID string) {
	if t.ttl <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.touched[threadID] = now
	for id, last := range t.touched {
		if now.Sub(last) >= t.ttl {
			delete(t.touched, id)
		}
	}
}

// Len returns the number of tracked thread ids.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.touched)
}

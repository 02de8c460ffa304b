// Package thread tracks per-thread liveness: wake/sleep state, activity
// TTLs, and inactivity timers.
package thread

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Decision is the outcome of routing an event through the wake/sleep engine.
type Decision int

const (
	// Forward delivers the message downstream without a state change worth
	// announcing.
	Forward Decision = iota
	// Wake delivers the message and flips the thread from sleeping to awake.
	Wake
	// Discard drops the message; the thread is sleeping and was not mentioned.
	Discard
)

func (d Decision) String() string {
	switch d {
	case Forward:
		return "forward"
	case Wake:
		return "wake"
	case Discard:
		return "discard"
	default:
		return "unknown"
	}
}

const (
	// InactivityTimeout is how long a thread stays awake without traffic.
	InactivityTimeout = time.Hour

	// maxTrackedThreads bounds the engine and timer pool maps.
	maxTrackedThreads = 10000
)

// Key builds a thread key from a channel id and an optional thread root id.
func Key(channelID, rootID string) string {
	if rootID == "" {
		return channelID
	}
	return channelID + ":" + rootID
}

type threadState struct {
	sleeping     bool
	lastActivity time.Time
}

// Engine decides whether inbound events should be forwarded, wake a sleeping
// thread, or be discarded. Safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	threads map[string]*threadState
}

// NewEngine creates a wake/sleep engine. A nil clock means wall clock.
func NewEngine(clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		clock:   clock,
		threads: make(map[string]*threadState),
	}
}

// OnEvent routes one inbound event for the given thread key.
//
// Unknown threads are tracked as awake and forwarded; at capacity the event
// is still forwarded but the thread is not tracked. Awake threads refresh
// their activity stamp. Sleeping threads wake on mentions and discard
// everything else.
func (e *Engine) OnEvent(key string, isMention bool) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.threads[key]
	if !ok {
		if len(e.threads) < maxTrackedThreads {
			e.threads[key] = &threadState{lastActivity: e.clock.Now()}
		}
		return Forward
	}

	if !st.sleeping {
		st.lastActivity = e.clock.Now()
		return Forward
	}

	if isMention {
		st.sleeping = false
		st.lastActivity = e.clock.Now()
		return Wake
	}
	return Discard
}

// MarkSleeping puts a tracked thread to sleep. Untracked keys are ignored;
// a thread dropped at capacity must not be resurrected by its own timer.
func (e *Engine) MarkSleeping(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if st, ok := e.threads[key]; ok {
		st.sleeping = true
	}
}

// IsAwake reports whether the key is tracked and awake.
func (e *Engine) IsAwake(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.threads[key]
	return ok && !st.sleeping
}

// Len returns the number of tracked threads.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.threads)
}

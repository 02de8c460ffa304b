package thread

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/perchbot/perch/logger"
)

type poolTimer struct {
	stop chan struct{}
	once sync.Once
}

func (t *poolTimer) abort() {
	t.once.Do(func() { close(t.stop) })
}

// TimerPool arms at most one pending inactivity timer per thread key.
type TimerPool struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	capacity int
	timers   map[string]*poolTimer
}

// NewTimerPool creates a timer pool. A nil clock means wall clock.
func NewTimerPool(clock clockwork.Clock) *TimerPool {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TimerPool{
		clock:    clock,
		capacity: maxTrackedThreads,
		timers:   make(map[string]*poolTimer),
	}
}

// Reset aborts any pending timer for the key and arms a new one that runs fn
// after d. At capacity, keys without an existing timer are not armed.
func (p *TimerPool) Reset(key string, d time.Duration, fn func()) {
	p.mu.Lock()
	if prev, ok := p.timers[key]; ok {
		prev.abort()
		delete(p.timers, key)
	} else if len(p.timers) >= p.capacity {
		p.mu.Unlock()
		logger.Warn("timer pool at capacity, inactivity timer not armed", "key", key)
		return
	}

	t := &poolTimer{stop: make(chan struct{})}
	p.timers[key] = t
	p.mu.Unlock()

	go func() {
		select {
		case <-p.clock.After(d):
			p.mu.Lock()
			if p.timers[key] == t {
				delete(p.timers, key)
			}
			p.mu.Unlock()

			// Abort can race the expiry; an aborted timer never fires.
			select {
			case <-t.stop:
				return
			default:
			}
			fn()
		case <-t.stop:
		}
	}()
}

// Stop aborts the pending timer for the key, if any.
func (p *TimerPool) Stop(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.timers[key]; ok {
		t.abort()
		delete(p.timers, key)
	}
}

// StopAll aborts every pending timer.
func (p *TimerPool) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, t := range p.timers {
		t.abort()
		delete(p.timers, key)
	}
}

// Len returns the number of pending timers.
func (p *TimerPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.timers)
}

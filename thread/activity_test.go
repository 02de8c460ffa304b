package thread

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestTrackerUntouchedIsInactive(t *testing.T) {
	tr := NewTracker(time.Minute, clockwork.NewFakeClock())
	if tr.IsActive("t1") {
		t.Fatal("untouched thread should be inactive")
	}
}

func TestTrackerTouchActivates(t *testing.T) {
	tr := NewTracker(time.Minute, clockwork.NewFakeClock())
	tr.Touch("t1")
	if !tr.IsActive("t1") {
		t.Fatal("touched thread should be active")
	}
}

func TestTrackerExpiresAfterTTL(t *testing.T) {
	clk := clockwork.NewFakeClock()
	tr := NewTracker(time.Minute, clk)
	tr.Touch("t1")

	clk.Advance(59 * time.Second)
	if !tr.IsActive("t1") {
		t.Fatal("thread should still be active inside the window")
	}

	clk.Advance(2 * time.Second)
	if tr.IsActive("t1") {
		t.Fatal("thread should be inactive after the TTL")
	}
}

func TestTrackerTouchEvictsExpiredEntries(t *testing.T) {
	clk := clockwork.NewFakeClock()
	tr := NewTracker(time.Minute, clk)
	tr.Touch("old")

	clk.Advance(2 * time.Minute)
	tr.Touch("fresh")

	if tr.Len() != 1 {
		t.Fatalf("expired entry should be evicted on touch, len=%d", tr.Len())
	}
	if tr.IsActive("old") {
		t.Fatal("expired thread should be inactive")
	}
	if !tr.IsActive("fresh") {
		t.Fatal("fresh thread should be active")
	}
}

func TestTrackerZeroTTLDisabled(t *testing.T) {
	tr := NewTracker(0, clockwork.NewFakeClock())
	tr.Touch("t1")
	if tr.IsActive("t1") {
		t.Fatal("zero TTL disables tracking")
	}
	if tr.Len() != 0 {
		t.Fatal("zero TTL must not store entries")
	}
}

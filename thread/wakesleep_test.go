package thread

import (
	"fmt"
	"testing"

	"github.com/jonboulle/clockwork"
)

func TestUnknownThreadIsForwardedAndTracked(t *testing.T) {
	e := NewEngine(clockwork.NewFakeClock())

	if d := e.OnEvent("C1:100", false); d != Forward {
		t.Fatalf("expected Forward, got %v", d)
	}
	if !e.IsAwake("C1:100") {
		t.Fatal("thread should be tracked awake after first event")
	}
}

func TestAwakeThreadRefreshesAndForwards(t *testing.T) {
	e := NewEngine(clockwork.NewFakeClock())
	e.OnEvent("C1", false)

	if d := e.OnEvent("C1", false); d != Forward {
		t.Fatalf("expected Forward, got %v", d)
	}
	if d := e.OnEvent("C1", true); d != Forward {
		t.Fatalf("mention on awake thread should still Forward, got %v", d)
	}
}

func TestSleepingThreadDiscardsNonMention(t *testing.T) {
	e := NewEngine(clockwork.NewFakeClock())
	e.OnEvent("C1:100", false)
	e.MarkSleeping("C1:100")

	if d := e.OnEvent("C1:100", false); d != Discard {
		t.Fatalf("expected Discard, got %v", d)
	}
	if e.IsAwake("C1:100") {
		t.Fatal("thread should stay asleep")
	}
}

func TestSleepingThreadMentionWakes(t *testing.T) {
	e := NewEngine(clockwork.NewFakeClock())
	e.OnEvent("C1:100", false)
	e.MarkSleeping("C1:100")

	if d := e.OnEvent("C1:100", true); d != Wake {
		t.Fatalf("expected Wake, got %v", d)
	}
	if !e.IsAwake("C1:100") {
		t.Fatal("thread should be awake after mention")
	}
}

func TestMarkSleepingUntrackedThreadIsNoop(t *testing.T) {
	e := NewEngine(clockwork.NewFakeClock())

	e.MarkSleeping("C9:999")
	if e.Len() != 0 {
		t.Fatalf("untracked key must not be inserted, len=%d", e.Len())
	}
	// The next event must look like a fresh thread, not a sleeping one.
	if d := e.OnEvent("C9:999", false); d != Forward {
		t.Fatalf("expected Forward, got %v", d)
	}
}

func TestMultipleThreadsAreIndependent(t *testing.T) {
	e := NewEngine(clockwork.NewFakeClock())
	e.OnEvent("C1:a", false)
	e.OnEvent("C1:b", false)
	e.MarkSleeping("C1:a")

	if d := e.OnEvent("C1:b", false); d != Forward {
		t.Fatalf("thread b should be unaffected, got %v", d)
	}
	if d := e.OnEvent("C1:a", false); d != Discard {
		t.Fatalf("thread a should be asleep, got %v", d)
	}
}

func TestCapacityStillForwardsWithoutTracking(t *testing.T) {
	e := NewEngine(clockwork.NewFakeClock())
	for i := 0; i < maxTrackedThreads; i++ {
		e.OnEvent(fmt.Sprintf("C:%d", i), false)
	}
	if e.Len() != maxTrackedThreads {
		t.Fatalf("expected %d tracked threads, got %d", maxTrackedThreads, e.Len())
	}

	if d := e.OnEvent("C:overflow", false); d != Forward {
		t.Fatalf("over-capacity event must still Forward, got %v", d)
	}
	if e.Len() != maxTrackedThreads {
		t.Fatal("over-capacity key must not be tracked")
	}
	if e.IsAwake("C:overflow") {
		t.Fatal("over-capacity key must not appear awake")
	}
}

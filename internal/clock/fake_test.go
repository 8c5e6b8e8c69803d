package clock

import (
	"testing"
	"time"
)

func TestFakeClockAfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	ch := c.After(2 * time.Second)
	c.Advance(time.Second)
	select {
	case <-ch:
		t.Fatal("fired too early")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-ch:
		if !got.Equal(start.Add(2 * time.Second)) {
			t.Fatalf("unexpected fire time %v", got)
		}
	default:
		t.Fatal("expected After to fire")
	}
	if c.Waiters() != 0 {
		t.Fatalf("expected no pending waiters, got %d", c.Waiters())
	}
}

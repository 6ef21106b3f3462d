package sched

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTimersFireInDeadlineOrder(t *testing.T) {
	c := NewClock()
	var got []string
	c.After(30*time.Millisecond, func() { got = append(got, "c") })
	c.After(10*time.Millisecond, func() { got = append(got, "a") })
	c.After(10*time.Millisecond, func() { got = append(got, "b") })

	if n := c.Advance(5 * time.Millisecond); n != 0 {
		t.Errorf("Advance(5ms) fired %d, want 0", n)
	}
	c.Advance(10 * time.Millisecond)
	c.Advance(20 * time.Millisecond)

	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if c.Now() != 35*time.Millisecond {
		t.Errorf("Now() = %v, want 35ms", c.Now())
	}
}

func TestCancel(t *testing.T) {
	c := NewClock()
	fired := false
	cancel := c.After(time.Millisecond, func() { fired = true })
	if c.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", c.Pending())
	}
	cancel()
	cancel()
	if c.Pending() != 0 {
		t.Errorf("Pending() after cancel = %d, want 0", c.Pending())
	}
	c.Advance(time.Second)
	if fired {
		t.Error("cancelled timer fired")
	}
}

func TestNextTickRunsOnFollowingAdvance(t *testing.T) {
	c := NewClock()
	var got []int
	c.NextTick(func() {
		got = append(got, 1)
		c.NextTick(func() { got = append(got, 2) })
	})

	c.Advance(0)
	if diff := cmp.Diff([]int{1}, got); diff != "" {
		t.Errorf("after first tick (-want +got):\n%s", diff)
	}
	c.Advance(0)
	if diff := cmp.Diff([]int{1, 2}, got); diff != "" {
		t.Errorf("after second tick (-want +got):\n%s", diff)
	}
}

func TestZeroDelayTimerScheduledWhileFiringWaits(t *testing.T) {
	c := NewClock()
	count := 0
	var again func()
	again = func() {
		count++
		c.After(0, again)
	}
	c.After(0, again)

	c.Advance(time.Millisecond)
	if count != 1 {
		t.Errorf("count after one Advance = %d, want 1", count)
	}
	c.Advance(time.Millisecond)
	if count != 2 {
		t.Errorf("count after two Advances = %d, want 2", count)
	}
}

func TestRunUntilIdle(t *testing.T) {
	c := NewClock()
	c.After(50*time.Millisecond, func() {})
	ticks := c.RunUntilIdle(16*time.Millisecond, 100)
	if ticks != 4 {
		t.Errorf("RunUntilIdle ticks = %d, want 4", ticks)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

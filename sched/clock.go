// Package sched provides the frame clock that drives timed commands.
//
// Clock is deterministic: time only moves when Advance is called, which
// makes it the scheduler for tests as well as for the host tick loop.
package sched

import (
	"container/heap"
	"time"
)

// Clock implements flow.Scheduler. It is not safe for concurrent use; the
// host calls it from the worker goroutine only.
type Clock struct {
	now    time.Duration
	seq    uint64
	ticks  uint64
	timers timerHeap
	next   []*entry
	live   int
}

type entry struct {
	at   time.Duration
	seq  uint64
	fn   func()
	dead bool
	c    *Clock
}

func (e *entry) cancel() {
	if e.dead {
		return
	}
	e.dead = true
	e.c.live--
}

func NewClock() *Clock { return &Clock{} }

// Now is the elapsed clock time.
func (c *Clock) Now() time.Duration { return c.now }

// Ticks is the number of Advance calls so far.
func (c *Clock) Ticks() uint64 { return c.ticks }

// Pending is the number of scheduled callbacks not yet run or cancelled.
func (c *Clock) Pending() int { return c.live }

func (c *Clock) add(at time.Duration, fn func()) *entry {
	c.seq++
	c.live++
	return &entry{at: at, seq: c.seq, fn: fn, c: c}
}

// After runs fn on the first Advance that reaches now+d. Callbacks
// scheduled while timers are firing never run in the same Advance.
func (c *Clock) After(d time.Duration, fn func()) func() {
	if d < 0 {
		d = 0
	}
	e := c.add(c.now+d, fn)
	heap.Push(&c.timers, e)
	return e.cancel
}

// NextTick runs fn at the start of the next Advance.
func (c *Clock) NextTick(fn func()) func() {
	e := c.add(c.now, fn)
	c.next = append(c.next, e)
	return e.cancel
}

// Advance moves time forward by dt. It first runs the callbacks queued with
// NextTick before this call, then fires due timers in deadline order.
// It returns the number of callbacks run.
func (c *Clock) Advance(dt time.Duration) int {
	c.ticks++
	limit := c.seq
	n := 0

	queued := c.next
	c.next = nil
	for _, e := range queued {
		if c.fire(e) {
			n++
		}
	}

	if dt > 0 {
		c.now += dt
	}
	for c.timers.Len() > 0 {
		e := c.timers[0]
		if e.at > c.now || e.seq > limit {
			break
		}
		heap.Pop(&c.timers)
		if c.fire(e) {
			n++
		}
	}
	return n
}

func (c *Clock) fire(e *entry) bool {
	if e.dead {
		return false
	}
	e.dead = true
	c.live--
	e.fn()
	return true
}

// RunUntilIdle advances by step until nothing is pending or maxTicks have
// elapsed. It returns the number of ticks used.
func (c *Clock) RunUntilIdle(step time.Duration, maxTicks int) int {
	i := 0
	for ; i < maxTicks && c.live > 0; i++ {
		c.Advance(step)
	}
	return i
}

// ---------------------------------------------------------------------------
// timer heap
// ---------------------------------------------------------------------------

type timerHeap []*entry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *timerHeap) Pop() any {
	old := *h
	e := old[len(old)-1]
	old[len(old)-1] = nil
	*h = old[:len(old)-1]
	return e
}

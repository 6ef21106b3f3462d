package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrStopped is returned by Do once the worker has been stopped.
var ErrStopped = errors.New("worker stopped")

// request represents a unit of work to be executed on the runtime goroutine.
type request struct {
	fn   func(*Runtime) (any, error)
	done chan result
}

// result holds the return value from a runtime operation.
type result struct {
	value any
	err   error
}

// Worker serializes all Runtime access through a single goroutine.
// Blocks, the clock and the save manager are single-threaded; RPC handlers
// and tickers must go through the worker to avoid data races.
type Worker struct {
	rt       *Runtime
	requests chan request
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(rt *Runtime) *Worker {
	w := &Worker{
		rt:       rt,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	defer close(w.stopped)
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the runtime, recovering from panics.
func (w *Worker) execute(fn func(*Runtime) (any, error)) (res result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic on runtime goroutine: %v", r)
			res.err = fmt.Errorf("%v", r)
		}
	}()
	res.value, res.err = fn(w.rt)
	return res
}

// Do submits a function for execution on the runtime goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (w *Worker) Do(fn func(*Runtime) (any, error)) (any, error) {
	req := request{fn: fn, done: make(chan result, 1)}
	select {
	case w.requests <- req:
	case <-w.stopped:
		return nil, ErrStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.stopped:
		return nil, ErrStopped
	}
}

// Call is Do with a typed result.
func Call[T any](w *Worker, fn func(*Runtime) (T, error)) (T, error) {
	v, err := w.Do(func(rt *Runtime) (any, error) { return fn(rt) })
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// RunTicker advances the runtime clock by every, once per every of wall
// time, until ctx is done or the worker stops.
func (w *Worker) RunTicker(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if _, err := w.Do(func(rt *Runtime) (any, error) {
				rt.Tick(every)
				return nil, nil
			}); err != nil {
				return err
			}
		}
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	<-w.stopped
}

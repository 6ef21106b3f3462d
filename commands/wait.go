package commands

import (
	"time"

	"github.com/chazu/blockflow/flow"
)

// Wait suspends the block for Duration.
type Wait struct {
	flow.Base
	Duration time.Duration
}

func (c *Wait) Enter(f *flow.Frame) flow.Result {
	s := f.Services().Scheduler
	if s == nil {
		log.Warningf("%s: no scheduler, not waiting", f.Location())
		return flow.Next()
	}
	tok := f.Token()
	return flow.Suspend(s.After(c.Duration, tok.Continue))
}

// Yield suspends the block until the next tick.
type Yield struct {
	flow.Base
}

func (c *Yield) Enter(f *flow.Frame) flow.Result {
	s := f.Services().Scheduler
	if s == nil {
		return flow.Next()
	}
	tok := f.Token()
	return flow.Suspend(s.NextTick(tok.Continue))
}

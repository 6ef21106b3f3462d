package commands

import (
	"fmt"

	"github.com/chazu/blockflow/flow"
	"github.com/chazu/blockflow/variable"
)

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

// While repeats its body as long as Cond is true.
type While struct {
	flow.Base
	Cond Condition
}

func (c *While) Role() flow.Role { return flow.RoleLoop }

func (c *While) Enter(f *flow.Frame) flow.Result {
	if evaluate(f, c.Cond) {
		return flow.Next()
	}
	return skipToEnd(f)
}

func (c *While) Validate(b *flow.Block) error { return validateCondition(b, c.Cond) }

// LoopRange runs its body with a counter going from From up to, but not
// including, To. The counter is written to the integer variable Counter
// when one is named.
//
// A pass arriving from the loop's own End is a back-edge and advances the
// counter; any other arrival starts the loop over. A back-edge into a loop
// that was never entered in the current run (a Jump into its body) restarts
// it. The exception is the first back-edge of a loop that enclosed the
// cursor of a run resumed from saved state: counting continues from the
// counter variable.
type LoopRange struct {
	flow.Base
	From    int64
	To      int64
	Counter string

	gen     uint64
	active  bool
	current int64
}

func (c *LoopRange) Role() flow.Role { return flow.RoleLoop }

func (c *LoopRange) Enter(f *flow.Frame) flow.Result {
	end := f.Block().MatchingEnd(f.Index())
	if end < 0 {
		log.Warningf("%s: loop has no matching End, stopping block", f.Location())
		return flow.Stop()
	}

	counter := c.counter(f)
	backEdge := f.PreviousIndex() == end
	switch {
	case backEdge && c.active && c.gen == f.Generation():
		c.current++
	case backEdge && counter != nil && f.Block().ClaimResumedLoop(f.Index()):
		c.current = counter.Value().Int() + 1
	default:
		if backEdge {
			log.Warningf("%s: back-edge into a loop not entered in this run, restarting it", f.Location())
		}
		c.current = c.From
	}
	c.gen = f.Generation()

	if c.current >= c.To {
		c.active = false
		return flow.Goto(end + 1)
	}
	c.active = true
	if counter != nil {
		if err := counter.Set(variable.Int(c.current)); err != nil {
			log.Warningf("%s: %v", f.Location(), err)
		}
	}
	return flow.Next()
}

func (c *LoopRange) counter(f *flow.Frame) *variable.Variable {
	if c.Counter == "" {
		return nil
	}
	v, ok := f.Variable(c.Counter)
	if !ok {
		log.Warningf("%s: %v: %q", f.Location(), ErrMissingVariable, c.Counter)
		return nil
	}
	return v
}

func (c *LoopRange) OnReset() {
	c.active = false
	c.current = 0
}

func (c *LoopRange) Validate(b *flow.Block) error {
	if c.Counter != "" && !hasVariable(b, c.Counter) {
		return fmt.Errorf("%w: %q", ErrMissingVariable, c.Counter)
	}
	return nil
}

// Break leaves the nearest enclosing loop.
type Break struct {
	flow.Base
}

func (c *Break) Role() flow.Role { return flow.RoleBreak }

func (c *Break) Enter(f *flow.Frame) flow.Result {
	b := f.Block()
	loop := b.EnclosingLoop(f.Index())
	if loop < 0 {
		log.Warningf("%s: Break outside a loop, stopping block", f.Location())
		return flow.Stop()
	}
	end := b.MatchingEnd(loop)
	if end < 0 {
		log.Warningf("%s: enclosing loop has no End, stopping block", f.Location())
		return flow.Stop()
	}
	if l, ok := b.Command(loop).(*LoopRange); ok {
		l.active = false
	}
	return flow.Goto(end + 1)
}

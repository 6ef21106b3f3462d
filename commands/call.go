package commands

import (
	"fmt"

	"github.com/chazu/blockflow/flow"
)

// ---------------------------------------------------------------------------
// Jump / Label
// ---------------------------------------------------------------------------

// Label marks a Jump target. Entering it does nothing.
type Label struct {
	flow.Base
	Key string
}

func (c *Label) Role() flow.Role               { return flow.RoleLabel }
func (c *Label) LabelKey() string              { return c.Key }
func (c *Label) Enter(*flow.Frame) flow.Result { return flow.Next() }

// Jump continues after the first label named Label in the same block.
// A missing label falls through to the next command.
type Jump struct {
	flow.Base
	Label string
}

func (c *Jump) Enter(f *flow.Frame) flow.Result {
	if c.Label == "" {
		return flow.Next()
	}
	i := f.Block().LabelIndex(c.Label)
	if i < 0 {
		log.Warningf("%s: no label %q, continuing", f.Location(), c.Label)
		return flow.Next()
	}
	return flow.Goto(i + 1)
}

func (c *Jump) Validate(b *flow.Block) error {
	if c.Label != "" && b.LabelIndex(c.Label) < 0 {
		return fmt.Errorf("no label %q", c.Label)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Call / Stop / StopBlock
// ---------------------------------------------------------------------------

// CallMode says what the caller does after starting the target.
type CallMode int

const (
	// CallContinue starts the target and carries on.
	CallContinue CallMode = iota
	// CallStop starts the target and stops the caller.
	CallStop
	// CallWait suspends the caller until the target completes or stops.
	CallWait
)

func (m CallMode) String() string {
	switch m {
	case CallStop:
		return "stop"
	case CallWait:
		return "wait"
	}
	return "continue"
}

// ParseCallMode parses "continue", "stop" or "wait".
func ParseCallMode(s string) (CallMode, error) {
	switch s {
	case "", "continue":
		return CallContinue, nil
	case "stop":
		return CallStop, nil
	case "wait", "wait-until-finished":
		return CallWait, nil
	}
	return 0, fmt.Errorf("unknown call mode %q", s)
}

// Call starts another block, optionally in another flowchart of the same
// runtime.
type Call struct {
	flow.Base
	Flowchart  string
	Block      string
	StartIndex int
	Mode       CallMode
}

func (c *Call) Enter(f *flow.Frame) flow.Result {
	if c.Block == "" {
		return flow.Next()
	}
	fc := resolveFlowchart(f, c.Flowchart)
	if fc == nil {
		log.Warningf("%s: no flowchart %q, stopping block", f.Location(), c.Flowchart)
		return flow.Stop()
	}
	target := fc.Block(c.Block)
	if target == nil {
		log.Warningf("%s: no block %q, stopping block", f.Location(), c.Block)
		return flow.Stop()
	}
	if target == f.Block() {
		return flow.Goto(0)
	}

	switch c.Mode {
	case CallWait:
		if target.IsExecuting() {
			log.Warningf("%s: block %q is already executing, not waiting", f.Location(), c.Block)
			return flow.Next()
		}
		tok := f.Token()
		if !fc.ExecuteBlockAt(target, c.StartIndex, tok.Continue) {
			return flow.Next()
		}
		return flow.Suspend(nil)
	case CallStop:
		fc.ExecuteBlockAt(target, c.StartIndex, nil)
		return flow.Stop()
	}
	fc.ExecuteBlockAt(target, c.StartIndex, nil)
	return flow.Next()
}

func (c *Call) Validate(b *flow.Block) error {
	if c.Block == "" || c.Flowchart != "" || b.Flowchart() == nil {
		return nil
	}
	if b.Flowchart().Block(c.Block) == nil {
		return fmt.Errorf("no block %q", c.Block)
	}
	return nil
}

// resolveFlowchart finds name among the runtime's flowcharts; an empty
// name is the frame's own flowchart.
func resolveFlowchart(f *flow.Frame, name string) *flow.Flowchart {
	own := f.Flowchart()
	if name == "" || (own != nil && own.Name() == name) {
		return own
	}
	return f.Services().Flowchart(name)
}

// Stop stops the block it is in.
type Stop struct {
	flow.Base
}

func (c *Stop) Enter(*flow.Frame) flow.Result { return flow.Stop() }

// StopBlock stops another block. Naming its own block stops it.
type StopBlock struct {
	flow.Base
	Flowchart string
	Block     string
}

func (c *StopBlock) Enter(f *flow.Frame) flow.Result {
	if c.Block == "" {
		return flow.Next()
	}
	fc := resolveFlowchart(f, c.Flowchart)
	var target *flow.Block
	if fc != nil {
		target = fc.Block(c.Block)
	}
	if target == nil {
		log.Warningf("%s: no block %q to stop", f.Location(), c.Block)
		return flow.Next()
	}
	if target == f.Block() {
		return flow.Stop()
	}
	target.Stop()
	return flow.Next()
}

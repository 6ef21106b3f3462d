package commands

import (
	"github.com/chazu/blockflow/flow"
)

// ---------------------------------------------------------------------------
// If / ElseIf / Else / End
// ---------------------------------------------------------------------------

// If enters its body when Cond is true. Otherwise it continues after the
// next same-indent Else or End, or at the next same-indent ElseIf.
type If struct {
	flow.Base
	Cond Condition
}

func (c *If) Role() flow.Role { return flow.RoleCondition }

func (c *If) Enter(f *flow.Frame) flow.Result {
	if evaluate(f, c.Cond) {
		return flow.Next()
	}
	return skipBranch(f)
}

func (c *If) Validate(b *flow.Block) error { return validateCondition(b, c.Cond) }

// skipBranch moves past a false condition.
func skipBranch(f *flow.Frame) flow.Result {
	b := f.Block()
	next := b.NextBranch(f.Index())
	if next < 0 {
		log.Warningf("%s: no matching ElseIf, Else or End, stopping block", f.Location())
		return flow.Stop()
	}
	if flow.RoleOf(b.Command(next)) == flow.RoleElseIf {
		return flow.Goto(next)
	}
	return flow.Goto(next + 1)
}

// ElseIf is evaluated like If when reached directly from a same-indent
// If or ElseIf. Reached any other way, it ends the branch like Else.
type ElseIf struct {
	flow.Base
	Cond Condition
}

func (c *ElseIf) Role() flow.Role { return flow.RoleElseIf }

func (c *ElseIf) Enter(f *flow.Frame) flow.Result {
	prev := f.Block().Command(f.PreviousIndex())
	if prev != nil && isCondition(prev) && indentOf(prev) == f.Indent() {
		if evaluate(f, c.Cond) {
			return flow.Next()
		}
		return skipBranch(f)
	}
	return skipToEnd(f)
}

func (c *ElseIf) Validate(b *flow.Block) error { return validateCondition(b, c.Cond) }

func isCondition(c flow.Command) bool {
	r := flow.RoleOf(c)
	return r == flow.RoleCondition || r == flow.RoleElseIf
}

func indentOf(c flow.Command) int {
	if i, ok := c.(interface{ Indent() int }); ok {
		return i.Indent()
	}
	return 0
}

// Else is only entered by falling out of a true branch.
type Else struct {
	flow.Base
}

func (c *Else) Role() flow.Role { return flow.RoleElse }

func (c *Else) Enter(f *flow.Frame) flow.Result { return skipToEnd(f) }

func skipToEnd(f *flow.Frame) flow.Result {
	end := f.Block().MatchingEnd(f.Index())
	if end < 0 {
		log.Warningf("%s: no matching End, stopping block", f.Location())
		return flow.Stop()
	}
	return flow.Goto(end + 1)
}

// End closes a branch or loop. Closing a loop, it continues at the opener.
type End struct {
	flow.Base
}

func (c *End) Role() flow.Role { return flow.RoleEnd }

func (c *End) Enter(f *flow.Frame) flow.Result {
	if loop := f.Block().LoopOpener(f.Index()); loop >= 0 {
		return flow.Goto(loop)
	}
	return flow.Next()
}

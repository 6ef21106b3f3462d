package flow

import (
	"reflect"
)

// ---------------------------------------------------------------------------
// Command
// ---------------------------------------------------------------------------

// Command is one executable step of a Block.
//
// Concrete commands embed Base, which carries the index, indent and enabled
// flag the dispatch loop and the jump table rely on.
type Command interface {
	// Enter is called when the cursor reaches the command. The returned
	// Result decides what happens next.
	Enter(f *Frame) Result

	meta() *Base
}

// Base holds the per-command state owned by the parent Block.
type Base struct {
	index    int
	indent   int
	disabled bool
	block    *Block
}

func (c *Base) meta() *Base { return c }

// BaseOf returns the Base embedded in c.
func BaseOf(c Command) *Base { return c.meta() }

// Index is the position of the command in its parent's list.
func (c *Base) Index() int { return c.index }

// Indent is the nesting depth of the command.
func (c *Base) Indent() int { return c.indent }

// SetIndent sets the nesting depth. Negative values are clamped to zero.
func (c *Base) SetIndent(n int) {
	if n < 0 {
		n = 0
	}
	c.indent = n
	c.invalidate()
}

func (c *Base) Enabled() bool { return !c.disabled }

func (c *Base) SetEnabled(on bool) {
	c.disabled = !on
	c.invalidate()
}

// ParentBlock returns the block the command is attached to, or nil.
func (c *Base) ParentBlock() *Block { return c.block }

func (c *Base) invalidate() {
	if c.block != nil {
		c.block.jt = nil
	}
}

// ---------------------------------------------------------------------------
// Roles
// ---------------------------------------------------------------------------

// Role tells the jump table how a command takes part in block structure.
type Role int

const (
	RolePlain Role = iota
	RoleCondition
	RoleElseIf
	RoleElse
	RoleEnd
	RoleLoop
	RoleBreak
	RoleLabel
	RoleComment
)

// Roled is implemented by commands with a structural role.
type Roled interface {
	Role() Role
}

// RoleOf returns c's role, RolePlain if it has none.
func RoleOf(c Command) Role {
	if r, ok := c.(Roled); ok {
		return r.Role()
	}
	return RolePlain
}

// OpensBlock reports whether commands after c are indented one level deeper.
func (r Role) OpensBlock() bool {
	switch r {
	case RoleCondition, RoleElseIf, RoleElse, RoleLoop:
		return true
	}
	return false
}

// ClosesBlock reports whether c sits one level shallower than its predecessor.
func (r Role) ClosesBlock() bool {
	switch r {
	case RoleElseIf, RoleElse, RoleEnd:
		return true
	}
	return false
}

// transparent commands are skipped by the dispatch loop and by every scan.
// Labels are entered but never match a structural scan.
func transparent(c Command) bool {
	return c.meta().disabled || RoleOf(c) == RoleComment
}

// ---------------------------------------------------------------------------
// Optional hooks
// ---------------------------------------------------------------------------

// Stopper is implemented by commands that hold external registrations
// (timers, tweens, effect calls) they must release when their block stops
// while they are parked.
type Stopper interface {
	OnStopExecuting()
}

// Resetter is implemented by commands with state cleared by Flowchart.Reset.
type Resetter interface {
	OnReset()
}

// Validator is implemented by commands that can report authoring problems
// (missing targets, bad operands) before the block runs.
type Validator interface {
	Validate(b *Block) error
}

// Labeled is implemented by label commands.
type Labeled interface {
	LabelKey() string
}

// Named lets a command override the name used in logs and status output.
type Named interface {
	CommandName() string
}

// CommandName returns a short display name for c.
func CommandName(c Command) string {
	if n, ok := c.(Named); ok {
		return n.CommandName()
	}
	t := reflect.TypeOf(c)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

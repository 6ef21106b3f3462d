// Package commands provides the control-flow commands (If, ElseIf, Else,
// End, While, LoopRange, Break, Jump, Label, Call, Stop) and the core leaf
// commands (Wait, Yield, SetVariable, Reset, SendMessage, Log, Effect,
// SavePoint, Comment) interpreted by package flow.
package commands

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/blockflow/flow"
	"github.com/chazu/blockflow/variable"
)

var log = commonlog.GetLogger("blockflow.commands")

var (
	ErrMissingVariable = errors.New("variable not found")
	ErrNoCondition     = errors.New("no condition")
)

// ---------------------------------------------------------------------------
// Conditions
// ---------------------------------------------------------------------------

// Condition is evaluated by If, ElseIf and While.
type Condition interface {
	Evaluate(f *flow.Frame) (bool, error)
}

// Const is a fixed condition.
type Const bool

func (c Const) Evaluate(*flow.Frame) (bool, error) { return bool(c), nil }

func (c Const) String() string {
	if c {
		return "true"
	}
	return "false"
}

// ConditionFunc adapts a function to Condition.
type ConditionFunc func(f *flow.Frame) (bool, error)

func (fn ConditionFunc) Evaluate(f *flow.Frame) (bool, error) { return fn(f) }

// Compare tests a variable against a literal or another variable.
type Compare struct {
	Key string
	Op  variable.CompareOperator
	// Value is the right-hand side unless Ref names a variable.
	Value variable.Value
	Ref   string
}

func (c *Compare) Evaluate(f *flow.Frame) (bool, error) {
	lhs, ok := f.Variable(c.Key)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrMissingVariable, c.Key)
	}
	rhs := c.Value
	if c.Ref != "" {
		r, ok := f.Variable(c.Ref)
		if !ok {
			return false, fmt.Errorf("%w: %q", ErrMissingVariable, c.Ref)
		}
		rhs = r.Value()
	}
	return lhs.Compare(c.Op, rhs)
}

func (c *Compare) String() string {
	rhs := c.Value.String()
	if c.Ref != "" {
		rhs = "$" + c.Ref
	}
	return fmt.Sprintf("$%s %v %s", c.Key, c.Op, rhs)
}

// validate checks both operands exist in the flowchart b belongs to.
func (c *Compare) validate(b *flow.Block) error {
	for _, key := range []string{c.Key, c.Ref} {
		if key == "" {
			continue
		}
		if !hasVariable(b, key) {
			return fmt.Errorf("%w: %q", ErrMissingVariable, key)
		}
	}
	return nil
}

// All is true when every condition is true. An empty All is true.
type All []Condition

func (a All) Evaluate(f *flow.Frame) (bool, error) {
	for _, c := range a {
		ok, err := c.Evaluate(f)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Any is true when at least one condition is true.
type Any []Condition

func (a Any) Evaluate(f *flow.Frame) (bool, error) {
	var errs []error
	for _, c := range a {
		ok, err := c.Evaluate(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}

func describe(c Condition) string {
	if s, ok := c.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", c)
}

// evaluate runs c and logs failures. A failed evaluation counts as false.
func evaluate(f *flow.Frame, c Condition) bool {
	if c == nil {
		log.Warningf("%s: %v", f.Location(), ErrNoCondition)
		return false
	}
	ok, err := c.Evaluate(f)
	if err != nil {
		log.Warningf("%s: evaluating %s: %v", f.Location(), describe(c), err)
		return false
	}
	return ok
}

func validateCondition(b *flow.Block, c Condition) error {
	switch c := c.(type) {
	case nil:
		return ErrNoCondition
	case *Compare:
		return c.validate(b)
	case All:
		return validateConditions(b, c)
	case Any:
		return validateConditions(b, c)
	}
	return nil
}

func validateConditions(b *flow.Block, cs []Condition) error {
	var errs []error
	for _, c := range cs {
		if err := validateCondition(b, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func hasVariable(b *flow.Block, key string) bool {
	if _, ok := b.Locals().Lookup(key); ok {
		return true
	}
	if fc := b.Flowchart(); fc != nil {
		_, ok := fc.Variable(key)
		return ok
	}
	return false
}

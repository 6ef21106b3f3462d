package commands

import (
	"fmt"

	"github.com/chazu/blockflow/flow"
	"github.com/chazu/blockflow/variable"
)

// SetVariable applies Op to the variable Key. String operands have {$key}
// tokens expanded first. A missing variable is skipped with a warning.
type SetVariable struct {
	flow.Base
	Key   string
	Op    variable.SetOperator
	Value variable.Value
	// Ref, when set, names a variable whose value is the operand.
	Ref string
}

func (c *SetVariable) Enter(f *flow.Frame) flow.Result {
	v, ok := f.Variable(c.Key)
	if !ok {
		log.Warningf("%s: %v: %q", f.Location(), ErrMissingVariable, c.Key)
		return flow.Next()
	}
	rhs := c.Value
	if c.Ref != "" {
		r, ok := f.Variable(c.Ref)
		if !ok {
			log.Warningf("%s: %v: %q", f.Location(), ErrMissingVariable, c.Ref)
			return flow.Next()
		}
		rhs = r.Value()
	} else if rhs.Type() == variable.TypeString {
		rhs = variable.String(f.Substitute(rhs.Text()))
	}
	if err := v.Apply(c.Op, rhs); err != nil {
		return flow.Fail(err)
	}
	return flow.Next()
}

func (c *SetVariable) Validate(b *flow.Block) error {
	for _, key := range []string{c.Key, c.Ref} {
		if key != "" && !hasVariable(b, key) {
			return fmt.Errorf("%w: %q", ErrMissingVariable, key)
		}
	}
	return nil
}

func (c *SetVariable) String() string {
	return fmt.Sprintf("$%s %v %v", c.Key, c.Op, c.Value)
}

// Reset reinitializes the commands and/or variables of the flowchart.
type Reset struct {
	flow.Base
	Commands  bool
	Variables bool
}

func (c *Reset) Enter(f *flow.Frame) flow.Result {
	if fc := f.Flowchart(); fc != nil {
		fc.Reset(c.Commands, c.Variables)
	}
	return flow.Next()
}

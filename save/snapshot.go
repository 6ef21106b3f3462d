// Package save captures and restores flowchart state: variable values and
// the resumption point of every executing block.
package save

import (
	"fmt"
	"math"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/blockflow/flow"
	"github.com/chazu/blockflow/variable"
)

var log = commonlog.GetLogger("blockflow.save")

// Version of the snapshot layout written by this package.
const Version = 1

// ---------------------------------------------------------------------------
// Snapshot model
// ---------------------------------------------------------------------------

// Snapshot is the saved state of one or more flowcharts.
type Snapshot struct {
	Version     int              `cbor:"version"`
	Description string           `cbor:"description,omitempty"`
	Scene       string           `cbor:"scene,omitempty"`
	SavedAt     int64            `cbor:"saved_at"`
	Flowcharts  []FlowchartState `cbor:"flowcharts"`
}

// Time returns SavedAt as a time.
func (s *Snapshot) Time() time.Time { return time.Unix(0, s.SavedAt) }

// Flowchart returns the state saved for name, or nil.
func (s *Snapshot) Flowchart(name string) *FlowchartState {
	for i := range s.Flowcharts {
		if s.Flowcharts[i].Name == name {
			return &s.Flowcharts[i]
		}
	}
	return nil
}

type FlowchartState struct {
	Name      string          `cbor:"name"`
	Variables []VariableState `cbor:"variables,omitempty"`
	Blocks    []BlockState    `cbor:"blocks,omitempty"`
}

type VariableState struct {
	Key   string    `cbor:"key"`
	Type  string    `cbor:"type"`
	Value WireValue `cbor:"value"`
}

type BlockState struct {
	Name           string `cbor:"name"`
	Executing      bool   `cbor:"executing,omitempty"`
	Cursor         int    `cbor:"cursor"`
	Previous       int    `cbor:"previous"`
	ExecutionCount int    `cbor:"execution_count,omitempty"`

	Locals []VariableState `cbor:"locals,omitempty"`
}

// WireValue holds a variable value. Floats are stored as IEEE-754 bits so a
// round trip is exact, NaN payloads included.
type WireValue struct {
	Bool   bool     `cbor:"b,omitempty"`
	Int    int64    `cbor:"i,omitempty"`
	Float  uint64   `cbor:"f,omitempty"`
	String string   `cbor:"s,omitempty"`
	Comps  []uint64 `cbor:"v,omitempty"`
}

func toWire(v variable.Value) WireValue {
	var w WireValue
	switch v.Type() {
	case variable.TypeBoolean:
		w.Bool = v.Bool()
	case variable.TypeInteger:
		w.Int = v.Int()
	case variable.TypeFloat:
		w.Float = math.Float64bits(v.Float())
	case variable.TypeString:
		w.String = v.Text()
	case variable.TypeVector2, variable.TypeVector3, variable.TypeColor:
		for _, c := range v.Components() {
			w.Comps = append(w.Comps, math.Float64bits(c))
		}
	}
	return w
}

func fromWire(t variable.Type, w WireValue) (variable.Value, error) {
	switch t {
	case variable.TypeBoolean:
		return variable.Bool(w.Bool), nil
	case variable.TypeInteger:
		return variable.Int(w.Int), nil
	case variable.TypeFloat:
		return variable.Float(math.Float64frombits(w.Float)), nil
	case variable.TypeString:
		return variable.String(w.String), nil
	case variable.TypeVector2, variable.TypeVector3, variable.TypeColor:
		comps := make([]float64, len(w.Comps))
		for i, c := range w.Comps {
			comps[i] = math.Float64frombits(c)
		}
		return variable.FromComponents(t, comps)
	}
	return variable.Value{}, fmt.Errorf("type %v is not saved", t)
}

// Decode returns the saved value.
func (vs VariableState) Decode() (variable.Value, error) {
	t, err := variable.ParseType(vs.Type)
	if err != nil {
		return variable.Value{}, err
	}
	return fromWire(t, vs.Value)
}

// ---------------------------------------------------------------------------
// Capture
// ---------------------------------------------------------------------------

// Capture records the serializable variables and the block states of fc,
// block-local variables included.
func Capture(fc *flow.Flowchart) FlowchartState {
	st := FlowchartState{Name: fc.Name(), Variables: captureVariables(fc.Variables().All())}
	for _, b := range fc.Blocks() {
		bs := BlockState{
			Name:           b.Name(),
			Executing:      b.IsExecuting(),
			Cursor:         -1,
			Previous:       -1,
			ExecutionCount: b.ExecutionCount(),
			Locals:         captureVariables(b.LocalVariables()),
		}
		if bs.Executing {
			bs.Cursor = b.Cursor()
			bs.Previous = b.ResumePrevious()
		}
		st.Blocks = append(st.Blocks, bs)
	}
	return st
}

func captureVariables(vars []*variable.Variable) []VariableState {
	var out []VariableState
	for _, v := range vars {
		if !v.Serializable() {
			continue
		}
		out = append(out, VariableState{
			Key:   v.Key(),
			Type:  v.Type().String(),
			Value: toWire(v.Value()),
		})
	}
	return out
}

// NewSnapshot captures every flowchart in fcs.
func NewSnapshot(description string, now time.Time, fcs ...*flow.Flowchart) *Snapshot {
	s := &Snapshot{Version: Version, Description: description, SavedAt: now.UnixNano()}
	for _, fc := range fcs {
		s.Flowcharts = append(s.Flowcharts, Capture(fc))
	}
	return s
}

// ---------------------------------------------------------------------------
// Apply
// ---------------------------------------------------------------------------

// Apply restores st into fc. Unknown variables and blocks, and variables
// whose type changed, are skipped with a warning. Every block is stopped
// first; blocks saved while executing are resumed at their saved cursor.
// The flowchart is marked started so start triggers do not fire again.
func Apply(fc *flow.Flowchart, st *FlowchartState) {
	fc.MarkStarted()
	fc.StopAllBlocks()

	applyVariables(fc.Name(), fc.Variables(), st.Variables)

	var resume []BlockState
	for _, bs := range st.Blocks {
		b := fc.Block(bs.Name)
		if b == nil {
			log.Warningf("%s: saved block %q no longer exists", fc.Name(), bs.Name)
			continue
		}
		b.SetExecutionCount(bs.ExecutionCount)
		if len(bs.Locals) > 0 {
			applyVariables(fc.Name()+"/"+bs.Name, b.Locals(), bs.Locals)
		}
		if bs.Executing {
			resume = append(resume, bs)
		}
	}
	for _, bs := range resume {
		b := fc.Block(bs.Name)
		cursor := bs.Cursor
		if cursor < 0 || cursor > b.Len() {
			log.Warningf("%s: saved cursor %d out of range for block %q, restarting it", fc.Name(), cursor, bs.Name)
			cursor = 0
		}
		b.Resume(cursor, bs.Previous)
	}
}

// applyVariables sets the saved values into vars by key. where names the
// owner in warnings.
func applyVariables(where string, vars *variable.Table, saved []VariableState) {
	for _, vs := range saved {
		v, ok := vars.Lookup(vs.Key)
		if !ok {
			log.Warningf("%s: saved variable %q no longer exists", where, vs.Key)
			continue
		}
		t, err := variable.ParseType(vs.Type)
		if err != nil || t != v.Type() {
			log.Warningf("%s: saved variable %q is %s, now %v; skipping", where, vs.Key, vs.Type, v.Type())
			continue
		}
		val, err := fromWire(t, vs.Value)
		if err != nil {
			log.Warningf("%s: saved variable %q: %v", where, vs.Key, err)
			continue
		}
		if err := v.Set(val); err != nil {
			log.Warningf("%s: %v", where, err)
		}
	}
}

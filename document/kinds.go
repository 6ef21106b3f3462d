package document

import (
	"fmt"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/blockflow/commands"
	"github.com/chazu/blockflow/flow"
	"github.com/chazu/blockflow/variable"
)

// ---------------------------------------------------------------------------
// Kind registry
// ---------------------------------------------------------------------------

// A kindFunc decodes the parameters of one command kind.
type kindFunc func(d *decoder, p toml.Primitive) (flow.Command, error)

var kinds = map[string]kindFunc{
	"if":           decodeIf,
	"elseif":       decodeElseIf,
	"else":         plain(func() flow.Command { return &commands.Else{} }),
	"end":          plain(func() flow.Command { return &commands.End{} }),
	"while":        decodeWhile,
	"loop":         decodeLoop,
	"break":        plain(func() flow.Command { return &commands.Break{} }),
	"label":        decodeLabel,
	"jump":         decodeJump,
	"call":         decodeCall,
	"stop":         plain(func() flow.Command { return &commands.Stop{} }),
	"stop-block":   decodeStopBlock,
	"wait":         decodeWait,
	"yield":        plain(func() flow.Command { return &commands.Yield{} }),
	"set":          decodeSet,
	"reset":        decodeReset,
	"send-message": decodeSendMessage,
	"log":          decodeLog,
	"comment":      decodeComment,
	"effect":       decodeEffect,
	"save-point":   decodeSavePoint,
}

// Kinds lists the command kinds a document may use.
func Kinds() []string {
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func plain(mk func() flow.Command) kindFunc {
	return func(*decoder, toml.Primitive) (flow.Command, error) { return mk(), nil }
}

// decoder carries what command decoding needs from the enclosing document:
// the metadata for PrimitiveDecode and the declared variable types, used to
// type literal operands.
type decoder struct {
	md    toml.MetaData
	types map[string]variable.Type
}

func (d *decoder) decode(kind string, p toml.Primitive) (flow.Command, error) {
	fn, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	return fn(d, p)
}

// operand types raw for a command touching key. The declared type wins;
// undeclared keys (globals declared elsewhere) take the literal's own type.
func (d *decoder) operand(key string, raw any) (variable.Value, error) {
	t, ok := d.types[key]
	if !ok {
		t = inferType(raw)
	}
	if t == variable.TypeNone {
		return variable.Value{}, fmt.Errorf("cannot infer a type for %v (%T)", raw, raw)
	}
	return variable.Coerce(t, raw)
}

func inferType(raw any) variable.Type {
	switch x := raw.(type) {
	case bool:
		return variable.TypeBoolean
	case int64, int:
		return variable.TypeInteger
	case float64:
		return variable.TypeFloat
	case string:
		return variable.TypeString
	case []any:
		switch len(x) {
		case 2:
			return variable.TypeVector2
		case 3:
			return variable.TypeVector3
		case 4:
			return variable.TypeColor
		}
	}
	return variable.TypeNone
}

// ---------------------------------------------------------------------------
// Conditions and loops
// ---------------------------------------------------------------------------

type conditionParams struct {
	Variable string `toml:"variable"`
	Op       string `toml:"op"`
	Value    any    `toml:"value"`
	Ref      string `toml:"ref"`
}

func (d *decoder) condition(p toml.Primitive) (commands.Condition, error) {
	var cp conditionParams
	if err := d.md.PrimitiveDecode(p, &cp); err != nil {
		return nil, err
	}
	op := variable.Equals
	if cp.Op != "" {
		var err error
		if op, err = variable.ParseCompareOperator(cp.Op); err != nil {
			return nil, err
		}
	}
	c := &commands.Compare{Key: cp.Variable, Op: op, Ref: cp.Ref}
	if cp.Ref == "" {
		if cp.Value == nil {
			return nil, fmt.Errorf("condition on %q needs value or ref", cp.Variable)
		}
		v, err := d.operand(cp.Variable, cp.Value)
		if err != nil {
			return nil, err
		}
		c.Value = v
	}
	return c, nil
}

func decodeIf(d *decoder, p toml.Primitive) (flow.Command, error) {
	c, err := d.condition(p)
	if err != nil {
		return nil, err
	}
	return &commands.If{Cond: c}, nil
}

func decodeElseIf(d *decoder, p toml.Primitive) (flow.Command, error) {
	c, err := d.condition(p)
	if err != nil {
		return nil, err
	}
	return &commands.ElseIf{Cond: c}, nil
}

func decodeWhile(d *decoder, p toml.Primitive) (flow.Command, error) {
	c, err := d.condition(p)
	if err != nil {
		return nil, err
	}
	return &commands.While{Cond: c}, nil
}

func decodeLoop(d *decoder, p toml.Primitive) (flow.Command, error) {
	var lp struct {
		From    int64  `toml:"from"`
		To      int64  `toml:"to"`
		Counter string `toml:"counter"`
	}
	if err := d.md.PrimitiveDecode(p, &lp); err != nil {
		return nil, err
	}
	return &commands.LoopRange{From: lp.From, To: lp.To, Counter: lp.Counter}, nil
}

// ---------------------------------------------------------------------------
// Jumps and calls
// ---------------------------------------------------------------------------

func decodeLabel(d *decoder, p toml.Primitive) (flow.Command, error) {
	var lp struct {
		Key string `toml:"key"`
	}
	if err := d.md.PrimitiveDecode(p, &lp); err != nil {
		return nil, err
	}
	return &commands.Label{Key: lp.Key}, nil
}

func decodeJump(d *decoder, p toml.Primitive) (flow.Command, error) {
	var jp struct {
		Label string `toml:"label"`
	}
	if err := d.md.PrimitiveDecode(p, &jp); err != nil {
		return nil, err
	}
	return &commands.Jump{Label: jp.Label}, nil
}

func decodeCall(d *decoder, p toml.Primitive) (flow.Command, error) {
	var cp struct {
		Flowchart string `toml:"flowchart"`
		Block     string `toml:"block"`
		Start     int    `toml:"start"`
		Mode      string `toml:"mode"`
	}
	if err := d.md.PrimitiveDecode(p, &cp); err != nil {
		return nil, err
	}
	mode, err := commands.ParseCallMode(cp.Mode)
	if err != nil {
		return nil, err
	}
	return &commands.Call{Flowchart: cp.Flowchart, Block: cp.Block, StartIndex: cp.Start, Mode: mode}, nil
}

func decodeStopBlock(d *decoder, p toml.Primitive) (flow.Command, error) {
	var sp struct {
		Flowchart string `toml:"flowchart"`
		Block     string `toml:"block"`
	}
	if err := d.md.PrimitiveDecode(p, &sp); err != nil {
		return nil, err
	}
	return &commands.StopBlock{Flowchart: sp.Flowchart, Block: sp.Block}, nil
}

func decodeWait(d *decoder, p toml.Primitive) (flow.Command, error) {
	var wp struct {
		Duration string `toml:"duration"`
	}
	if err := d.md.PrimitiveDecode(p, &wp); err != nil {
		return nil, err
	}
	dur, err := time.ParseDuration(wp.Duration)
	if err != nil {
		return nil, err
	}
	if dur < 0 {
		return nil, fmt.Errorf("negative duration %s", wp.Duration)
	}
	return &commands.Wait{Duration: dur}, nil
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

func decodeSet(d *decoder, p toml.Primitive) (flow.Command, error) {
	var sp struct {
		Variable string `toml:"variable"`
		Op       string `toml:"op"`
		Value    any    `toml:"value"`
		Ref      string `toml:"ref"`
	}
	if err := d.md.PrimitiveDecode(p, &sp); err != nil {
		return nil, err
	}
	op, err := variable.ParseSetOperator(sp.Op)
	if err != nil {
		return nil, err
	}
	c := &commands.SetVariable{Key: sp.Variable, Op: op, Ref: sp.Ref}
	if sp.Ref == "" {
		if sp.Value == nil {
			return nil, fmt.Errorf("set %q needs value or ref", sp.Variable)
		}
		if c.Value, err = d.operand(sp.Variable, sp.Value); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func decodeReset(d *decoder, p toml.Primitive) (flow.Command, error) {
	var rp struct {
		Commands  bool `toml:"commands"`
		Variables bool `toml:"variables"`
	}
	if err := d.md.PrimitiveDecode(p, &rp); err != nil {
		return nil, err
	}
	return &commands.Reset{Commands: rp.Commands, Variables: rp.Variables}, nil
}

// ---------------------------------------------------------------------------
// Messages and effects
// ---------------------------------------------------------------------------

func decodeSendMessage(d *decoder, p toml.Primitive) (flow.Command, error) {
	var mp struct {
		Message string `toml:"message"`
		All     bool   `toml:"all"`
	}
	if err := d.md.PrimitiveDecode(p, &mp); err != nil {
		return nil, err
	}
	return &commands.SendMessage{Message: mp.Message, All: mp.All}, nil
}

func decodeLog(d *decoder, p toml.Primitive) (flow.Command, error) {
	var lp struct {
		Level string `toml:"level"`
		Text  string `toml:"text"`
	}
	if err := d.md.PrimitiveDecode(p, &lp); err != nil {
		return nil, err
	}
	return &commands.Log{Level: lp.Level, Text: lp.Text}, nil
}

func decodeComment(d *decoder, p toml.Primitive) (flow.Command, error) {
	var cp struct {
		Text string `toml:"text"`
	}
	if err := d.md.PrimitiveDecode(p, &cp); err != nil {
		return nil, err
	}
	return &commands.Comment{Text: cp.Text}, nil
}

func decodeEffect(d *decoder, p toml.Primitive) (flow.Command, error) {
	var ep struct {
		Name string         `toml:"name"`
		Args map[string]any `toml:"args"`
		Wait bool           `toml:"wait"`
	}
	if err := d.md.PrimitiveDecode(p, &ep); err != nil {
		return nil, err
	}
	return &commands.Effect{Name: ep.Name, Args: ep.Args, Wait: ep.Wait}, nil
}

func decodeSavePoint(d *decoder, p toml.Primitive) (flow.Command, error) {
	var sp struct {
		Key         string `toml:"key"`
		Description string `toml:"description"`
	}
	if err := d.md.PrimitiveDecode(p, &sp); err != nil {
		return nil, err
	}
	return &commands.SavePoint{Key: sp.Key, Description: sp.Description}, nil
}

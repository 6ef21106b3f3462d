package flow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/blockflow/variable"
)

var (
	ErrDuplicateBlock = errors.New("duplicate block name")
	ErrBadTrigger     = errors.New("invalid trigger")
)

// ---------------------------------------------------------------------------
// Triggers
// ---------------------------------------------------------------------------

type TriggerKind int

const (
	TriggerNone TriggerKind = iota
	TriggerStart
	TriggerMessage
)

// Trigger binds a block to a flowchart event.
type Trigger struct {
	Kind    TriggerKind
	Message string
}

// ParseTrigger parses "", "start" or "message:<name>".
func ParseTrigger(s string) (Trigger, error) {
	switch {
	case s == "":
		return Trigger{}, nil
	case s == "start":
		return Trigger{Kind: TriggerStart}, nil
	case strings.HasPrefix(s, "message:"):
		msg := strings.TrimPrefix(s, "message:")
		if msg == "" {
			return Trigger{}, fmt.Errorf("%w: empty message in %q", ErrBadTrigger, s)
		}
		return Trigger{Kind: TriggerMessage, Message: msg}, nil
	}
	return Trigger{}, fmt.Errorf("%w: %q", ErrBadTrigger, s)
}

func (t Trigger) String() string {
	switch t.Kind {
	case TriggerStart:
		return "start"
	case TriggerMessage:
		return "message:" + t.Message
	}
	return ""
}

// ---------------------------------------------------------------------------
// Flowchart
// ---------------------------------------------------------------------------

// Flowchart owns a set of uniquely named blocks and variables.
type Flowchart struct {
	name     string
	blocks   []*Block
	byName   map[string]*Block
	vars     *variable.Table
	services *Services
	started  bool
}

// New returns an empty flowchart registered with services. A nil services
// gets a private set.
func New(name string, services *Services) *Flowchart {
	if services == nil {
		services = NewServices()
	}
	f := &Flowchart{
		name:     name,
		byName:   make(map[string]*Block),
		vars:     variable.NewTable(),
		services: services,
	}
	services.register(f)
	return f
}

func (f *Flowchart) Name() string               { return f.name }
func (f *Flowchart) Services() *Services        { return f.services }
func (f *Flowchart) Variables() *variable.Table { return f.vars }

// DeclareVariable adds v. Global variables are bound to the shared cell
// for their key in the services' global table.
func (f *Flowchart) DeclareVariable(v *variable.Variable) error {
	if v.Scope() == variable.Global && f.services.Globals != nil {
		shared := f.services.Globals.GetOrAdd(v.Key(), v.Start())
		if err := v.Bind(shared); err != nil {
			return fmt.Errorf("flowchart %s: %w", f.name, err)
		}
	}
	if err := f.vars.Declare(v); err != nil {
		return fmt.Errorf("flowchart %s: %w", f.name, err)
	}
	return nil
}

// Variable returns the flowchart variable with key.
func (f *Flowchart) Variable(key string) (*variable.Variable, bool) {
	return f.vars.Lookup(key)
}

// SubstituteVariables expands {$key} tokens with flowchart variables.
func (f *Flowchart) SubstituteVariables(text string) string {
	return variable.Substitute(text, f.vars.Lookup)
}

// AddBlock attaches b. Block names must be unique.
func (f *Flowchart) AddBlock(b *Block) error {
	if _, ok := f.byName[b.name]; ok {
		return fmt.Errorf("flowchart %s: %w: %q", f.name, ErrDuplicateBlock, b.name)
	}
	if b.flowchart != nil && b.flowchart != f {
		return fmt.Errorf("flowchart %s: block %q already belongs to %s", f.name, b.name, b.flowchart.name)
	}
	b.flowchart = f
	f.blocks = append(f.blocks, b)
	f.byName[b.name] = b
	return nil
}

// NewBlock creates, attaches and returns a block.
func (f *Flowchart) NewBlock(name string, cmds ...Command) (*Block, error) {
	b := NewBlock(name, cmds...)
	if err := f.AddBlock(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Block returns the block called name, or nil.
func (f *Flowchart) Block(name string) *Block { return f.byName[name] }

// Blocks returns the blocks in insertion order.
func (f *Flowchart) Blocks() []*Block { return append([]*Block(nil), f.blocks...) }

// ExecuteBlock starts the named block at its first command.
func (f *Flowchart) ExecuteBlock(name string) bool {
	b := f.Block(name)
	if b == nil {
		log.Warningf("%s: no block named %q", f.name, name)
		return false
	}
	return f.ExecuteBlockAt(b, 0, nil)
}

// ExecuteBlockAt starts b at index; onComplete runs when the run ends.
func (f *Flowchart) ExecuteBlockAt(b *Block, index int, onComplete func()) bool {
	if b == nil {
		return false
	}
	if b.flowchart != f {
		log.Warningf("%s: block %q belongs to another flowchart", f.name, b.name)
		return false
	}
	return b.ExecuteWith(index, onComplete)
}

// StopBlock stops the named block. It reports whether the block was running.
func (f *Flowchart) StopBlock(name string) bool {
	b := f.Block(name)
	if b == nil || !b.executing {
		return false
	}
	b.Stop()
	return true
}

func (f *Flowchart) StopAllBlocks() {
	for _, b := range f.blocks {
		b.Stop()
	}
}

// ExecutingBlocks returns the blocks currently running.
func (f *Flowchart) ExecutingBlocks() []*Block {
	var out []*Block
	for _, b := range f.blocks {
		if b.executing {
			out = append(out, b)
		}
	}
	return out
}

func (f *Flowchart) HasExecutingBlocks() bool {
	for _, b := range f.blocks {
		if b.executing {
			return true
		}
	}
	return false
}

// SendMessage starts every idle block whose trigger listens for msg and
// returns how many were started.
func (f *Flowchart) SendMessage(msg string) int {
	n := 0
	for _, b := range f.blocks {
		if b.trigger.Kind != TriggerMessage || b.trigger.Message != msg {
			continue
		}
		if b.executing {
			log.Debugf("%s: message %q ignored, already executing", b.location(), msg)
			continue
		}
		if b.Execute(0) {
			n++
		}
	}
	return n
}

// Start fires start triggers. It does nothing after the first call or after
// state has been restored into the flowchart.
func (f *Flowchart) Start() int {
	if f.started {
		return 0
	}
	f.started = true
	n := 0
	for _, b := range f.blocks {
		if b.trigger.Kind == TriggerStart && b.Execute(0) {
			n++
		}
	}
	return n
}

func (f *Flowchart) Started() bool { return f.started }

// MarkStarted suppresses start triggers, as a restore does.
func (f *Flowchart) MarkStarted() { f.started = true }

// Reset reinitializes commands (OnReset) and/or variables (start values).
func (f *Flowchart) Reset(commands, variables bool) {
	if commands {
		for _, b := range f.blocks {
			b.resetCommands()
		}
	}
	if variables {
		f.vars.Reset()
		for _, b := range f.blocks {
			if b.locals != nil {
				b.locals.Reset()
			}
		}
	}
}

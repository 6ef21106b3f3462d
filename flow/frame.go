package flow

import (
	"fmt"

	"github.com/chazu/blockflow/variable"
)

// ---------------------------------------------------------------------------
// Frame: one activation of one command
// ---------------------------------------------------------------------------

// Frame is handed to Command.Enter. It is only meaningful for the duration
// of that activation; keep the Token, not the Frame, for later resumption.
type Frame struct {
	block   *Block
	index   int
	step    uint64
	resumed bool
}

func (f *Frame) Block() *Block { return f.block }

// Flowchart returns the owning flowchart, or nil for a detached block.
func (f *Frame) Flowchart() *Flowchart { return f.block.flowchart }

func (f *Frame) Services() *Services { return f.block.services() }

func (f *Frame) Index() int { return f.index }

func (f *Frame) Command() Command { return f.block.commands[f.index] }

func (f *Frame) Indent() int { return f.Command().meta().indent }

// PreviousIndex is the index of the command entered before this one in the
// current run, or -1.
func (f *Frame) PreviousIndex() int { return f.block.previous }

// Resumed reports whether this activation is the first command entered
// after the block was resumed from saved state.
func (f *Frame) Resumed() bool { return f.resumed }

// Token returns the handle used to resume this activation after Suspend.
func (f *Frame) Token() Token {
	return Token{block: f.block, index: f.index, step: f.step}
}

// Generation identifies the current run of the block. It changes every
// time the block is started.
func (f *Frame) Generation() uint64 { return f.block.gen }

// Variable looks key up in the block's local variables, then in the
// flowchart's.
func (f *Frame) Variable(key string) (*variable.Variable, bool) {
	return f.block.lookupVariable(key)
}

// Substitute expands {$key} tokens using Variable.
func (f *Frame) Substitute(text string) string {
	return variable.Substitute(text, f.Variable)
}

// Location identifies the command in log output.
func (f *Frame) Location() string {
	return fmt.Sprintf("%s#%d(%s)", f.block.location(), f.index, CommandName(f.Command()))
}

// ---------------------------------------------------------------------------
// Token: resume handle
// ---------------------------------------------------------------------------

// Token resumes one suspended activation. Tokens go stale as soon as the
// block moves past the activation, is stopped, or is restarted; calls on a
// stale token are silently dropped.
type Token struct {
	block *Block
	index int
	step  uint64
}

// Valid reports whether the token still refers to the parked activation.
func (t Token) Valid() bool {
	return t.block != nil && t.block.executing && t.block.step == t.step
}

// Continue advances to the command after the suspended one.
func (t Token) Continue() { t.resume(Next()) }

// ContinueAt continues at an explicit index.
func (t Token) ContinueAt(index int) { t.resume(Goto(index)) }

// Stop stops the block.
func (t Token) Stop() { t.resume(Stop()) }

// Fail logs err and advances.
func (t Token) Fail(err error) { t.resume(Fail(err)) }

func (t Token) resume(r Result) {
	if t.block == nil {
		return
	}
	t.block.resume(t, r)
}

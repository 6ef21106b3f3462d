package flow

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/blockflow/variable"
)

var log = commonlog.GetLogger("blockflow.flow")

// ---------------------------------------------------------------------------
// Block
// ---------------------------------------------------------------------------

// Block is an ordered list of commands with a single cursor.
type Block struct {
	name        string
	description string
	trigger     Trigger
	flowchart   *Flowchart
	commands    []Command
	locals      *variable.Table
	jt          *jumpTable

	executing      bool
	active         int // index of the command entered last, -1 when idle
	previous       int // index entered before active, -1 at run start
	executionCount int

	// step identifies the current activation; every entered command,
	// stop and yield moves it on, which makes outstanding tokens stale.
	step uint64
	// gen identifies the current run.
	gen       uint64
	resumeAt  int // index whose activation reports Frame.Resumed, or -1
	entering  uint64
	pending   *Result
	cancel    func()
	yieldAt   int
	completed []func()
	suspended bool // active command returned Suspend and has not resumed

	// savedLoops holds the loops enclosing the cursor of a resumed run
	// until each sees its first back-edge.
	savedLoops map[int]bool
}

// NewBlock returns a detached block holding cmds.
func NewBlock(name string, cmds ...Command) *Block {
	b := &Block{name: name, active: -1, previous: -1, resumeAt: -1, yieldAt: -1}
	b.Add(cmds...)
	return b
}

func (b *Block) Name() string { return b.name }

func (b *Block) Description() string     { return b.description }
func (b *Block) SetDescription(d string) { b.description = d }

func (b *Block) Trigger() Trigger     { return b.trigger }
func (b *Block) SetTrigger(t Trigger) { b.trigger = t }

// Flowchart returns the owning flowchart, or nil.
func (b *Block) Flowchart() *Flowchart { return b.flowchart }

func (b *Block) services() *Services {
	if b.flowchart != nil && b.flowchart.services != nil {
		return b.flowchart.services
	}
	return detached
}

func (b *Block) location() string {
	if b.flowchart != nil {
		return b.flowchart.name + ":" + b.name
	}
	return b.name
}

// ---------------------------------------------------------------------------
// Command list
// ---------------------------------------------------------------------------

func (b *Block) Len() int { return len(b.commands) }

// Command returns the command at i, or nil when out of range.
func (b *Block) Command(i int) Command {
	if i < 0 || i >= len(b.commands) {
		return nil
	}
	return b.commands[i]
}

// Commands returns a copy of the command list.
func (b *Block) Commands() []Command {
	return append([]Command(nil), b.commands...)
}

// Add appends commands to the block.
func (b *Block) Add(cmds ...Command) {
	b.commands = append(b.commands, cmds...)
	b.reindex()
}

// Insert places c at index i, shifting later commands.
func (b *Block) Insert(i int, c Command) {
	if i < 0 {
		i = 0
	}
	if i > len(b.commands) {
		i = len(b.commands)
	}
	b.commands = append(b.commands, nil)
	copy(b.commands[i+1:], b.commands[i:])
	b.commands[i] = c
	b.reindex()
}

// Remove detaches and returns the command at i.
func (b *Block) Remove(i int) Command {
	if i < 0 || i >= len(b.commands) {
		return nil
	}
	c := b.commands[i]
	b.commands = append(b.commands[:i], b.commands[i+1:]...)
	c.meta().block = nil
	b.reindex()
	return c
}

func (b *Block) reindex() {
	for i, c := range b.commands {
		m := c.meta()
		m.index = i
		m.block = b
	}
	b.jt = nil
}

// ---------------------------------------------------------------------------
// Structure queries
// ---------------------------------------------------------------------------

func (b *Block) jumps() *jumpTable {
	if b.jt == nil {
		b.jt = compileJumpTable(b.commands)
		for _, err := range b.jt.problems {
			log.Warningf("%s: %v", b.location(), err)
		}
	}
	return b.jt
}

func (b *Block) at(t []int, i int) int {
	if i < 0 || i >= len(t) {
		return -1
	}
	return t[i]
}

// NextBranch returns the ElseIf, Else or End that closes the condition at
// i, or -1.
func (b *Block) NextBranch(i int) int { return b.at(b.jumps().nextBranch, i) }

// MatchingEnd returns the End that closes the opener at i, or -1.
func (b *Block) MatchingEnd(i int) int { return b.at(b.jumps().nextEnd, i) }

// LoopOpener returns the loop closed by the End at i, or -1.
func (b *Block) LoopOpener(i int) int { return b.at(b.jumps().loopOf, i) }

// EnclosingLoop returns the loop a Break at i leaves, or -1.
func (b *Block) EnclosingLoop(i int) int { return b.at(b.jumps().breakLoop, i) }

// LabelIndex returns the index of the first enabled label with key, or -1.
func (b *Block) LabelIndex(key string) int {
	if i, ok := b.jumps().labels[key]; ok {
		return i
	}
	return -1
}

// Validate reports structural problems and command-level authoring errors.
func (b *Block) Validate() error {
	jt := b.jumps()
	errs := append([]error(nil), jt.problems...)
	for i, c := range b.commands {
		v, ok := c.(Validator)
		if !ok || transparent(c) {
			continue
		}
		if err := v.Validate(b); err != nil {
			errs = append(errs, fmt.Errorf("#%d %s: %w", i, CommandName(c), err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("block %s: %w", b.name, errors.Join(errs...))
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

// Locals returns the block-local variable table, creating it on first use.
func (b *Block) Locals() *variable.Table {
	if b.locals == nil {
		b.locals = variable.NewTable()
	}
	return b.locals
}

// LocalVariables returns the block-local variables without creating the
// table.
func (b *Block) LocalVariables() []*variable.Variable { return b.locals.All() }

func (b *Block) lookupVariable(key string) (*variable.Variable, bool) {
	if v, ok := b.locals.Lookup(key); ok {
		return v, true
	}
	if b.flowchart != nil {
		return b.flowchart.Variable(key)
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// State
// ---------------------------------------------------------------------------

func (b *Block) IsExecuting() bool { return b.executing }

// ActiveIndex is the index of the current command, or -1 when idle.
func (b *Block) ActiveIndex() int {
	if !b.executing {
		return -1
	}
	return b.active
}

// PreviousIndex is the index entered before the active command, or -1.
func (b *Block) PreviousIndex() int { return b.previous }

// Cursor is the index the block would continue from after a restore: the
// parked command, or the command a yielded pass resumes at.
func (b *Block) Cursor() int {
	if !b.executing {
		return -1
	}
	if b.yieldAt >= 0 {
		return b.yieldAt
	}
	return b.active
}

// ResumePrevious is the previous index matching Cursor.
func (b *Block) ResumePrevious() int {
	if b.yieldAt >= 0 {
		return b.active
	}
	return b.previous
}

func (b *Block) ExecutionCount() int     { return b.executionCount }
func (b *Block) SetExecutionCount(n int) { b.executionCount = n }

// Generation identifies the current run; it changes on every start.
func (b *Block) Generation() uint64 { return b.gen }

// ClaimResumedLoop reports whether the loop at i enclosed the saved cursor
// of a resumed run and has not seen a back-edge since. It is true at most
// once per loop per run.
func (b *Block) ClaimResumedLoop(i int) bool {
	if !b.executing || !b.savedLoops[i] {
		return false
	}
	delete(b.savedLoops, i)
	return true
}

// loopsAround returns the loops whose body contains i.
func (b *Block) loopsAround(i int) map[int]bool {
	jt := b.jumps()
	var out map[int]bool
	for j := 0; j < i && j < len(b.commands); j++ {
		c := b.commands[j]
		if transparent(c) || RoleOf(c) != RoleLoop {
			continue
		}
		if end := jt.nextEnd[j]; end >= i {
			if out == nil {
				out = make(map[int]bool)
			}
			out[j] = true
		}
	}
	return out
}

// Reset runs OnReset on every command.
func (b *Block) Reset() { b.resetCommands() }

func (b *Block) flowchartName() string {
	if b.flowchart != nil {
		return b.flowchart.name
	}
	return ""
}

func (b *Block) eventWith(r EndReason) BlockEvent {
	return BlockEvent{
		Flowchart:      b.flowchartName(),
		Block:          b.name,
		Index:          b.active,
		ExecutionCount: b.executionCount,
		Reason:         r,
	}
}

func (b *Block) resetCommands() {
	for _, c := range b.commands {
		if r, ok := c.(Resetter); ok {
			r.OnReset()
		}
	}
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Execute starts the block at index. It returns false, and logs a warning,
// if the block is already executing.
func (b *Block) Execute(index int) bool {
	return b.ExecuteWith(index, nil)
}

// ExecuteWith is Execute with a callback run when this run completes or is
// stopped.
func (b *Block) ExecuteWith(index int, onComplete func()) bool {
	if b.executing {
		log.Warningf("%s: already executing, ignoring start at #%d", b.location(), index)
		return false
	}
	b.executionCount++
	b.start(index, -1, false, onComplete)
	return true
}

// Resume restarts the block at index as the continuation of a saved run.
// previous is the index entered before the save. The command at index sees
// Frame.Resumed() == true.
func (b *Block) Resume(index, previous int) bool {
	if b.executing {
		log.Warningf("%s: already executing, ignoring resume at #%d", b.location(), index)
		return false
	}
	b.start(index, previous, true, nil)
	return true
}

func (b *Block) start(index, previous int, resumed bool, onComplete func()) {
	b.jumps()
	b.executing = true
	b.gen++
	b.step++
	b.active = previous
	b.previous = -1
	b.yieldAt = -1
	b.pending = nil
	b.cancel = nil
	b.suspended = false
	b.resumeAt = -1
	b.savedLoops = nil
	if resumed {
		b.resumeAt = index
		b.savedLoops = b.loopsAround(index)
	}
	if onComplete != nil {
		b.completed = append(b.completed, onComplete)
	}
	step := b.step
	b.services().Signals.blockStarted(b.eventWith(EndCompleted))
	if !b.executing || b.step != step {
		return
	}
	b.run(index)
}

// Stop stops the block. Stopping an idle block does nothing.
func (b *Block) Stop() {
	if !b.executing {
		return
	}
	cancel := b.cancel
	parked := b.suspended
	b.cancel = nil
	b.suspended = false
	b.executing = false
	b.step++

	if cancel != nil {
		cancel()
	}
	if parked {
		if s, ok := b.Command(b.active).(Stopper); ok {
			s.OnStopExecuting()
		}
	}
	b.finish(EndStopped)
}

func (b *Block) finish(reason EndReason) {
	ev := b.eventWith(reason)
	b.executing = false
	b.step++
	b.active = -1
	b.yieldAt = -1
	b.resumeAt = -1
	b.cancel = nil
	b.suspended = false
	b.pending = nil
	callbacks := b.completed
	b.completed = nil

	b.services().Signals.blockStopped(ev)
	for _, fn := range callbacks {
		fn()
	}
}

// resume delivers a token's result. Resumes that arrive while the
// activation is still inside Enter are queued for the dispatch loop.
func (b *Block) resume(t Token, r Result) {
	if !t.Valid() {
		log.Debugf("%s: dropping stale resume of #%d", b.location(), t.index)
		return
	}
	if r.kind == resultSuspend {
		return
	}
	if b.entering == t.step {
		if b.pending == nil {
			b.pending = &r
		}
		return
	}
	b.cancel = nil
	b.suspended = false
	if next, ok := b.follow(t.index, r); ok {
		b.run(next)
	}
}

// follow turns a result into the next index to dispatch.
func (b *Block) follow(index int, r Result) (int, bool) {
	if r.err != nil {
		log.Warningf("%s#%d(%s): %v", b.location(), index, CommandName(b.commands[index]), r.err)
	}
	switch r.kind {
	case resultStop:
		b.Stop()
		return 0, false
	case resultGoto:
		return r.next, true
	}
	return index + 1, true
}

func (b *Block) skipTransparent(i int) int {
	for i >= 0 && i < len(b.commands) && transparent(b.commands[i]) {
		i++
	}
	return i
}

// run is the trampoline. It dispatches commands until one suspends, the
// block stops, or the cursor runs off the end. Synchronous continuation
// chains loop here instead of recursing.
func (b *Block) run(next int) {
	svc := b.services()
	steps := 0
	for {
		i := b.skipTransparent(next)
		if i < 0 {
			log.Warningf("%s: invalid command index %d, stopping", b.location(), next)
			b.Stop()
			return
		}
		if i >= len(b.commands) {
			b.finish(EndCompleted)
			return
		}
		if svc.MaxInstantSteps > 0 && steps >= svc.MaxInstantSteps && b.yield(svc, i) {
			return
		}
		steps++

		cmd := b.commands[i]
		b.previous = b.active
		b.active = i
		b.step++
		step := b.step
		f := &Frame{block: b, index: i, step: step, resumed: b.resumeAt == i}
		b.resumeAt = -1

		svc.Signals.commandEntered(CommandEvent{Flowchart: b.flowchartName(), Block: b.name, Index: i, Command: cmd})
		if !b.executing || b.step != step {
			return
		}

		b.entering = step
		r := b.enter(cmd, f)
		b.entering = 0
		if !b.executing || b.step != step {
			if r.kind == resultSuspend && r.cancel != nil {
				r.cancel()
			}
			return
		}

		if r.kind == resultSuspend {
			if b.pending == nil {
				b.cancel = r.cancel
				b.suspended = true
				return
			}
			r = *b.pending
		}
		b.pending = nil

		var ok bool
		if next, ok = b.follow(i, r); !ok {
			return
		}
	}
}

func (b *Block) enter(c Command, f *Frame) (r Result) {
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("%s: panic in Enter: %v", f.Location(), p)
			r = Next()
		}
	}()
	return c.Enter(f)
}

// yield parks the block until the next tick, to be resumed at i.
func (b *Block) yield(svc *Services, i int) bool {
	if svc.Scheduler == nil {
		return false
	}
	b.step++
	step := b.step
	b.yieldAt = i
	log.Debugf("%s: instant step budget reached, yielding at #%d", b.location(), i)
	b.cancel = svc.Scheduler.NextTick(func() {
		if !b.executing || b.step != step {
			return
		}
		b.cancel = nil
		b.yieldAt = -1
		b.run(i)
	})
	return true
}

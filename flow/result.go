package flow

import "fmt"

type resultKind uint8

const (
	resultNext resultKind = iota
	resultGoto
	resultStop
	resultSuspend
)

// Result is the control transfer a command requests from Enter.
type Result struct {
	kind   resultKind
	next   int
	cancel func()
	err    error
}

// Next advances to the command after the current one.
func Next() Result { return Result{kind: resultNext} }

// Goto continues at an explicit command index.
func Goto(index int) Result { return Result{kind: resultGoto, next: index} }

// Stop terminates the owning block.
func Stop() Result { return Result{kind: resultStop} }

// Suspend parks the cursor on the current command until a Token obtained
// from the Frame resumes it. cancel, if non-nil, is called once if the
// block is stopped while parked.
func Suspend(cancel func()) Result { return Result{kind: resultSuspend, cancel: cancel} }

// Fail logs err against the current command and advances as Next does.
// Command failures never stop the block.
func Fail(err error) Result { return Result{kind: resultNext, err: err} }

func (r Result) IsSuspend() bool { return r.kind == resultSuspend }
func (r Result) IsStop() bool    { return r.kind == resultStop }
func (r Result) Err() error      { return r.err }

// Target returns the explicit index of a Goto result.
func (r Result) Target() (int, bool) {
	return r.next, r.kind == resultGoto
}

func (r Result) String() string {
	switch r.kind {
	case resultGoto:
		return fmt.Sprintf("Goto(%d)", r.next)
	case resultStop:
		return "Stop"
	case resultSuspend:
		return "Suspend"
	}
	if r.err != nil {
		return fmt.Sprintf("Fail(%v)", r.err)
	}
	return "Next"
}

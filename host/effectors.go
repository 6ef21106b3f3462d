package host

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chazu/blockflow/flow"
	"github.com/chazu/blockflow/sched"
)

// PrintEffector writes effect calls as lines of text. A call with a "text"
// argument prints as "who: text" (or just the text); any other call prints
// its name and sorted arguments.
type PrintEffector struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrintEffector(w io.Writer) *PrintEffector { return &PrintEffector{w: w} }

func (p *PrintEffector) Invoke(call flow.EffectCall, done func(error)) func() {
	p.mu.Lock()
	_, err := fmt.Fprintln(p.w, formatCall(call))
	p.mu.Unlock()
	done(err)
	return nil
}

func formatCall(call flow.EffectCall) string {
	if text, ok := call.Args["text"]; ok {
		if who, ok := call.Args["who"]; ok && who != "" {
			return fmt.Sprintf("%v: %v", who, text)
		}
		return fmt.Sprint(text)
	}
	keys := make([]string, 0, len(call.Args))
	for k := range call.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(call.Name)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, call.Args[k])
	}
	return sb.String()
}

// DelayEffector completes each call after a fixed delay on the clock, or
// after the call's "seconds" argument when present. It stands in for
// timed effects such as fades and camera moves.
type DelayEffector struct {
	Clock   *sched.Clock
	Default time.Duration
}

func (d DelayEffector) Invoke(call flow.EffectCall, done func(error)) func() {
	dur := d.Default
	switch s := call.Args["seconds"].(type) {
	case float64:
		dur = time.Duration(s * float64(time.Second))
	case int64:
		dur = time.Duration(s) * time.Second
	}
	return d.Clock.After(dur, func() { done(nil) })
}

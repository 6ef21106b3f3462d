package flow

import (
	"sort"
	"time"

	"github.com/chazu/blockflow/variable"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// Scheduler delivers delayed callbacks on the engine's goroutine.
type Scheduler interface {
	// After runs fn once d has elapsed. The returned func cancels it.
	After(d time.Duration, fn func()) (cancel func())
	// NextTick runs fn on the next tick.
	NextTick(fn func()) (cancel func())
}

// EffectCall describes one request to an external effector.
type EffectCall struct {
	Name     string
	Args     map[string]any
	Location string
}

// Effector is a black-box side effect (audio, fades, UI text, camera). It
// calls done exactly once when the effect completes; the returned cancel
// func, if non-nil, aborts it.
type Effector interface {
	Invoke(call EffectCall, done func(error)) (cancel func())
}

// EffectorFunc adapts a function to Effector.
type EffectorFunc func(call EffectCall, done func(error)) (cancel func())

func (fn EffectorFunc) Invoke(call EffectCall, done func(error)) func() {
	return fn(call, done)
}

// Saver persists the state of every loaded flowchart under key.
type Saver interface {
	SavePoint(key, description string) error
}

// ---------------------------------------------------------------------------
// Services
// ---------------------------------------------------------------------------

// Services is the environment shared by the flowcharts of one runtime.
// Global variables, shared slots and effectors live here rather than in
// package state, so several runtimes can coexist in one process.
type Services struct {
	Scheduler Scheduler
	Globals   *variable.Table
	Signals   *Signals
	Saver     Saver

	// MaxInstantSteps bounds how many commands one dispatch pass may enter
	// before the block yields to the next tick. Zero disables the bound.
	MaxInstantSteps int

	effectors  map[string]Effector
	shared     map[string]any
	flowcharts map[string]*Flowchart
}

// NewServices returns Services with an empty global table and signals.
func NewServices() *Services {
	return &Services{
		Globals:    variable.NewTable(),
		Signals:    &Signals{},
		effectors:  make(map[string]Effector),
		shared:     make(map[string]any),
		flowcharts: make(map[string]*Flowchart),
	}
}

func (s *Services) RegisterEffector(name string, e Effector) {
	if s.effectors == nil {
		s.effectors = make(map[string]Effector)
	}
	s.effectors[name] = e
}

func (s *Services) Effector(name string) (Effector, bool) {
	e, ok := s.effectors[name]
	return e, ok
}

// EffectorNames returns the registered effector names, sorted.
func (s *Services) EffectorNames() []string {
	names := make([]string, 0, len(s.effectors))
	for n := range s.effectors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Shared returns a value stored by SetShared.
func (s *Services) Shared(key string) (any, bool) {
	v, ok := s.shared[key]
	return v, ok
}

func (s *Services) SetShared(key string, v any) {
	if s.shared == nil {
		s.shared = make(map[string]any)
	}
	s.shared[key] = v
}

func (s *Services) ClearShared(key string) {
	delete(s.shared, key)
}

// Flowchart returns the flowchart registered under name, or nil.
func (s *Services) Flowchart(name string) *Flowchart {
	return s.flowcharts[name]
}

// Flowcharts returns every registered flowchart, sorted by name.
func (s *Services) Flowcharts() []*Flowchart {
	out := make([]*Flowchart, 0, len(s.flowcharts))
	for _, f := range s.flowcharts {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Forget unregisters the flowchart called name, stopping its blocks.
func (s *Services) Forget(name string) {
	if f, ok := s.flowcharts[name]; ok {
		f.StopAllBlocks()
		delete(s.flowcharts, name)
	}
}

func (s *Services) register(f *Flowchart) {
	if s.flowcharts == nil {
		s.flowcharts = make(map[string]*Flowchart)
	}
	if old, ok := s.flowcharts[f.name]; ok && old != f {
		log.Warningf("flowchart %q replaced", f.name)
		old.StopAllBlocks()
	}
	s.flowcharts[f.name] = f
}

// detached is used by blocks that do not belong to a flowchart.
var detached = &Services{}

// Package host runs flowcharts: it owns the clock, the loaded scene and the
// save manager, and serializes access to them through a Worker.
package host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/blockflow/document"
	"github.com/chazu/blockflow/flow"
	"github.com/chazu/blockflow/save"
	"github.com/chazu/blockflow/sched"
)

var log = commonlog.GetLogger("blockflow.host")

// DefaultScene holds documents that do not name a scene.
const DefaultScene = "main"

var ErrUnknownScene = errors.New("unknown scene")

// Options configures a Runtime.
type Options struct {
	// MaxInstantSteps bounds one dispatch pass; zero disables the bound.
	MaxInstantSteps int
	// Store holds save slots. Nil keeps saves in memory.
	Store save.Store
}

// Runtime is one running story: documents grouped by scene, the flowcharts
// of the loaded scene, a frame clock and a save manager. It is not safe for
// concurrent use; share it through a Worker.
type Runtime struct {
	svc    *flow.Services
	clock  *sched.Clock
	saves  *save.Manager
	scenes map[string][]*document.Document
	scene  string
	loaded []string
}

// New returns an empty runtime.
func New(opts Options) *Runtime {
	store := opts.Store
	if store == nil {
		store = save.NewMemoryStore()
	}
	r := &Runtime{
		svc:    flow.NewServices(),
		clock:  sched.NewClock(),
		scenes: make(map[string][]*document.Document),
	}
	r.svc.Scheduler = r.clock
	r.svc.Saver = r
	r.svc.MaxInstantSteps = opts.MaxInstantSteps
	r.saves = save.NewManager(store, r.svc)
	return r
}

func (r *Runtime) Services() *flow.Services { return r.svc }
func (r *Runtime) Clock() *sched.Clock      { return r.clock }
func (r *Runtime) Saves() *save.Manager     { return r.saves }

// Scene is the name of the loaded scene, or "" before LoadScene.
func (r *Runtime) Scene() string { return r.scene }

// RegisterEffector makes e available to Effect commands as name.
func (r *Runtime) RegisterEffector(name string, e flow.Effector) {
	r.svc.RegisterEffector(name, e)
}

// AddDocuments files docs under their scenes. Documents without a scene go
// to DefaultScene.
func (r *Runtime) AddDocuments(docs ...*document.Document) {
	for _, d := range docs {
		scene := d.Scene
		if scene == "" {
			scene = DefaultScene
		}
		r.scenes[scene] = append(r.scenes[scene], d)
	}
}

// Scenes lists the known scenes, sorted.
func (r *Runtime) Scenes() []string {
	out := make([]string, 0, len(r.scenes))
	for s := range r.scenes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// LoadScene replaces the loaded flowcharts with those of scene. Saved state
// waiting for these flowcharts is applied; every other flowchart has its
// start triggers fired.
func (r *Runtime) LoadScene(scene string) error {
	docs, ok := r.scenes[scene]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownScene, scene)
	}
	r.unload()

	var built []*flow.Flowchart
	for _, d := range docs {
		fc, err := d.Build(r.svc)
		if err != nil {
			for _, b := range built {
				r.svc.Forget(b.Name())
			}
			return err
		}
		built = append(built, fc)
	}
	r.scene = scene
	for _, fc := range built {
		r.loaded = append(r.loaded, fc.Name())
	}

	restored := r.saves.SceneLoaded()
	log.Infof("loaded scene %q: %d flowchart(s), %d restored", scene, len(built), len(restored))
	for _, fc := range built {
		fc.Start()
	}
	return nil
}

func (r *Runtime) unload() {
	for _, name := range r.loaded {
		r.svc.Forget(name)
	}
	r.loaded = nil
	r.scene = ""
}

// Flowchart returns a loaded flowchart by name, or nil.
func (r *Runtime) Flowchart(name string) *flow.Flowchart { return r.svc.Flowchart(name) }

// Flowcharts returns the loaded flowcharts, sorted by name.
func (r *Runtime) Flowcharts() []*flow.Flowchart { return r.svc.Flowcharts() }

// Tick advances the clock by dt and returns the number of callbacks run.
func (r *Runtime) Tick(dt time.Duration) int { return r.clock.Advance(dt) }

// Busy reports whether any block is executing or any callback is pending.
func (r *Runtime) Busy() bool {
	if r.clock.Pending() > 0 {
		return true
	}
	for _, fc := range r.Flowcharts() {
		if fc.HasExecutingBlocks() {
			return true
		}
	}
	return false
}

// RunFor ticks by step until nothing is busy or limit has elapsed. It
// returns the clock time spent.
func (r *Runtime) RunFor(step, limit time.Duration) time.Duration {
	start := r.clock.Now()
	for r.Busy() && r.clock.Now()-start < limit {
		r.Tick(step)
	}
	return r.clock.Now() - start
}

// ---------------------------------------------------------------------------
// Saves
// ---------------------------------------------------------------------------

// Save writes every loaded flowchart to slot.
func (r *Runtime) Save(ctx context.Context, slot, description string) (*save.Snapshot, error) {
	return r.saves.Save(ctx, slot, r.scene, description, r.Flowcharts()...)
}

// Load restores slot. The saved scene is reloaded from its documents and
// the saved state applied to the fresh flowcharts. A snapshot without a
// scene is applied to the loaded flowcharts as they are.
func (r *Runtime) Load(ctx context.Context, slot string) (*save.Snapshot, error) {
	snap, err := r.saves.Read(ctx, slot)
	if err != nil {
		return nil, err
	}
	if snap.Scene == "" {
		r.saves.Restore(snap)
		return snap, nil
	}
	if _, ok := r.scenes[snap.Scene]; !ok {
		return nil, fmt.Errorf("save %q: %w %q", slot, ErrUnknownScene, snap.Scene)
	}
	r.unload()
	r.saves.Restore(snap)
	if err := r.LoadScene(snap.Scene); err != nil {
		return nil, err
	}
	if pending := r.saves.Pending(); len(pending) > 0 {
		log.Warningf("save %q: no flowchart for %v in scene %q", slot, pending, snap.Scene)
	}
	return snap, nil
}

// SavePoint implements flow.Saver. key names the slot.
func (r *Runtime) SavePoint(key, description string) error {
	_, err := r.Save(context.Background(), key, description)
	return err
}

// Close releases the save store.
func (r *Runtime) Close() error {
	r.unload()
	return r.saves.Store().Close()
}

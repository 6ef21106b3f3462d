package host

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/blockflow/document"
	"github.com/chazu/blockflow/flow"
	"github.com/chazu/blockflow/save"
)

const harborDoc = `
name = "dock"
scene = "harbor"

[[variables]]
key = "name"
type = "string"
value = "sailor"

[[variables]]
key = "step"
type = "integer"
value = 1

[[blocks]]
name = "Arrive"
trigger = "start"

  [[blocks.commands]]
  kind = "effect"
  name = "say"
  args = { who = "Ada", text = "Hello {$name}" }

  [[blocks.commands]]
  kind = "wait"
  duration = "1s"

  [[blocks.commands]]
  kind = "save-point"
  key = "checkpoint"
  description = "on the dock"

  [[blocks.commands]]
  kind = "set"
  variable = "step"
  value = 2

  [[blocks.commands]]
  kind = "wait"
  duration = "1s"

  [[blocks.commands]]
  kind = "set"
  variable = "step"
  value = 3
`

const townDoc = `
name = "square"
scene = "town"

[[variables]]
key = "visited"
type = "boolean"

[[blocks]]
name = "Enter"
trigger = "start"

  [[blocks.commands]]
  kind = "set"
  variable = "visited"
  value = true
`

type testRuntime struct {
	*Runtime
	out *bytes.Buffer
}

func newTestRuntime(t *testing.T) *testRuntime {
	t.Helper()
	rt := New(Options{MaxInstantSteps: 1000})
	out := &bytes.Buffer{}
	rt.RegisterEffector("say", NewPrintEffector(out))
	for _, src := range []string{harborDoc, townDoc} {
		d, err := document.Parse("test.toml", []byte(src))
		if err != nil {
			t.Fatal(err)
		}
		rt.AddDocuments(d)
	}
	t.Cleanup(func() { rt.Close() })
	return &testRuntime{Runtime: rt, out: out}
}

func (rt *testRuntime) intVar(t *testing.T, fc, key string) int64 {
	t.Helper()
	f := rt.Flowchart(fc)
	if f == nil {
		t.Fatalf("flowchart %q not loaded", fc)
	}
	v, ok := f.Variable(key)
	if !ok {
		t.Fatalf("%s has no variable %q", fc, key)
	}
	return v.Value().Int()
}

func TestLoadSceneStartsFlowcharts(t *testing.T) {
	rt := newTestRuntime(t)
	if diff := cmp.Diff([]string{"harbor", "town"}, rt.Scenes()); diff != "" {
		t.Errorf("scenes mismatch (-want +got):\n%s", diff)
	}
	if err := rt.LoadScene("harbor"); err != nil {
		t.Fatal(err)
	}
	if rt.Scene() != "harbor" {
		t.Errorf("scene = %q, want harbor", rt.Scene())
	}
	if got := rt.out.String(); got != "Ada: Hello sailor\n" {
		t.Errorf("output = %q", got)
	}
	if !rt.Busy() {
		t.Fatal("runtime idle while a block waits")
	}

	spent := rt.RunFor(100*time.Millisecond, time.Minute)
	if rt.Busy() {
		t.Error("runtime still busy")
	}
	if spent != 2*time.Second {
		t.Errorf("ran for %v, want 2s", spent)
	}
	if got := rt.intVar(t, "dock", "step"); got != 3 {
		t.Errorf("step = %d, want 3", got)
	}
}

func TestLoadSceneUnloadsPrevious(t *testing.T) {
	rt := newTestRuntime(t)
	if err := rt.LoadScene("harbor"); err != nil {
		t.Fatal(err)
	}
	if err := rt.LoadScene("town"); err != nil {
		t.Fatal(err)
	}
	if rt.Flowchart("dock") != nil {
		t.Error("dock still loaded after switching scene")
	}
	if rt.Busy() {
		t.Error("unloaded scene left pending callbacks")
	}
	visited, _ := rt.Flowchart("square").Variable("visited")
	if !visited.Value().Bool() {
		t.Error("town start block did not run")
	}
}

func TestLoadUnknownScene(t *testing.T) {
	rt := newTestRuntime(t)
	if err := rt.LoadScene("moon"); !errors.Is(err, ErrUnknownScene) {
		t.Errorf("err = %v, want ErrUnknownScene", err)
	}
}

func TestSavePointRestoresAcrossScenes(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	if err := rt.LoadScene("harbor"); err != nil {
		t.Fatal(err)
	}
	rt.Tick(time.Second) // reaches the save point
	rt.RunFor(time.Second, time.Minute)
	if got := rt.intVar(t, "dock", "step"); got != 3 {
		t.Fatalf("step = %d, want 3", got)
	}

	if err := rt.LoadScene("town"); err != nil {
		t.Fatal(err)
	}
	snap, err := rt.Load(ctx, "checkpoint")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Description != "on the dock" || snap.Scene != "harbor" {
		t.Errorf("snapshot = %q in %q", snap.Description, snap.Scene)
	}
	if rt.Scene() != "harbor" {
		t.Errorf("scene after load = %q, want harbor", rt.Scene())
	}
	if rt.Flowchart("square") != nil {
		t.Error("town flowchart still loaded")
	}

	// The block resumed on the save point, skipped it and ran on to the
	// second wait.
	if got := rt.intVar(t, "dock", "step"); got != 2 {
		t.Errorf("step after load = %d, want 2", got)
	}
	if !rt.Flowchart("dock").Block("Arrive").IsExecuting() {
		t.Fatal("Arrive not resumed")
	}
	if n := strings.Count(rt.out.String(), "\n"); n != 1 {
		t.Errorf("greeting printed %d times, want once", n)
	}

	rt.RunFor(time.Second, time.Minute)
	if got := rt.intVar(t, "dock", "step"); got != 3 {
		t.Errorf("step = %d, want 3", got)
	}
}

func TestSaveAndLoadSlot(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	if err := rt.LoadScene("town"); err != nil {
		t.Fatal(err)
	}
	if _, err := rt.Save(ctx, "slot", "visited the square"); err != nil {
		t.Fatal(err)
	}
	slots, err := rt.Saves().List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 || slots[0].Name != "slot" {
		t.Errorf("slots = %+v", slots)
	}
	if _, err := rt.Load(ctx, "missing"); !errors.Is(err, save.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Worker
// ---------------------------------------------------------------------------

func TestWorkerDo(t *testing.T) {
	rt := newTestRuntime(t)
	w := NewWorker(rt.Runtime)
	defer w.Stop()

	scene, err := Call(w, func(rt *Runtime) (string, error) {
		if err := rt.LoadScene("harbor"); err != nil {
			return "", err
		}
		return rt.Scene(), nil
	})
	if err != nil || scene != "harbor" {
		t.Errorf("Call = %q, %v", scene, err)
	}

	_, err = w.Do(func(*Runtime) (any, error) { panic("boom") })
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("panic err = %v, want boom", err)
	}

	// The worker survives a panic.
	busy, err := Call(w, func(rt *Runtime) (bool, error) { return rt.Busy(), nil })
	if err != nil || !busy {
		t.Errorf("Busy = %v, %v; want true", busy, err)
	}
}

func TestWorkerStopped(t *testing.T) {
	w := NewWorker(New(Options{}))
	w.Stop()
	w.Stop()
	if _, err := w.Do(func(*Runtime) (any, error) { return nil, nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
}

func TestWorkerRunTicker(t *testing.T) {
	w := NewWorker(New(Options{}))
	defer w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := w.RunTicker(ctx, 5*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunTicker err = %v", err)
	}
	ticks, _ := Call(w, func(rt *Runtime) (uint64, error) { return rt.Clock().Ticks(), nil })
	if ticks == 0 {
		t.Error("clock never advanced")
	}
}

// ---------------------------------------------------------------------------
// Effectors
// ---------------------------------------------------------------------------

func TestPrintEffectorFormats(t *testing.T) {
	var out bytes.Buffer
	p := NewPrintEffector(&out)
	calls := []flow.EffectCall{
		{Name: "say", Args: map[string]any{"who": "Bo", "text": "hi"}},
		{Name: "say", Args: map[string]any{"text": "narration"}},
		{Name: "fade", Args: map[string]any{"to": "black", "seconds": 1.5}},
	}
	for _, c := range calls {
		var got error = errors.New("not called")
		p.Invoke(c, func(err error) { got = err })
		if got != nil {
			t.Errorf("done(%v) for %s", got, c.Name)
		}
	}
	want := "Bo: hi\nnarration\nfade seconds=1.5 to=black\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestDelayEffector(t *testing.T) {
	rt := New(Options{})
	rt.RegisterEffector("fade", DelayEffector{Clock: rt.Clock(), Default: time.Second})

	finished := false
	e, ok := rt.Services().Effector("fade")
	if !ok {
		t.Fatal("fade not registered")
	}
	e.Invoke(flow.EffectCall{Name: "fade", Args: map[string]any{"seconds": 2.0}}, func(error) { finished = true })
	rt.Tick(time.Second)
	if finished {
		t.Error("finished after 1s, want 2s")
	}
	rt.Tick(time.Second)
	if !finished {
		t.Error("not finished after 2s")
	}
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const greeterDoc = `
name = "greeter"

[[variables]]
key = "count"
type = "integer"

[[blocks]]
name = "Hello"
trigger = "start"

  [[blocks.commands]]
  kind = "effect"
  name = "say"
  args = { who = "Ada", text = "hi" }

  [[blocks.commands]]
  kind = "wait"
  duration = "2s"

  [[blocks.commands]]
  kind = "set"
  variable = "count"
  op = "+="
  value = 2
`

const projectManifest = `
[project]
name = "greeter"

[save]
backend = "dir"
`

// writeProject creates a project directory and returns its path.
func writeProject(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blockflow.toml"), []byte(projectManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(dir, "flowcharts")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range docs {
		if err := os.WriteFile(filepath.Join(src, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunSavesAndListsSlot(t *testing.T) {
	dir := writeProject(t, map[string]string{"greeter.toml": greeterDoc})

	out, err := execute(t, "run", dir, "--vars", "--save", "end")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	for _, want := range []string{"Ada: hi\n", "greeter.count = 2\n", `Saved "end"`} {
		if !strings.Contains(out, want) {
			t.Errorf("run output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "-C", dir, "saves", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "SLOT") || !strings.Contains(out, "end") {
		t.Errorf("saves list:\n%s", out)
	}

	out, err = execute(t, "-C", dir, "saves", "show", "end")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Scene:       main", "count = 2", "[Hello] idle (runs: 1)"} {
		if !strings.Contains(out, want) {
			t.Errorf("saves show missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "-C", dir, "saves", "delete", "end"); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "-C", dir, "saves", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No saves") {
		t.Errorf("saves list after delete:\n%s", out)
	}
}

func TestRunLoadsSlot(t *testing.T) {
	dir := writeProject(t, map[string]string{"greeter.toml": greeterDoc})
	if _, err := execute(t, "run", dir, "--save", "first"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "run", dir, "--load", "first", "--vars")
	if err != nil {
		t.Fatalf("run --load: %v\n%s", err, out)
	}
	if !strings.Contains(out, `Restored "first"`) {
		t.Errorf("output:\n%s", out)
	}
	// The restored flowchart does not fire its start trigger again.
	if strings.Contains(out, "Ada: hi") || !strings.Contains(out, "greeter.count = 2\n") {
		t.Errorf("output:\n%s", out)
	}
}

func TestRunUnknownScene(t *testing.T) {
	dir := writeProject(t, map[string]string{"greeter.toml": greeterDoc})
	if _, err := execute(t, "run", dir, "--scene", "moon"); err == nil {
		t.Error("expected error for unknown scene")
	}
}

func TestCheck(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"greeter.toml": greeterDoc,
		"broken.toml":  "name = \"broken\"\n[[blocks]]\nname = \"B\"\n  [[blocks.commands]]\n  kind = \"teleport\"\n",
	})

	out, err := execute(t, "-C", dir, "check")
	if err == nil {
		t.Fatal("check passed with a broken document")
	}
	if !strings.Contains(out, "FAIL "+filepath.Join(dir, "flowcharts", "broken.toml")) {
		t.Errorf("broken document not reported:\n%s", out)
	}
	if !strings.Contains(out, "ok   "+filepath.Join(dir, "flowcharts", "greeter.toml")) {
		t.Errorf("good document not reported:\n%s", out)
	}

	out, err = execute(t, "-C", dir, "check", filepath.Join(dir, "flowcharts", "greeter.toml"))
	if err != nil {
		t.Errorf("check greeter: %v\n%s", err, out)
	}
}

func TestKinds(t *testing.T) {
	out, err := execute(t, "kinds")
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"if", "loop", "save-point"} {
		if !strings.Contains(out, k+"\n") {
			t.Errorf("kinds missing %q", k)
		}
	}
}

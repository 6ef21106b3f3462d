package document

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/blockflow/commands"
	"github.com/chazu/blockflow/flow"
	"github.com/chazu/blockflow/sched"
	"github.com/chazu/blockflow/variable"
)

const introDoc = `
name = "intro"
scene = "intro"

[[variables]]
key = "score"
type = "integer"
value = 0

[[variables]]
key = "result"
type = "string"

[[variables]]
key = "speed"
type = "float"
value = 1.5

[[blocks]]
name = "Start"
trigger = "start"

  [[blocks.variables]]
  key = "i"
  type = "integer"

  [[blocks.commands]]
  kind = "loop"
  to = 5
  counter = "i"

  [[blocks.commands]]
  kind = "set"
  variable = "score"
  op = "+="
  value = 1

  [[blocks.commands]]
  kind = "end"

  [[blocks.commands]]
  kind = "comment"
  text = "branch on the total"

  [[blocks.commands]]
  kind = "if"
  variable = "score"
  op = ">="
  value = 5

  [[blocks.commands]]
  kind = "set"
  variable = "result"
  value = "many {$score}"

  [[blocks.commands]]
  kind = "else"

  [[blocks.commands]]
  kind = "set"
  variable = "result"
  value = "few"

  [[blocks.commands]]
  kind = "end"

  [[blocks.commands]]
  kind = "send-message"
  message = "done"

[[blocks]]
name = "Done"
trigger = "message:done"

  [[blocks.commands]]
  kind = "wait"
  duration = "1s"

  [[blocks.commands]]
  kind = "set"
  variable = "result"
  op = "add"
  value = "!"
`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	d, err := Parse("test.toml", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d
}

func TestBuildAndRun(t *testing.T) {
	d := mustParse(t, introDoc)
	if d.Name != "intro" || d.Scene != "intro" {
		t.Errorf("name/scene = %q/%q", d.Name, d.Scene)
	}

	svc := flow.NewServices()
	clock := sched.NewClock()
	svc.Scheduler = clock
	fc, err := d.Build(svc)
	if err != nil {
		t.Fatal(err)
	}
	if svc.Flowchart("intro") != fc {
		t.Error("flowchart not registered with services")
	}

	start := fc.Block("Start")
	if start.Trigger().Kind != flow.TriggerStart {
		t.Errorf("Start trigger = %v", start.Trigger())
	}
	if _, ok := start.Locals().Lookup("i"); !ok {
		t.Error("block local i not declared")
	}

	fc.Start()
	result, _ := fc.Variable("result")
	if got := result.Value().Text(); got != "many 5" {
		t.Errorf("result = %q, want %q", got, "many 5")
	}
	if !fc.Block("Done").IsExecuting() {
		t.Fatal("Done block not started by message")
	}
	clock.Advance(time.Second)
	if got := result.Value().Text(); got != "many 5!" {
		t.Errorf("result = %q, want %q", got, "many 5!")
	}
	if fc.HasExecutingBlocks() {
		t.Error("blocks still executing")
	}
}

func TestComputedIndents(t *testing.T) {
	d := mustParse(t, introDoc)
	fc, err := d.Build(flow.NewServices())
	if err != nil {
		t.Fatal(err)
	}
	var got []int
	for _, c := range fc.Block("Start").Commands() {
		got = append(got, flow.BaseOf(c).Indent())
	}
	want := []int{0, 1, 0, 0, 0, 1, 0, 1, 0, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("indents mismatch (-want +got):\n%s", diff)
	}
}

func TestExplicitIndentsAreKept(t *testing.T) {
	d := mustParse(t, `
name = "flat"

[[variables]]
key = "x"
type = "boolean"

[[blocks]]
name = "B"

  [[blocks.commands]]
  kind = "if"
  variable = "x"
  value = true
  indent = 0

  [[blocks.commands]]
  kind = "stop"
  indent = 0
  enabled = false

  [[blocks.commands]]
  kind = "end"
  indent = 0
`)
	fc, err := d.Build(flow.NewServices())
	if err != nil {
		t.Fatal(err)
	}
	cmds := fc.Block("B").Commands()
	if n := flow.BaseOf(cmds[1]).Indent(); n != 0 {
		t.Errorf("stop indent = %d, want stored 0", n)
	}
	if flow.BaseOf(cmds[1]).Enabled() {
		t.Error("stop should be disabled")
	}
}

func TestOperandTyping(t *testing.T) {
	d := mustParse(t, `
name = "typed"

[[variables]]
key = "speed"
type = "float"

[[blocks]]
name = "B"

  [[blocks.commands]]
  kind = "if"
  variable = "speed"
  op = "gt"
  value = 3

  [[blocks.commands]]
  kind = "set"
  variable = "elsewhere"
  value = [1, 2, 3]

  [[blocks.commands]]
  kind = "end"
`)
	fc, err := d.Build(flow.NewServices())
	if err != nil {
		t.Fatal(err)
	}
	cmds := fc.Block("B").Commands()
	cond := cmds[0].(*commands.If).Cond.(*commands.Compare)
	if !cond.Value.Equal(variable.Float(3)) || cond.Op != variable.GreaterThan {
		t.Errorf("condition = %v %v, want > 3.0", cond.Op, cond.Value)
	}
	set := cmds[1].(*commands.SetVariable)
	if !set.Value.Equal(variable.Vector3(1, 2, 3)) {
		t.Errorf("set value = %v, want vector3", set.Value)
	}
}

func TestSchemaRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing name", `
[[blocks]]
name = "B"
`},
		{"unknown kind", `
name = "x"
[[blocks]]
name = "B"
  [[blocks.commands]]
  kind = "teleport"
`},
		{"unknown key", `
name = "x"
[[blocks]]
name = "B"
  [[blocks.commands]]
  kind = "stop"
  colour = "red"
`},
		{"bad variable type", `
name = "x"
[[variables]]
key = "v"
type = "quaternion"
`},
		{"bad trigger", `
name = "x"
[[blocks]]
name = "B"
trigger = "sometimes"
`},
		{"negative indent", `
name = "x"
[[blocks]]
name = "B"
  [[blocks.commands]]
  kind = "stop"
  indent = -1
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.toml", []byte(tt.src))
			if !errors.Is(err, ErrSchema) {
				t.Errorf("err = %v, want ErrSchema", err)
			}
		})
	}
}

func TestParseErrorIsNotSchemaError(t *testing.T) {
	_, err := Parse("broken.toml", []byte("name = "))
	if err == nil || errors.Is(err, ErrSchema) {
		t.Errorf("err = %v, want a TOML parse error", err)
	}
}

func TestBuildRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"duplicate block", `
name = "x"
[[blocks]]
name = "B"
[[blocks]]
name = "B"
`, ErrDuplicateBlock},
		{"duplicate variable", `
name = "x"
[[variables]]
key = "v"
type = "integer"
[[variables]]
key = "v"
type = "string"
`, variable.ErrDuplicateKey},
		{"duplicate label", `
name = "x"
[[blocks]]
name = "B"
  [[blocks.commands]]
  kind = "label"
  key = "top"
  [[blocks.commands]]
  kind = "label"
  key = "top"
`, ErrDuplicateLabel},
		{"bad initial value", `
name = "x"
[[variables]]
key = "v"
type = "integer"
value = "seven"
`, variable.ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := flow.NewServices()
			_, err := mustParse(t, tt.src).Build(svc)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if svc.Flowchart("x") != nil {
				t.Error("failed build left a registered flowchart")
			}
		})
	}
}

func TestBuildRejectsBadParams(t *testing.T) {
	for name, cmd := range map[string]string{
		"wait":      `kind = "wait"` + "\n" + `duration = "1 fortnight"`,
		"set":       `kind = "set"` + "\n" + `variable = "v"`,
		"condition": `kind = "while"` + "\n" + `variable = "v"`,
	} {
		t.Run(name, func(t *testing.T) {
			src := "name = \"x\"\n[[blocks]]\nname = \"B\"\n[[blocks.commands]]\n" + cmd + "\n"
			if _, err := mustParse(t, src).Build(flow.NewServices()); err == nil {
				t.Error("Build succeeded")
			}
		})
	}
}

func TestCheckReportsValidationProblems(t *testing.T) {
	d := mustParse(t, `
name = "x"
[[blocks]]
name = "B"
  [[blocks.commands]]
  kind = "jump"
  label = "nowhere"
  [[blocks.commands]]
  kind = "set"
  variable = "missing"
  value = 1
`)
	err := d.Check()
	if err == nil {
		t.Fatal("Check found no problems")
	}
	if !errors.Is(err, commands.ErrMissingVariable) {
		t.Errorf("err = %v, want ErrMissingVariable among problems", err)
	}
	if !strings.Contains(err.Error(), "nowhere") {
		t.Errorf("err = %v, want the missing label named", err)
	}

	if err := mustParse(t, introDoc).Check(); err != nil {
		t.Errorf("Check(intro) = %v", err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("b.toml", "name = \"second\"\n")
	write("a.toml", "name = \"first\"\n")
	write("notes.txt", "not a document")

	docs, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, d := range docs {
		names = append(names, d.Name)
	}
	if diff := cmp.Diff([]string{"first", "second"}, names); diff != "" {
		t.Errorf("LoadDir mismatch (-want +got):\n%s", diff)
	}
}

func TestKindsCoverSchema(t *testing.T) {
	for _, k := range Kinds() {
		re := regexp.MustCompile(`kind:\s+"` + regexp.QuoteMeta(k) + `"`)
		if !re.MatchString(schemaSource) {
			t.Errorf("kind %q missing from schema", k)
		}
	}
}

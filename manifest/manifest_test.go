package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "harbor"
start-scene = "docks"

[source]
dirs = ["story", "shared"]

[engine]
max-instant-steps = 500
tick = "20ms"

[save]
backend = "dir"
path = "/var/saves"
slot = "quick"

[log]
verbosity = 3
file = "logs/run.log"

[server]
addr = "0.0.0.0:9000"
grpc-addr = "0.0.0.0:9001"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "harbor" {
		t.Errorf("project name = %q, want harbor", m.Project.Name)
	}
	if m.Project.StartScene != "docks" {
		t.Errorf("start scene = %q, want docks", m.Project.StartScene)
	}
	if len(m.Source.Dirs) != 2 {
		t.Errorf("source dirs count = %d, want 2", len(m.Source.Dirs))
	}
	if m.Engine.MaxInstantSteps != 500 {
		t.Errorf("max-instant-steps = %d, want 500", m.Engine.MaxInstantSteps)
	}
	if m.Engine.TickInterval() != 20*time.Millisecond {
		t.Errorf("tick = %v, want 20ms", m.Engine.TickInterval())
	}
	if m.Save.Backend != "dir" || m.Save.Slot != "quick" {
		t.Errorf("save = %+v", m.Save)
	}
	if m.SavePath() != "/var/saves" {
		t.Errorf("save path = %q, want /var/saves", m.SavePath())
	}
	if m.Log.Verbosity != 3 {
		t.Errorf("verbosity = %d, want 3", m.Log.Verbosity)
	}
	if want := filepath.Join(m.Dir, "logs", "run.log"); m.LogFile() != want {
		t.Errorf("log file = %q, want %q", m.LogFile(), want)
	}
	if m.Server.Addr != "0.0.0.0:9000" || m.Server.GRPCAddr != "0.0.0.0:9001" {
		t.Errorf("server = %+v", m.Server)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "flowcharts" {
		t.Errorf("default source dirs = %v, want [flowcharts]", m.Source.Dirs)
	}
	if m.Engine.MaxInstantSteps != 10000 {
		t.Errorf("default max-instant-steps = %d, want 10000", m.Engine.MaxInstantSteps)
	}
	if m.Engine.TickInterval() != 16*time.Millisecond {
		t.Errorf("default tick = %v, want 16ms", m.Engine.TickInterval())
	}
	if m.Save.Backend != "sqlite" || m.Save.Slot != "autosave" {
		t.Errorf("default save = %+v", m.Save)
	}
	if want := filepath.Join(m.Dir, ".blockflow", "saves.db"); m.SavePath() != want {
		t.Errorf("default save path = %q, want %q", m.SavePath(), want)
	}
	if m.LogFile() != "" {
		t.Errorf("default log file = %q, want stderr", m.LogFile())
	}
	if m.Server.Addr != "localhost:4567" {
		t.Errorf("default addr = %q", m.Server.Addr)
	}
}

func TestLoadManifestRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "[project]\nname = \"x\"\ncolour = \"red\"\n", "unknown key"},
		{"bad tick", "[engine]\ntick = \"soon\"\n", "engine.tick"},
		{"zero tick", "[engine]\ntick = \"0s\"\n", "engine.tick"},
		{"bad backend", "[save]\nbackend = \"tape\"\n", "save backend"},
		{"syntax", "[project\n", "parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[project]\nname = \"found-project\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no blockflow.toml exists")
	}
}

func TestSourceDirPaths(t *testing.T) {
	m := &Manifest{
		Dir: "/app",
		Source: Source{
			Dirs: []string{"story", "/abs/shared"},
		},
	}

	paths := m.SourceDirPaths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0] != "/app/story" {
		t.Errorf("paths[0] = %q, want /app/story", paths[0])
	}
	if paths[1] != "/abs/shared" {
		t.Errorf("paths[1] = %q, want /abs/shared", paths[1])
	}
}

func TestDefault(t *testing.T) {
	m := Default("/game")
	if m.Engine.TickInterval() != 16*time.Millisecond {
		t.Errorf("tick = %v, want 16ms", m.Engine.TickInterval())
	}
	if m.SavePath() != "/game/.blockflow/saves.db" {
		t.Errorf("save path = %q", m.SavePath())
	}
}

// Package manifest handles blockflow.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "blockflow.toml"

// Manifest represents a blockflow.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	Engine  Engine  `toml:"engine"`
	Save    Save    `toml:"save"`
	Log     Log     `toml:"log"`
	Server  Server  `toml:"server"`

	// Dir is the directory containing the blockflow.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name       string `toml:"name"`
	StartScene string `toml:"start-scene"`
}

// Source configures where flowchart documents live.
type Source struct {
	Dirs []string `toml:"dirs"`
}

// Engine configures block execution.
type Engine struct {
	MaxInstantSteps int    `toml:"max-instant-steps"`
	Tick            string `toml:"tick"`

	tick time.Duration
}

// TickInterval is Tick parsed.
func (e Engine) TickInterval() time.Duration { return e.tick }

// Save configures save slot storage.
type Save struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
	Slot    string `toml:"slot"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Server configures the remote control service.
type Server struct {
	Addr     string `toml:"addr"`
	GRPCAddr string `toml:"grpc-addr"`
}

// Default returns the configuration used when no blockflow.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses a blockflow.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if m.Engine.tick, err = time.ParseDuration(m.Engine.Tick); err != nil || m.Engine.tick <= 0 {
		return nil, fmt.Errorf("%s: engine.tick %q is not a positive duration", path, m.Engine.Tick)
	}
	switch m.Save.Backend {
	case "sqlite", "dir", "memory":
	default:
		return nil, fmt.Errorf("%s: unknown save backend %q", path, m.Save.Backend)
	}

	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"flowcharts"}
	}
	if m.Engine.MaxInstantSteps == 0 {
		m.Engine.MaxInstantSteps = 10000
	}
	if m.Engine.Tick == "" {
		m.Engine.Tick = "16ms"
		m.Engine.tick = 16 * time.Millisecond
	}
	if m.Save.Backend == "" {
		m.Save.Backend = "sqlite"
	}
	if m.Save.Path == "" {
		if m.Save.Backend == "dir" {
			m.Save.Path = filepath.Join(".blockflow", "saves")
		} else {
			m.Save.Path = filepath.Join(".blockflow", "saves.db")
		}
	}
	if m.Save.Slot == "" {
		m.Save.Slot = "autosave"
	}
	if m.Log.Verbosity == 0 {
		m.Log.Verbosity = 1
	}
	if m.Server.Addr == "" {
		m.Server.Addr = "localhost:4567"
	}
}

// FindAndLoad walks up from startDir to find a blockflow.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// SavePath returns the save store location, resolved against Dir.
func (m *Manifest) SavePath() string { return m.resolve(m.Save.Path) }

// LogFile returns the log file path resolved against Dir, or "" for stderr.
func (m *Manifest) LogFile() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

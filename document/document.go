// Package document loads flowcharts from TOML files.
//
// A document describes one flowchart:
//
//	name = "intro"
//	scene = "intro"
//
//	[[variables]]
//	key = "score"
//	type = "integer"
//	value = 0
//
//	[[blocks]]
//	name = "Start"
//	trigger = "start"
//
//	  [[blocks.commands]]
//	  kind = "if"
//	  variable = "score"
//	  op = ">"
//	  value = 3
//
// Documents are checked against an embedded CUE schema before they are
// decoded, so unknown keys and command kinds are rejected with a path to
// the offending entry.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/blockflow/flow"
	"github.com/chazu/blockflow/variable"
)

var log = commonlog.GetLogger("blockflow.document")

// Ext is the file extension of flowchart documents.
const Ext = ".toml"

var (
	ErrSchema         = errors.New("document does not match schema")
	ErrDuplicateBlock = errors.New("duplicate block")
	ErrDuplicateLabel = errors.New("duplicate label")
	ErrUnknownKind    = errors.New("unknown command kind")
)

// Document is a parsed, schema-checked flowchart document.
type Document struct {
	Path      string         `toml:"-"`
	Name      string         `toml:"name"`
	Scene     string         `toml:"scene"`
	Variables []VariableSpec `toml:"variables"`
	Blocks    []BlockSpec    `toml:"blocks"`

	md toml.MetaData
}

type VariableSpec struct {
	Key   string `toml:"key"`
	Type  string `toml:"type"`
	Value any    `toml:"value"`
	Scope string `toml:"scope"`
}

type BlockSpec struct {
	Name        string           `toml:"name"`
	Description string           `toml:"description"`
	Trigger     string           `toml:"trigger"`
	Variables   []VariableSpec   `toml:"variables"`
	Commands    []toml.Primitive `toml:"commands"`
}

// Parse decodes and validates a document. path is used in messages only.
func Parse(path string, data []byte) (*Document, error) {
	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := validate(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	d := &Document{Path: path}
	md, err := toml.Decode(string(data), d)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	d.md = md
	return d, nil
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return Parse(path, data)
}

// LoadDir loads every document in dir, sorted by file name.
func LoadDir(dir string) ([]*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), Ext) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var docs []*Document
	for _, n := range names {
		d, err := Load(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// ---------------------------------------------------------------------------
// Build
// ---------------------------------------------------------------------------

// Build creates the document's flowchart and registers it with svc. Nothing
// is registered when an error is returned.
func (d *Document) Build(svc *flow.Services) (*flow.Flowchart, error) {
	vars, err := buildVariables(d.Variables)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Path, err)
	}
	types := make(map[string]variable.Type, len(vars))
	for _, v := range vars {
		types[v.Key()] = v.Type()
	}

	blocks := make([]*flow.Block, 0, len(d.Blocks))
	seen := make(map[string]bool, len(d.Blocks))
	for i := range d.Blocks {
		bs := &d.Blocks[i]
		if seen[bs.Name] {
			return nil, fmt.Errorf("%s: %w: %q", d.Path, ErrDuplicateBlock, bs.Name)
		}
		seen[bs.Name] = true
		b, err := d.buildBlock(bs, types)
		if err != nil {
			return nil, fmt.Errorf("%s: block %q: %w", d.Path, bs.Name, err)
		}
		blocks = append(blocks, b)
	}

	fc := flow.New(d.Name, svc)
	for _, v := range vars {
		if err := fc.DeclareVariable(v); err != nil {
			svc.Forget(d.Name)
			return nil, fmt.Errorf("%s: %w", d.Path, err)
		}
	}
	for _, b := range blocks {
		if err := fc.AddBlock(b); err != nil {
			svc.Forget(d.Name)
			return nil, fmt.Errorf("%s: %w", d.Path, err)
		}
	}
	log.Debugf("built flowchart %q from %s: %d blocks, %d variables", d.Name, d.Path, len(blocks), len(vars))
	return fc, nil
}

// Check builds the document in isolation and runs block validation. It
// reports every problem found.
func (d *Document) Check() error {
	fc, err := d.Build(flow.NewServices())
	if err != nil {
		return err
	}
	var errs []error
	for _, b := range fc.Blocks() {
		if err := b.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Path, err))
		}
	}
	return errors.Join(errs...)
}

func buildVariables(specs []VariableSpec) ([]*variable.Variable, error) {
	out := make([]*variable.Variable, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if seen[s.Key] {
			return nil, fmt.Errorf("%w: %q", variable.ErrDuplicateKey, s.Key)
		}
		seen[s.Key] = true
		v, err := s.build()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s VariableSpec) build() (*variable.Variable, error) {
	t, err := variable.ParseType(s.Type)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", s.Key, err)
	}
	scope, err := variable.ParseScope(s.Scope)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", s.Key, err)
	}
	val := variable.Zero(t)
	if s.Value != nil {
		if val, err = variable.Coerce(t, s.Value); err != nil {
			return nil, fmt.Errorf("variable %q: %w", s.Key, err)
		}
	}
	return variable.NewScoped(s.Key, scope, val), nil
}

func (d *Document) buildBlock(bs *BlockSpec, flowchartTypes map[string]variable.Type) (*flow.Block, error) {
	b := flow.NewBlock(bs.Name)
	b.SetDescription(bs.Description)
	trig, err := flow.ParseTrigger(bs.Trigger)
	if err != nil {
		return nil, err
	}
	b.SetTrigger(trig)

	locals, err := buildVariables(bs.Variables)
	if err != nil {
		return nil, err
	}
	types := make(map[string]variable.Type, len(flowchartTypes)+len(locals))
	for k, t := range flowchartTypes {
		types[k] = t
	}
	for _, v := range locals {
		if err := b.Locals().Declare(v); err != nil {
			return nil, err
		}
		types[v.Key()] = v.Type()
	}

	dc := &decoder{md: d.md, types: types}
	labels := make(map[string]int)
	indented := false
	for i, p := range bs.Commands {
		var h header
		if err := d.md.PrimitiveDecode(p, &h); err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		c, err := dc.decode(h.Kind, p)
		if err != nil {
			return nil, fmt.Errorf("command %d (%s): %w", i, h.Kind, err)
		}
		if l, ok := c.(flow.Labeled); ok {
			if first, dup := labels[l.LabelKey()]; dup {
				return nil, fmt.Errorf("command %d: %w %q, first at command %d", i, ErrDuplicateLabel, l.LabelKey(), first)
			}
			labels[l.LabelKey()] = i
		}
		b.Add(c)
		if h.Indent != nil {
			indented = true
			flow.BaseOf(c).SetIndent(*h.Indent)
		}
		if h.Enabled != nil {
			flow.BaseOf(c).SetEnabled(*h.Enabled)
		}
	}
	if !indented {
		b.UpdateIndentLevels()
	}
	return b, nil
}

// header holds the keys shared by every command.
type header struct {
	Kind    string `toml:"kind"`
	Indent  *int   `toml:"indent"`
	Enabled *bool  `toml:"enabled"`
}

package save

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/chazu/blockflow/flow"
)

// Resolver finds a loaded flowchart by name. *flow.Services implements it.
type Resolver interface {
	Flowchart(name string) *flow.Flowchart
}

// Manager writes snapshots to a Store and applies loaded snapshots. State
// for flowcharts that are not loaded yet is held until SceneLoaded.
type Manager struct {
	store   Store
	resolve Resolver
	pending map[string]FlowchartState
	now     func() time.Time
}

func NewManager(store Store, resolve Resolver) *Manager {
	return &Manager{
		store:   store,
		resolve: resolve,
		pending: make(map[string]FlowchartState),
		now:     time.Now,
	}
}

func (m *Manager) Store() Store { return m.store }

// Save captures fcs and writes them to slot.
func (m *Manager) Save(ctx context.Context, slot, scene, description string, fcs ...*flow.Flowchart) (*Snapshot, error) {
	snap := NewSnapshot(description, m.now(), fcs...)
	snap.Scene = scene
	data, err := Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding save %q: %w", slot, err)
	}
	if err := m.store.Write(ctx, slot, data); err != nil {
		return nil, err
	}
	log.Infof("saved %d flowchart(s) to %q", len(snap.Flowcharts), slot)
	return snap, nil
}

// Read loads and decodes slot without applying it.
func (m *Manager) Read(ctx context.Context, slot string) (*Snapshot, error) {
	data, err := m.store.Read(ctx, slot)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Load reads slot and restores it. It returns the snapshot so the caller
// can load the saved scene; state for flowcharts that do not exist yet is
// applied by SceneLoaded.
func (m *Manager) Load(ctx context.Context, slot string) (*Snapshot, error) {
	snap, err := m.Read(ctx, slot)
	if err != nil {
		return nil, err
	}
	m.Restore(snap)
	return snap, nil
}

// Restore applies snap to every flowchart that resolves now and queues the
// rest. It returns the names applied.
func (m *Manager) Restore(snap *Snapshot) []string {
	m.pending = make(map[string]FlowchartState, len(snap.Flowcharts))
	for _, st := range snap.Flowcharts {
		m.pending[st.Name] = st
	}
	return m.SceneLoaded()
}

// SceneLoaded applies queued state to flowcharts that resolve now. Hosts
// call it after building a scene's flowcharts.
func (m *Manager) SceneLoaded() []string {
	var applied []string
	for _, name := range m.Pending() {
		fc := m.resolve.Flowchart(name)
		if fc == nil {
			continue
		}
		st := m.pending[name]
		delete(m.pending, name)
		Apply(fc, &st)
		applied = append(applied, name)
	}
	return applied
}

// Pending lists flowcharts with queued state, sorted.
func (m *Manager) Pending() []string {
	names := make([]string, 0, len(m.pending))
	for n := range m.pending {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) List(ctx context.Context) ([]SlotInfo, error) { return m.store.List(ctx) }

func (m *Manager) Delete(ctx context.Context, slot string) error { return m.store.Delete(ctx, slot) }

// ---------------------------------------------------------------------------
// Backends
// ---------------------------------------------------------------------------

// OpenStore opens the backend named by kind: "sqlite", "dir" or "memory".
func OpenStore(kind, path string) (Store, error) {
	switch kind {
	case "", "sqlite":
		return OpenSQLite(path)
	case "dir":
		return OpenDir(path)
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown save backend %q", kind)
}

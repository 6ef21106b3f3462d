package save

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound indicates the requested save slot doesn't exist.
var ErrNotFound = errors.New("save slot not found")

// SlotInfo describes one stored save.
type SlotInfo struct {
	Name      string
	Size      int
	UpdatedAt time.Time
}

// Store persists named save blobs.
type Store interface {
	Write(ctx context.Context, slot string, data []byte) error
	Read(ctx context.Context, slot string) ([]byte, error)
	List(ctx context.Context) ([]SlotInfo, error)
	Delete(ctx context.Context, slot string) error
	Close() error
}

func sortSlots(slots []SlotInfo) {
	sort.Slice(slots, func(i, j int) bool { return slots[i].Name < slots[j].Name })
}

// ---------------------------------------------------------------------------
// MemoryStore
// ---------------------------------------------------------------------------

// MemoryStore keeps saves in memory. It is used by tests and by runtimes
// configured without persistence.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string]memorySlot
}

type memorySlot struct {
	data []byte
	at   time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]memorySlot)}
}

func (m *MemoryStore) Write(_ context.Context, slot string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot] = memorySlot{data: append([]byte(nil), data...), at: time.Now()}
	return nil
}

func (m *MemoryStore) Read(_ context.Context, slot string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slot]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

func (m *MemoryStore) List(context.Context) ([]SlotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SlotInfo, 0, len(m.slots))
	for name, s := range m.slots {
		out = append(out, SlotInfo{Name: name, Size: len(s.data), UpdatedAt: s.at})
	}
	sortSlots(out)
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[slot]; !ok {
		return ErrNotFound
	}
	delete(m.slots, slot)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

package progress

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is a process-local Store.
type Memory struct {
	mu   sync.RWMutex
	data map[uuid.UUID]map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: map[uuid.UUID]map[string][]byte{}}
}

func (m *Memory) Raw(player uuid.UUID, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[player][key]
	return b, ok
}

func (m *Memory) SetRaw(player uuid.UUID, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data[player]
	if !ok {
		rec = map[string][]byte{}
		m.data[player] = rec
	}
	rec[key] = append([]byte(nil), value...)
	return nil
}

// Players returns every player with at least one attachment, sorted.
func (m *Memory) Players() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(m.data))
	for id := range m.data {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

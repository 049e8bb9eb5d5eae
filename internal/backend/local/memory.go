package local

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

// Memory keeps records per key in process.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]value.MemoryRecord
	now     func() time.Time
}

var _ registry.MemoryStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{records: make(map[string][]value.MemoryRecord), now: time.Now}
}

// Append implements registry.MemoryStore.
func (m *Memory) Append(_ context.Context, key string, rec value.MemoryRecord) error {
	if rec.At.IsZero() {
		rec.At = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = append(m.records[key], rec)
	return nil
}

// Recent implements registry.MemoryStore.
func (m *Memory) Recent(_ context.Context, key string, limit int) ([]value.MemoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.records[key]
	if limit <= 0 {
		return []value.MemoryRecord{}, nil
	}
	if len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return append([]value.MemoryRecord{}, recs...), nil
}

// Search implements registry.MemoryStore with a case-insensitive substring
// match.
func (m *Memory) Search(_ context.Context, key, query string, limit int) ([]value.MemoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []value.MemoryRecord{}
	q := strings.ToLower(query)
	for _, rec := range m.records[key] {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(rec.Text), q) {
			out = append(out, rec)
		}
	}
	return out, nil
}

package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process ledger, used for dry runs and tests.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemory returns a ledger seeded with entries.
func NewMemory(entries ...Entry) *Memory {
	return &Memory{entries: append([]Entry(nil), entries...)}
}

// Append implements Store.
func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// ReadFiltered implements Store.
func (m *Memory) ReadFiltered(_ context.Context, yearKey int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return collapse(m.entries, yearKey), nil
}

// RemoveKeys implements Store.
func (m *Memory) RemoveKeys(_ context.Context, yearKey int, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := idSet(ids)
	kept := m.entries[:0]
	removed := 0
	for _, e := range m.entries {
		if e.YearKey == yearKey && drop[e.SourceEncodedID] {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return removed, nil
}

// Entries returns a copy of every raw entry.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

package history

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

// MultiRecorder fans an entry out to several recorders. Every recorder is tried
// even when an earlier one fails.
type MultiRecorder struct {
	recorders []ports.HistoryRecorder
}

// NewMultiRecorder skips nil recorders.
func NewMultiRecorder(recorders ...ports.HistoryRecorder) *MultiRecorder {
	m := &MultiRecorder{}
	for _, r := range recorders {
		if r != nil {
			m.recorders = append(m.recorders, r)
		}
	}
	return m
}

// Append implements ports.HistoryRecorder.
func (m *MultiRecorder) Append(ctx context.Context, entry domain.HistoryEntry) error {
	var err error
	for _, r := range m.recorders {
		err = multierr.Append(err, r.Append(ctx, entry))
	}
	return err
}

// MemoryRecorder keeps entries in memory.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
	// Err, when set, is returned from every Append after the entry is dropped.
	Err error
}

// Append implements ports.HistoryRecorder.
func (m *MemoryRecorder) Append(_ context.Context, entry domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return &domain.PersistenceError{Target: "memory", Err: m.Err}
	}
	m.entries = append(m.entries, entry)
	return nil
}

// Recent implements ports.HistoryReader.
func (m *MemoryRecorder) Recent(_ context.Context, limit int) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.entries
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]domain.HistoryEntry(nil), entries...), nil
}

// Entries returns a copy of everything recorded.
func (m *MemoryRecorder) Entries() []domain.HistoryEntry {
	entries, _ := m.Recent(context.Background(), 0)
	return entries
}

// Path implements ports.HistoryReader.
func (m *MemoryRecorder) Path() string {
	return "memory"
}

var (
	_ ports.HistoryRecorder = (*MultiRecorder)(nil)
	_ ports.HistoryRecorder = (*MemoryRecorder)(nil)
	_ ports.HistoryReader   = (*MemoryRecorder)(nil)
)

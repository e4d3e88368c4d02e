package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory implements Store entirely in memory. It backs tests and the
// "memory" driver for installs without the SQLite extension; contents
// vanish on restart.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// Upsert replaces or inserts every record by id.
func (m *Memory) Upsert(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

// Count returns the number of stored records.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Delete removes the given ids. Unknown ids are ignored.
func (m *Memory) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records, id)
	}
	return nil
}

// Query ranks all records by cosine distance (1 − cosine similarity)
// and returns the closest k. With normalized embeddings the ordering
// matches the SQLite implementation.
func (m *Memory) Query(_ context.Context, embedding []float32, k int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.records))
	for _, r := range m.records {
		hits = append(hits, Hit{
			ID:       r.ID,
			Document: r.Document,
			Source:   r.Source,
			Section:  r.Section,
			Distance: 1 - cosineSimilarity(embedding, r.Embedding),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Get returns the stored record for id, if present. Test hook.
func (m *Memory) Get(id string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	return r, ok
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

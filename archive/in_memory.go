package archive

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/runmesh/run"
)

// DefaultCapacity bounds an InMemoryStore.
const DefaultCapacity = 1000

// InMemoryStore keeps archived runs in process memory. Once the capacity is
// reached the oldest records are discarded. Records are copied on the way in
// and out.
type InMemoryStore struct {
	mu       sync.RWMutex
	capacity int
	recs     []run.Record
	index    map[string]int
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore returns an empty store holding at most capacity records
// (DefaultCapacity when capacity <= 0).
func NewInMemoryStore(capacity int) *InMemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemoryStore{capacity: capacity, index: map[string]int{}}
}

// Archive implements Store.
func (s *InMemoryStore) Archive(_ context.Context, recs []run.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range recs {
		r.Agents = append([]string(nil), r.Agents...)
		if i, ok := s.index[r.RunID]; ok {
			s.recs[i] = r
			continue
		}
		s.recs = append(s.recs, r)
	}

	if over := len(s.recs) - s.capacity; over > 0 {
		s.recs = append([]run.Record(nil), s.recs[over:]...)
	}

	s.reindex()

	return nil
}

func (s *InMemoryStore) reindex() {
	s.index = make(map[string]int, len(s.recs))
	for i, r := range s.recs {
		s.index[r.RunID] = i
	}
}

// History implements Store.
func (s *InMemoryStore) History(_ context.Context, limit int) ([]run.Record, error) {
	s.mu.RLock()
	out := make([]run.Record, len(s.recs))
	for i, r := range s.recs {
		r.Agents = append([]string(nil), r.Agents...)
		out[i] = r
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// Len returns the number of archived records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

// Close implements Store.
func (s *InMemoryStore) Close() error { return nil }

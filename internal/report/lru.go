package report

import (
	"container/list"
	"sync"
)

// LRUStore keeps the most recently used summaries in memory and writes
// through to a backing Store, which also serves misses.
type LRUStore struct {
	mu    sync.Mutex
	cap   int
	back  Store
	order *list.List // of *BatchSummary, most recent at front
	items map[string]*list.Element
}

// NewLRUStore returns a cache holding up to cap summaries (at least one).
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		order: list.New(),
		items: make(map[string]*list.Element, cap),
	}
}

// Save caches the summary and writes it through to the backing store.
func (s *LRUStore) Save(summary *BatchSummary) error {
	s.put(summary)
	return s.back.Save(summary)
}

// Load serves from memory, falling back to the backing store and caching
// what it returns.
func (s *LRUStore) Load(runID string) (*BatchSummary, error) {
	s.mu.Lock()
	if el, ok := s.items[runID]; ok {
		s.order.MoveToFront(el)
		summary := el.Value.(*BatchSummary)
		s.mu.Unlock()
		return summary, nil
	}
	s.mu.Unlock()

	summary, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}
	s.put(summary)
	return summary, nil
}

// Recent returns up to n cached run IDs, most recent first.
func (s *LRUStore) Recent(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for el := s.order.Front(); el != nil && len(ids) < n; el = el.Next() {
		ids = append(ids, el.Value.(*BatchSummary).RunID)
	}
	return ids
}

func (s *LRUStore) put(summary *BatchSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[summary.RunID]; ok {
		el.Value = summary
		s.order.MoveToFront(el)
		return
	}
	s.items[summary.RunID] = s.order.PushFront(summary)
	for s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*BatchSummary).RunID)
	}
}

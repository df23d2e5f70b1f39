package thread

import (
	"context"
	"sync"
)

// MemoryStore keeps threads in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*Thread
	current string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]*Thread)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, t *Thread) error {
	if err := validID(t.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[t.ID] = t.Clone()
	return nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Thread, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, t.Clone())
	}
	sortThreads(out)
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[id]; !ok {
		return ErrNotFound
	}
	delete(s.threads, id)
	if s.current == id {
		s.current = ""
	}
	return nil
}

func (s *MemoryStore) CurrentID(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *MemoryStore) SetCurrentID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = id
	return nil
}

func (s *MemoryStore) Close() error { return nil }

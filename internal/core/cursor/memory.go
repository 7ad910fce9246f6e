package cursor

import (
	"context"
	"sync"

	"github.com/vietddude/pushwatch/internal/core/domain"
)

// MemoryStore keeps cursors in process memory. Progress is lost on restart,
// which only costs one redundant classification per branch.
type MemoryStore struct {
	mu      sync.RWMutex
	cursors map[string]domain.Cursor
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: map[string]domain.Cursor{}}
}

func (s *MemoryStore) GetCursor(_ context.Context, branch string) (*domain.Cursor, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cursors[branch]
	if !ok {
		return nil, false, nil
	}
	cp := c
	return &cp, true, nil
}

func (s *MemoryStore) SetCursor(_ context.Context, c *domain.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[c.Branch] = *c
	return nil
}

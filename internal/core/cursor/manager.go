package cursor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/pushwatch/internal/core/domain"
)

// Manager fronts a Store with an in-process cache and the monotonic-advance
// rule. Safe for concurrent use across branch monitors.
type Manager struct {
	store Store

	mu      sync.Mutex
	cursors map[string]*domain.Cursor
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, cursors: map[string]*domain.Cursor{}}
}

// Load returns the cursor for a branch, consulting the store on first use.
func (m *Manager) Load(ctx context.Context, branch string) (*domain.Cursor, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.cursors[branch]; ok {
		cp := *c
		return &cp, true, nil
	}
	c, found, err := m.store.GetCursor(ctx, branch)
	if err != nil {
		return nil, false, fmt.Errorf("load cursor for %s: %w", branch, err)
	}
	if !found {
		return nil, false, nil
	}
	m.cursors[branch] = c
	cp := *c
	return &cp, true, nil
}

// Advance moves the branch cursor to a newer push and persists it. Pushes
// at or behind the current position are rejected with ErrStalePush.
func (m *Manager) Advance(ctx context.Context, branch string, pushID int, rev string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.cursors[branch]; ok && pushID <= cur.PushID {
		return fmt.Errorf("advance %s to push %d from %d: %w", branch, pushID, cur.PushID, ErrStalePush)
	}
	c := &domain.Cursor{
		Branch:    branch,
		PushID:    pushID,
		Rev:       rev,
		UpdatedAt: time.Now().UTC(),
	}
	if err := m.store.SetCursor(ctx, c); err != nil {
		return fmt.Errorf("persist cursor for %s: %w", branch, err)
	}
	m.cursors[branch] = c
	return nil
}

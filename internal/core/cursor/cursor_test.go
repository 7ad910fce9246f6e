package cursor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vietddude/pushwatch/internal/core/domain"
)

func TestLoadMissingCursor(t *testing.T) {
	m := NewManager(NewMemoryStore())
	_, found, err := m.Load(context.Background(), "main")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if found {
		t.Error("found a cursor on a fresh store")
	}
}

func TestAdvanceAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store)

	if err := m.Advance(ctx, "main", 10, "rev10"); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	c, found, err := m.Load(ctx, "main")
	if err != nil || !found {
		t.Fatalf("Load = %v found=%v", err, found)
	}
	if c.PushID != 10 || c.Rev != "rev10" || c.Branch != "main" {
		t.Errorf("cursor = %+v", c)
	}

	// A fresh manager over the same store sees the persisted position.
	c, found, err = NewManager(store).Load(ctx, "main")
	if err != nil || !found {
		t.Fatalf("Load after restart = %v found=%v", err, found)
	}
	if c.PushID != 10 {
		t.Errorf("cursor after restart = %+v", c)
	}
}

func TestAdvanceRejectsStalePush(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	if err := m.Advance(ctx, "main", 10, "rev10"); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	for _, id := range []int{10, 9} {
		if err := m.Advance(ctx, "main", id, "older"); !errors.Is(err, ErrStalePush) {
			t.Errorf("Advance to %d error = %v, want ErrStalePush", id, err)
		}
	}

	c, _, _ := m.Load(ctx, "main")
	if c.PushID != 10 || c.Rev != "rev10" {
		t.Errorf("cursor moved by stale advance: %+v", c)
	}
}

func TestBranchesAreIndependent(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	if err := m.Advance(ctx, "main", 100, "m100"); err != nil {
		t.Fatal(err)
	}
	if err := m.Advance(ctx, "beta", 5, "b5"); err != nil {
		t.Errorf("advance on second branch rejected: %v", err)
	}
}

type failingStore struct{}

func (failingStore) GetCursor(context.Context, string) (*domain.Cursor, bool, error) {
	return nil, false, fmt.Errorf("store offline")
}

func (failingStore) SetCursor(context.Context, *domain.Cursor) error {
	return fmt.Errorf("store offline")
}

func TestAdvanceKeepsPositionOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	m := NewManager(failingStore{})

	if err := m.Advance(ctx, "main", 10, "rev10"); err == nil {
		t.Fatal("Advance succeeded against a failing store")
	}
	// The in-process cache must not record a position the store rejected.
	if _, found, err := m.Load(ctx, "main"); err == nil && found {
		t.Error("cursor cached despite persist failure")
	}
}

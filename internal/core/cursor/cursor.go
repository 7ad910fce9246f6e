// Package cursor tracks classification progress per branch.
//
// The cursor acts as a bookmark that remembers the newest push a monitor
// has classified on each branch. Persisted through a Store, it lets a
// restarted monitor skip heads that already have a stored outcome instead
// of reclassifying them.
//
// Advances are monotonic: a push older than the current cursor is rejected
// with ErrStalePush, so two monitors fighting over one branch cannot move
// the bookmark backwards.
package cursor

import (
	"context"
	"errors"

	"github.com/vietddude/pushwatch/internal/core/domain"
)

// ErrStalePush is returned when an advance targets a push at or behind the
// current cursor position.
var ErrStalePush = errors.New("push is at or behind the cursor")

// Store persists cursors. The redis client implements it; MemoryStore
// covers deployments without one.
type Store interface {
	GetCursor(ctx context.Context, branch string) (*domain.Cursor, bool, error)
	SetCursor(ctx context.Context, c *domain.Cursor) error
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/pushwatch/internal/core/domain"
)

// Key helpers
func tasksKey(branch, rev string) string {
	return fmt.Sprintf("push_tasks:%s:%s", branch, rev)
}

func selectionKey(branch, rev string) string {
	return fmt.Sprintf("push_selection:%s:%s", branch, rev)
}

// GetTasks returns the cached task list for a push, if present.
func (c *Client) GetTasks(ctx context.Context, branch, rev string) ([]*domain.Task, bool, error) {
	var tasks []*domain.Task
	found, err := c.getJSON(ctx, tasksKey(branch, rev), &tasks)
	return tasks, found, err
}

// SetTasks caches the task list for a push. Callers only cache finalized
// pushes; an in-flight push would serve stale task states.
func (c *Client) SetTasks(ctx context.Context, branch, rev string, tasks []*domain.Task, ttl time.Duration) error {
	return c.setJSON(ctx, tasksKey(branch, rev), tasks, ttl)
}

// GetSelection returns the cached selection payload for a push, if present.
func (c *Client) GetSelection(ctx context.Context, branch, rev string) (*domain.SelectionData, bool, error) {
	var data domain.SelectionData
	found, err := c.getJSON(ctx, selectionKey(branch, rev), &data)
	if !found || err != nil {
		return nil, found, err
	}
	return &data, true, nil
}

// SetSelection caches the selection payload for a push. Selection data is
// computed once per push and never changes, so any TTL is safe.
func (c *Client) SetSelection(ctx context.Context, branch, rev string, data *domain.SelectionData, ttl time.Duration) error {
	return c.setJSON(ctx, selectionKey(branch, rev), data, ttl)
}

func cursorKey(branch string) string {
	return fmt.Sprintf("branch_cursor:%s", branch)
}

// GetCursor returns the persisted classification cursor for a branch.
func (c *Client) GetCursor(ctx context.Context, branch string) (*domain.Cursor, bool, error) {
	var cur domain.Cursor
	found, err := c.getJSON(ctx, cursorKey(branch), &cur)
	if !found || err != nil {
		return nil, found, err
	}
	return &cur, true, nil
}

// SetCursor persists a branch cursor. Cursors never expire; a branch that
// stops being watched leaves one stale key behind.
func (c *Client) SetCursor(ctx context.Context, cur *domain.Cursor) error {
	return c.setJSON(ctx, cursorKey(cur.Branch), cur, 0)
}

// InvalidatePush drops every cached entry for a push.
func (c *Client) InvalidatePush(ctx context.Context, branch, rev string) error {
	return c.rdb.Del(ctx, tasksKey(branch, rev), selectionKey(branch, rev)).Err()
}

func (c *Client) getJSON(ctx context.Context, key string, out any) (bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s failed: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false, fmt.Errorf("decode %s failed: %w", key, err)
	}
	return true, nil
}

func (c *Client) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s failed: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set %s failed: %w", key, err)
	}
	return nil
}

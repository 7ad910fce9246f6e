// Package memory provides an in-memory ClassificationRepository, used by
// the one-shot CLI and in tests where no database is available.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/pushwatch/internal/core/domain"
	"github.com/vietddude/pushwatch/internal/infra/storage"
)

// ClassificationRepo keeps records in a map keyed by branch/rev.
type ClassificationRepo struct {
	mu      sync.RWMutex
	records map[string]*domain.ClassificationRecord
}

func NewClassificationRepo() *ClassificationRepo {
	return &ClassificationRepo{records: map[string]*domain.ClassificationRecord{}}
}

func key(branch, rev string) string { return branch + "/" + rev }

func (r *ClassificationRepo) Save(_ context.Context, rec *domain.ClassificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.records[key(rec.Branch, rec.Rev)] = &cp
	return nil
}

func (r *ClassificationRepo) GetByRev(_ context.Context, branch, rev string) (*domain.ClassificationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[key(branch, rev)]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *ClassificationRepo) Latest(_ context.Context, branch string, limit int) ([]*domain.ClassificationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.ClassificationRecord
	for _, rec := range r.records {
		if rec.Branch == branch {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ClassificationRepo) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, rec := range r.records {
		if rec.CreatedAt.Before(before) {
			delete(r.records, k)
			n++
		}
	}
	return n, nil
}

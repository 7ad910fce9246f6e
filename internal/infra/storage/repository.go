package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/pushwatch/internal/core/domain"
)

var (
	// ErrRecordNotFound is returned when no classification exists for a push
	ErrRecordNotFound = errors.New("classification record not found")
)

// ClassificationRepository persists classification outcomes.
type ClassificationRepository interface {
	// Save stores a record, assigning an id when it has none. Classifying
	// the same push again overwrites the previous outcome.
	Save(ctx context.Context, rec *domain.ClassificationRecord) error

	// GetByRev retrieves the record for one push
	GetByRev(ctx context.Context, branch, rev string) (*domain.ClassificationRecord, error)

	// Latest retrieves the most recent records for a branch, newest first
	Latest(ctx context.Context, branch string, limit int) ([]*domain.ClassificationRecord, error)

	// DeleteOlderThan removes records created before the threshold and
	// returns how many were removed
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

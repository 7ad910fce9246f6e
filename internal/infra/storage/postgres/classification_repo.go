package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/vietddude/pushwatch/internal/core/domain"
	"github.com/vietddude/pushwatch/internal/infra/storage"
)

// ClassificationRepo implements storage.ClassificationRepository using
// PostgreSQL.
type ClassificationRepo struct {
	db *DB
}

// NewClassificationRepo creates a new PostgreSQL classification repository.
func NewClassificationRepo(db *DB) *ClassificationRepo {
	return &ClassificationRepo{db: db}
}

// Save stores a classification outcome, replacing any earlier outcome for
// the same push.
func (r *ClassificationRepo) Save(ctx context.Context, rec *domain.ClassificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO classifications
			(id, branch, rev, status, real_groups, intermittent_groups, unknown_groups,
			 real_retriggers, intermittent_retriggers, backfills, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (branch, rev) DO UPDATE SET
			status = EXCLUDED.status,
			real_groups = EXCLUDED.real_groups,
			intermittent_groups = EXCLUDED.intermittent_groups,
			unknown_groups = EXCLUDED.unknown_groups,
			real_retriggers = EXCLUDED.real_retriggers,
			intermittent_retriggers = EXCLUDED.intermittent_retriggers,
			backfills = EXCLUDED.backfills,
			created_at = EXCLUDED.created_at
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.Branch,
		rec.Rev,
		string(rec.Status),
		pq.Array(rec.Real),
		pq.Array(rec.Intermittent),
		pq.Array(rec.Unknown),
		pq.Array(rec.RealRetrigger),
		pq.Array(rec.IntermittentRetrigger),
		pq.Array(rec.Backfill),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save classification: %w", err)
	}
	return nil
}

// GetByRev retrieves the classification for one push.
func (r *ClassificationRepo) GetByRev(ctx context.Context, branch, rev string) (*domain.ClassificationRecord, error) {
	query := `
		SELECT id, branch, rev, status, real_groups, intermittent_groups, unknown_groups,
		       real_retriggers, intermittent_retriggers, backfills, created_at
		FROM classifications
		WHERE branch = $1 AND rev = $2
	`
	row := r.db.QueryRowxContext(ctx, query, branch, rev)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}
	return rec, nil
}

// Latest retrieves the most recent classifications for a branch.
func (r *ClassificationRepo) Latest(ctx context.Context, branch string, limit int) ([]*domain.ClassificationRecord, error) {
	query := `
		SELECT id, branch, rev, status, real_groups, intermittent_groups, unknown_groups,
		       real_retriggers, intermittent_retriggers, backfills, created_at
		FROM classifications
		WHERE branch = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryxContext(ctx, query, branch, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list classifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.ClassificationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes classifications created before the threshold.
func (r *ClassificationRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classifications WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune classifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*domain.ClassificationRecord, error) {
	var (
		rec    domain.ClassificationRecord
		status string
		real   pq.StringArray
		inter  pq.StringArray
		unk    pq.StringArray
		realRT pq.StringArray
		intRT  pq.StringArray
		bf     pq.StringArray
	)
	err := row.Scan(
		&rec.ID, &rec.Branch, &rec.Rev, &status,
		&real, &inter, &unk, &realRT, &intRT, &bf,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.PushStatus(status)
	rec.Real = real
	rec.Intermittent = inter
	rec.Unknown = unk
	rec.RealRetrigger = realRT
	rec.IntermittentRetrigger = intRT
	rec.Backfill = bf
	return &rec, nil
}

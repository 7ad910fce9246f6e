// Package worker holds background maintenance loops that run beside the
// branch monitors.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/pushwatch/internal/infra/storage"
)

// Pruner deletes classification records older than the retention period.
type Pruner struct {
	retention time.Duration
	repo      storage.ClassificationRepository
	log       *slog.Logger
}

// NewPruner creates a pruner. A zero retention disables it.
func NewPruner(retention time.Duration, repo storage.ClassificationRepository, log *slog.Logger) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{retention: retention, repo: repo, log: log}
}

// Start runs the prune loop until the context is cancelled. The check
// interval tracks the retention period: a tenth of it, clamped between one
// minute and one hour.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return
	}

	interval := min(p.retention/10, time.Hour)
	interval = max(interval, time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.prune(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	threshold := time.Now().UTC().Add(-p.retention)
	n, err := p.repo.DeleteOlderThan(ctx, threshold)
	if err != nil {
		p.log.Error("Failed to prune classifications", "error", err)
		return
	}
	if n > 0 {
		p.log.Info("Pruned old classifications", "removed", n, "older_than", threshold)
	}
}

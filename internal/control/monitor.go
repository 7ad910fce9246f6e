package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/pushwatch/internal/core/config"
	"github.com/vietddude/pushwatch/internal/core/cursor"
	"github.com/vietddude/pushwatch/internal/core/domain"
	"github.com/vietddude/pushwatch/internal/infra/storage"
	"github.com/vietddude/pushwatch/internal/triage/classify"
	"github.com/vietddude/pushwatch/internal/triage/health"
	"github.com/vietddude/pushwatch/internal/triage/metrics"
	"github.com/vietddude/pushwatch/internal/triage/push"
)

// Monitor polls one branch's head push and classifies it. It owns when
// classification runs; acting on the resulting plan is left to whoever
// reads the stored records.
type Monitor struct {
	branch    config.BranchConfig
	svc       *push.Services
	engine    *classify.Engine
	repo      storage.ClassificationRepository
	cursors   *cursor.Manager
	healthMon *health.Monitor
	log       *slog.Logger

	lastRev string
}

func NewMonitor(
	branch config.BranchConfig,
	svc *push.Services,
	engine *classify.Engine,
	repo storage.ClassificationRepository,
	cursors *cursor.Manager,
	healthMon *health.Monitor,
	log *slog.Logger,
) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		branch:    branch,
		svc:       svc,
		engine:    engine,
		repo:      repo,
		cursors:   cursors,
		healthMon: healthMon,
		log:       log.With("branch", branch.Name),
	}
}

// Run polls until the context is cancelled. Cycle failures are reported to
// health and metrics but never stop the loop.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.branch.PollInterval)
	defer ticker.Stop()

	m.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.cycle(ctx)
		}
	}
}

func (m *Monitor) cycle(ctx context.Context) {
	head, err := m.svc.VCS.Head(ctx, m.branch.Name)
	if err != nil {
		m.log.Error("Failed to resolve branch head", "error", err)
		metrics.MonitorErrors.WithLabelValues(m.branch.Name).Inc()
		m.healthMon.ReportRun(m.branch.Name, 0, "", err)
		return
	}
	metrics.HeadPushID.WithLabelValues(m.branch.Name).Set(float64(head.ID))

	// First cycle after a restart: resume from the persisted cursor so a
	// head that already has a stored outcome is not reclassified.
	if m.lastRev == "" {
		if c, found, err := m.cursors.Load(ctx, m.branch.Name); err != nil {
			m.log.Warn("Failed to load cursor, reclassifying head", "error", err)
		} else if found && c.PushID >= head.ID {
			m.lastRev = c.Rev
		}
	}

	if head.Rev == m.lastRev {
		m.healthMon.ReportRun(m.branch.Name, head.ID, head.Rev, nil)
		return
	}

	start := time.Now()
	p := push.FromRecord(m.svc, m.branch.Name, head)
	status, regressions, plan, err := m.engine.Classify(ctx, p)
	if err != nil {
		m.log.Error("Classification failed", "rev", head.Rev, "error", err)
		metrics.MonitorErrors.WithLabelValues(m.branch.Name).Inc()
		m.healthMon.ReportRun(m.branch.Name, head.ID, "", err)
		return
	}
	metrics.ClassifyLatency.WithLabelValues(m.branch.Name).Observe(time.Since(start).Seconds())

	rec := domain.NewClassificationRecord(m.branch.Name, head.Rev, regressions, plan)
	if err := m.repo.Save(ctx, rec); err != nil {
		m.log.Error("Failed to store classification", "rev", head.Rev, "error", err)
		metrics.MonitorErrors.WithLabelValues(m.branch.Name).Inc()
		m.healthMon.ReportRun(m.branch.Name, head.ID, "", err)
		return
	}

	m.observe(status, rec)
	m.healthMon.ReportRun(m.branch.Name, head.ID, head.Rev, nil)
	m.lastRev = head.Rev

	if err := m.cursors.Advance(ctx, m.branch.Name, head.ID, head.Rev); err != nil {
		m.log.Warn("Failed to advance cursor", "rev", head.Rev, "error", err)
	}

	m.log.Info("Classified push",
		"rev", head.Rev,
		"status", status,
		"real", len(rec.Real),
		"intermittent", len(rec.Intermittent),
		"unknown", len(rec.Unknown),
	)
}

func (m *Monitor) observe(status domain.PushStatus, rec *domain.ClassificationRecord) {
	metrics.ClassificationsTotal.WithLabelValues(m.branch.Name, string(status)).Inc()
	metrics.RegressionGroups.WithLabelValues(m.branch.Name, string(domain.VerdictReal)).Add(float64(len(rec.Real)))
	metrics.RegressionGroups.WithLabelValues(m.branch.Name, string(domain.VerdictIntermittent)).Add(float64(len(rec.Intermittent)))
	metrics.RegressionGroups.WithLabelValues(m.branch.Name, string(domain.VerdictUnknown)).Add(float64(len(rec.Unknown)))
	metrics.PlannedActions.WithLabelValues(m.branch.Name, "real_retrigger").Add(float64(len(rec.RealRetrigger)))
	metrics.PlannedActions.WithLabelValues(m.branch.Name, "intermittent_retrigger").Add(float64(len(rec.IntermittentRetrigger)))
	metrics.PlannedActions.WithLabelValues(m.branch.Name, "backfill").Add(float64(len(rec.Backfill)))
}

// Package control wires the application together and drives the per-branch
// monitor loops.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pressly/goose/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/pushwatch/internal/core/config"
	"github.com/vietddude/pushwatch/internal/core/cursor"
	"github.com/vietddude/pushwatch/internal/core/worker"
	"github.com/vietddude/pushwatch/internal/infra/queue"
	redisclient "github.com/vietddude/pushwatch/internal/infra/redis"
	"github.com/vietddude/pushwatch/internal/infra/storage"
	"github.com/vietddude/pushwatch/internal/infra/storage/memory"
	"github.com/vietddude/pushwatch/internal/infra/storage/postgres"
	"github.com/vietddude/pushwatch/internal/infra/vcs"
	"github.com/vietddude/pushwatch/internal/triage/classify"
	"github.com/vietddude/pushwatch/internal/triage/evidence"
	"github.com/vietddude/pushwatch/internal/triage/health"
	"github.com/vietddude/pushwatch/internal/triage/lineage"
	"github.com/vietddude/pushwatch/internal/triage/push"
)

// App is the main application struct managing the monitor lifecycle.
type App struct {
	cfg          *config.AppConfig
	monitors     []*Monitor
	healthMon    *health.Monitor
	healthServer *health.Server
	repo         storage.ClassificationRepository
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// NewApp creates an App with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	log := slog.Default()

	// 1. Storage
	var repo storage.ClassificationRepository
	var db *postgres.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		repo = postgres.NewClassificationRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		repo = memory.NewClassificationRepo()
		log.Info("Using Memory storage")
	}

	// 2. Cache
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, caching disabled", "error", err)
			redisClient = nil
		}
	}

	// 3. Remote clients and the evidence chain
	vcsClient := vcs.NewClient(cfg.VCS, log)
	queueClient := queue.NewClient(cfg.Queue, log)

	sources := []evidence.Source{evidence.NewArtifactSource(queueClient)}
	if cfg.Selection.ServiceURL != "" {
		sources = append(sources, evidence.NewServiceSource(
			cfg.Selection.ServiceURL,
			&http.Client{},
			evidence.RetryPolicy{
				MaxAttempts: cfg.Selection.RetryAttempts,
				Interval:    cfg.Selection.RetryInterval,
				Timeout:     cfg.Selection.RetryTimeout,
			},
			log,
		))
	}
	chain := evidence.NewChain(log, sources...)

	// 4. Engine
	engine := classify.NewEngine(classify.Options{
		HighConfidence:         cfg.Selection.HighConfidence,
		UnknownFromRegressions: cfg.Selection.UnknownDefaults(),
		ConsiderSiblingConfigs: cfg.Selection.Siblings(),
	}, log)

	// 5. Cursors
	var cursorStore cursor.Store = cursor.NewMemoryStore()
	if redisClient != nil {
		cursorStore = redisClient
	}
	cursors := cursor.NewManager(cursorStore)

	// 6. Health
	healthMon := health.NewMonitor(0)
	if db != nil {
		healthMon.RegisterChecker("database", db.Health)
	}
	healthServer := health.NewServer(healthMon, cfg.Server.Port)

	// 7. Per-branch monitors
	var monitors []*Monitor
	for _, branch := range cfg.Branches {
		svc := &push.Services{
			VCS:      vcsClient,
			Queue:    queueClient,
			Evidence: chain,
			Cache:    redisClient,
			Lineage:  lineage.NewResolver(branch.LineageWindow, log),
			Log:      log,
		}
		monitors = append(monitors, NewMonitor(branch, svc, engine, repo, cursors, healthMon, log))
	}

	return &App{
		cfg:          cfg,
		monitors:     monitors,
		healthMon:    healthMon,
		healthServer: healthServer,
		repo:         repo,
		db:           db,
		redisClient:  redisClient,
		log:          log,
	}, nil
}

// Repository exposes the classification store for the CLI.
func (a *App) Repository() storage.ClassificationRepository { return a.repo }

// Run starts the health server and every branch monitor, then blocks until
// the context is cancelled or a monitor fails.
func (a *App) Run(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil && err != http.ErrServerClosed {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	go worker.NewPruner(a.cfg.Database.Retention, a.repo, a.log).Start(ctx)

	g, ctx := errgroup.WithContext(ctx)
	for _, m := range a.monitors {
		m := m
		a.log.Info("Starting branch monitor", "branch", m.branch.Name)
		g.Go(func() error { return m.Run(ctx) })
	}
	return g.Wait()
}

// Stop shuts the app down.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping...")

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
	return a.healthServer.Stop(ctx)
}

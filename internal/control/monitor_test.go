package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/pushwatch/internal/core/config"
	"github.com/vietddude/pushwatch/internal/core/cursor"
	"github.com/vietddude/pushwatch/internal/core/domain"
	"github.com/vietddude/pushwatch/internal/infra/queue"
	"github.com/vietddude/pushwatch/internal/infra/storage"
	"github.com/vietddude/pushwatch/internal/infra/storage/memory"
	"github.com/vietddude/pushwatch/internal/infra/vcs"
	"github.com/vietddude/pushwatch/internal/triage/classify"
	"github.com/vietddude/pushwatch/internal/triage/evidence"
	"github.com/vietddude/pushwatch/internal/triage/health"
	"github.com/vietddude/pushwatch/internal/triage/lineage"
	"github.com/vietddude/pushwatch/internal/triage/push"
)

// testVCS serves a single-push branch: id 1, rev "rev1". indexHits counts
// head lookups so tests can assert how often a cycle went remote.
func testVCS(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/main/json-pushes", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"pushes": map[string]any{
				"1": map[string]any{"changesets": []string{"rev1"}, "date": 1001},
			},
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return httptest.NewServer(mux)
}

// testQueue serves rev1's task graph: one failing run of group1 and one
// passing run of group2, on different configurations.
func testQueue(t *testing.T, indexHits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/index/v1/task/gecko.v2.main.revision.rev1.taskgraph.decision",
		func(w http.ResponseWriter, r *http.Request) {
			indexHits.Add(1)
			json.NewEncoder(w).Encode(map[string]string{"taskId": "decision-1"})
		})
	mux.HandleFunc("/queue/v1/task/decision-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"taskGroupId": "tg-1"})
	})
	mux.HandleFunc("/queue/v1/task-group/tg-1/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"tasks": []map[string]any{
			{
				"status": map[string]any{
					"taskId": "t1", "state": "failed",
					"runs": []map[string]any{{"reasonResolved": "failed"}},
				},
				"task": map[string]any{
					"tags":  map[string]any{"label": "test-linux/opt-suite-1"},
					"extra": map[string]any{"treeherder": map[string]any{"tier": 1}},
				},
			},
			{
				"status": map[string]any{
					"taskId": "t2", "state": "completed",
					"runs": []map[string]any{{"reasonResolved": "completed"}},
				},
				"task": map[string]any{
					"tags":  map[string]any{"label": "test-win/debug-suite-1"},
					"extra": map[string]any{"treeherder": map[string]any{"tier": 1}},
				},
			},
		}})
	})
	mux.HandleFunc("/queue/v1/task/t1/artifacts/public/test_info/test-groups.json",
		func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"groups": map[string]any{
				"group1": map[string]any{"ok": false, "duration": 10},
			}})
		})
	mux.HandleFunc("/queue/v1/task/t2/artifacts/public/test_info/test-groups.json",
		func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"groups": map[string]any{
				"group2": map[string]any{"ok": true, "duration": 10},
			}})
		})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return httptest.NewServer(mux)
}

type fixedSelection struct {
	data *domain.SelectionData
}

func (s *fixedSelection) Name() string { return "fixed" }

func (s *fixedSelection) FetchSelection(ctx context.Context, branch, rev string) (*domain.SelectionData, error) {
	return s.data, nil
}

func testMonitor(t *testing.T, vcsURL, queueURL string, repo storage.ClassificationRepository, healthMon *health.Monitor) *Monitor {
	return testMonitorWithCursors(t, vcsURL, queueURL, repo, cursor.NewManager(cursor.NewMemoryStore()), healthMon)
}

func testMonitorWithCursors(t *testing.T, vcsURL, queueURL string, repo storage.ClassificationRepository, cursors *cursor.Manager, healthMon *health.Monitor) *Monitor {
	t.Helper()
	log := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	svc := &push.Services{
		VCS:   vcs.NewClient(vcs.Config{BaseURL: vcsURL}, log),
		Queue: queue.NewClient(queue.Config{RootURL: queueURL}, log),
		Evidence: evidence.NewChain(log, &fixedSelection{
			data: &domain.SelectionData{Groups: map[string]float64{"group1": 0.95}},
		}),
		Lineage: lineage.NewResolver(0, log),
		Log:     log,
	}
	engine := classify.NewEngine(classify.Options{
		HighConfidence:         0.8,
		UnknownFromRegressions: true,
		ConsiderSiblingConfigs: false,
	}, log)
	branch := config.BranchConfig{Name: "main", PollInterval: time.Minute}
	return NewMonitor(branch, svc, engine, repo, cursors, healthMon, log)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestMonitorCycleClassifiesHead(t *testing.T) {
	vcsSrv := testVCS(t)
	defer vcsSrv.Close()
	var indexHits atomic.Int64
	queueSrv := testQueue(t, &indexHits)
	defer queueSrv.Close()

	repo := memory.NewClassificationRepo()
	healthMon := health.NewMonitor(0)
	m := testMonitor(t, vcsSrv.URL, queueSrv.URL, repo, healthMon)

	m.cycle(context.Background())

	rec, err := repo.GetByRev(context.Background(), "main", "rev1")
	if err != nil {
		t.Fatalf("no record stored: %v", err)
	}
	// group1: high confidence, possible regression, single config, known
	// pattern. That stays unknown pending a backfill and a retrigger.
	if rec.Status != domain.PushStatusUnknown {
		t.Errorf("status = %s, want %s", rec.Status, domain.PushStatusUnknown)
	}
	if len(rec.Unknown) != 1 || rec.Unknown[0] != "group1" {
		t.Errorf("unknown groups = %v, want [group1]", rec.Unknown)
	}
	if len(rec.Real) != 0 || len(rec.Intermittent) != 0 {
		t.Errorf("real = %v intermittent = %v, want both empty", rec.Real, rec.Intermittent)
	}
	if len(rec.Backfill) != 1 || rec.Backfill[0] != "group1" {
		t.Errorf("backfill = %v, want [group1]", rec.Backfill)
	}
	if len(rec.IntermittentRetrigger) != 1 || rec.IntermittentRetrigger[0] != "group1" {
		t.Errorf("intermittent retriggers = %v, want [group1]", rec.IntermittentRetrigger)
	}

	report := healthMon.CheckHealth(context.Background())
	b, ok := report.Branches["main"]
	if !ok {
		t.Fatal("branch missing from health report")
	}
	if b.Status != health.StatusHealthy || b.HeadPushID != 1 || b.LastClassified != "rev1" {
		t.Errorf("branch health = %+v", b)
	}
}

func TestMonitorSkipsUnchangedHead(t *testing.T) {
	vcsSrv := testVCS(t)
	defer vcsSrv.Close()
	var indexHits atomic.Int64
	queueSrv := testQueue(t, &indexHits)
	defer queueSrv.Close()

	repo := memory.NewClassificationRepo()
	healthMon := health.NewMonitor(0)
	m := testMonitor(t, vcsSrv.URL, queueSrv.URL, repo, healthMon)

	m.cycle(context.Background())
	m.cycle(context.Background())

	if got := indexHits.Load(); got != 1 {
		t.Errorf("decision task resolved %d times, want 1", got)
	}
	// The skipped cycle still counts as a healthy run.
	b := healthMon.CheckHealth(context.Background()).Branches["main"]
	if b.Status != health.StatusHealthy || b.LastClassified != "rev1" {
		t.Errorf("branch health after skip = %+v", b)
	}
}

func TestMonitorReportsHeadFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	repo := memory.NewClassificationRepo()
	healthMon := health.NewMonitor(0)
	m := testMonitor(t, srv.URL, srv.URL, repo, healthMon)

	m.cycle(context.Background())

	b, ok := healthMon.CheckHealth(context.Background()).Branches["main"]
	if !ok {
		t.Fatal("branch missing from health report")
	}
	if b.Status != health.StatusDegraded || b.LastError == "" {
		t.Errorf("branch health = %+v, want degraded with error", b)
	}
	if _, err := repo.GetByRev(context.Background(), "main", "rev1"); !errors.Is(err, storage.ErrRecordNotFound) {
		t.Errorf("GetByRev error = %v, want ErrRecordNotFound", err)
	}
}

type failingRepo struct{}

func (failingRepo) Save(ctx context.Context, rec *domain.ClassificationRecord) error {
	return fmt.Errorf("save: disk full")
}

func (failingRepo) GetByRev(ctx context.Context, branch, rev string) (*domain.ClassificationRecord, error) {
	return nil, storage.ErrRecordNotFound
}

func (failingRepo) Latest(ctx context.Context, branch string, limit int) ([]*domain.ClassificationRecord, error) {
	return nil, nil
}

func (failingRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func TestMonitorRetriesAfterStoreFailure(t *testing.T) {
	vcsSrv := testVCS(t)
	defer vcsSrv.Close()
	var indexHits atomic.Int64
	queueSrv := testQueue(t, &indexHits)
	defer queueSrv.Close()

	healthMon := health.NewMonitor(0)
	m := testMonitor(t, vcsSrv.URL, queueSrv.URL, failingRepo{}, healthMon)

	m.cycle(context.Background())

	if m.lastRev != "" {
		t.Errorf("lastRev = %q, want empty after store failure", m.lastRev)
	}
	b := healthMon.CheckHealth(context.Background()).Branches["main"]
	if b.Status != health.StatusDegraded {
		t.Errorf("branch status = %s, want degraded", b.Status)
	}
}

func TestMonitorResumesFromCursor(t *testing.T) {
	vcsSrv := testVCS(t)
	defer vcsSrv.Close()
	var indexHits atomic.Int64
	queueSrv := testQueue(t, &indexHits)
	defer queueSrv.Close()

	store := cursor.NewMemoryStore()
	cursors := cursor.NewManager(store)
	if err := cursors.Advance(context.Background(), "main", 1, "rev1"); err != nil {
		t.Fatal(err)
	}

	repo := memory.NewClassificationRepo()
	healthMon := health.NewMonitor(0)
	// A fresh manager over the same store simulates a restart.
	m := testMonitorWithCursors(t, vcsSrv.URL, queueSrv.URL, repo, cursor.NewManager(store), healthMon)

	m.cycle(context.Background())

	if got := indexHits.Load(); got != 0 {
		t.Errorf("head reclassified %d times despite cursor, want 0", got)
	}
	b := healthMon.CheckHealth(context.Background()).Branches["main"]
	if b.Status != health.StatusHealthy {
		t.Errorf("branch status = %s, want healthy", b.Status)
	}
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	vcsSrv := testVCS(t)
	defer vcsSrv.Close()
	var indexHits atomic.Int64
	queueSrv := testQueue(t, &indexHits)
	defer queueSrv.Close()

	m := testMonitor(t, vcsSrv.URL, queueSrv.URL, memory.NewClassificationRepo(), health.NewMonitor(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

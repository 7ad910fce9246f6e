// Package push assembles everything known about one push: its place in the
// branch history, the tasks that ran, the per-group rollups, and the
// model's selection payload. It is the concrete evidence surface behind the
// classification engine.
package push

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/pushwatch/internal/core/domain"
	"github.com/vietddude/pushwatch/internal/infra/queue"
	redisclient "github.com/vietddude/pushwatch/internal/infra/redis"
	"github.com/vietddude/pushwatch/internal/infra/vcs"
	"github.com/vietddude/pushwatch/internal/triage/evidence"
	"github.com/vietddude/pushwatch/internal/triage/lineage"
)

const (
	// MaxTier is the highest task tier that counts toward classification.
	MaxTier = 1

	decisionIndexFmt = "gecko.v2.%s.revision.%s.taskgraph.decision"

	cacheTTL = 24 * time.Hour
)

// Services are the remote collaborators a push reads from. Cache may be
// nil; everything else is required.
type Services struct {
	VCS      *vcs.Client
	Queue    *queue.Client
	Evidence *evidence.Chain
	Cache    *redisclient.Client
	Lineage  *lineage.Resolver
	Log      *slog.Logger
}

// Push is one push on one branch. All evidence accessors are lazy and
// memoized; a Push is safe for concurrent use.
type Push struct {
	svc *Services

	branch string
	rev    string
	id     int
	date   int64
	merge  bool
	bugs   map[string]struct{}

	mu        sync.Mutex
	tasks     []*domain.Task
	summaries map[string]*domain.GroupSummary
	selection *domain.SelectionData
	likely    map[string]struct{}
	possible  map[string]struct{}
	resolved  bool
}

// New resolves a revision to a push.
func New(ctx context.Context, svc *Services, branch, rev string) (*Push, error) {
	rec, err := svc.VCS.PushForRevision(ctx, branch, rev)
	if err != nil {
		return nil, err
	}
	return fromRecord(svc, branch, rec), nil
}

// FromRecord builds a Push from an already-resolved VCS record, sparing a
// second revision lookup when the caller just fetched one.
func FromRecord(svc *Services, branch string, rec *vcs.Push) *Push {
	return fromRecord(svc, branch, rec)
}

func fromRecord(svc *Services, branch string, rec *vcs.Push) *Push {
	if svc.Log == nil {
		svc.Log = slog.Default()
	}
	return &Push{
		svc:    svc,
		branch: branch,
		rev:    rec.Rev,
		id:     rec.ID,
		date:   rec.Date,
		merge:  rec.Merge,
		bugs:   rec.Bugs,
	}
}

func (p *Push) Branch() string { return p.branch }
func (p *Push) Rev() string    { return p.rev }
func (p *Push) ID() int        { return p.id }
func (p *Push) Date() int64    { return p.date }

// Bugs returns the bug ids referenced by the push's changesets.
func (p *Push) Bugs() map[string]struct{} { return p.bugs }

// Parent returns the previous push on the branch. Merge pushes have no
// linear parent, and the first push of recorded history has none either;
// both map to ParentPushNotFoundError.
func (p *Push) Parent(ctx context.Context) (*Push, error) {
	if p.merge {
		return nil, &domain.ParentPushNotFoundError{
			Rev: p.rev, Branch: p.branch, Reason: "merge commit has no linear parent",
		}
	}
	if p.id <= 1 {
		return nil, &domain.ParentPushNotFoundError{
			Rev: p.rev, Branch: p.branch, Reason: "start of recorded history",
		}
	}
	rec, ok, err := p.svc.VCS.PushByID(ctx, p.branch, p.id-1)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.ParentPushNotFoundError{
			Rev: p.rev, Branch: p.branch, Reason: "no push head found for previous id",
		}
	}
	return fromRecord(p.svc, p.branch, rec), nil
}

// Child returns the next push on the branch, or ChildPushNotFoundError when
// this push is still the branch head.
func (p *Push) Child(ctx context.Context) (*Push, error) {
	rec, ok, err := p.svc.VCS.PushByID(ctx, p.branch, p.id+1)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.ChildPushNotFoundError{
			Rev: p.rev, Branch: p.branch, Reason: "push is the branch head",
		}
	}
	return fromRecord(p.svc, p.branch, rec), nil
}

// IterateParents returns up to n ancestors, nearest first. Hitting the
// start of usable history early is not an error.
func (p *Push) IterateParents(ctx context.Context, n int) ([]*Push, error) {
	var out []*Push
	node := p
	for i := 0; i < n; i++ {
		parent, err := node.Parent(ctx)
		if err != nil {
			if _, ok := err.(*domain.ParentPushNotFoundError); ok {
				return out, nil
			}
			return nil, err
		}
		out = append(out, parent)
		node = parent
	}
	return out, nil
}

// IterateChildren returns up to n descendants, nearest first.
func (p *Push) IterateChildren(ctx context.Context, n int) ([]*Push, error) {
	var out []*Push
	node := p
	for i := 0; i < n; i++ {
		child, err := node.Child(ctx)
		if err != nil {
			if _, ok := err.(*domain.ChildPushNotFoundError); ok {
				return out, nil
			}
			return nil, err
		}
		out = append(out, child)
		node = child
	}
	return out, nil
}

// Tasks returns the push's tier-eligible tasks with their per-group
// results. Finalized pushes are served from and written to the cache;
// pushes still running are always re-read, their task states move.
func (p *Push) Tasks(ctx context.Context) ([]*domain.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tasksLocked(ctx)
}

func (p *Push) tasksLocked(ctx context.Context) ([]*domain.Task, error) {
	if p.tasks != nil {
		return p.tasks, nil
	}

	if p.svc.Cache != nil {
		tasks, found, err := p.svc.Cache.GetTasks(ctx, p.branch, p.rev)
		if err != nil {
			p.svc.Log.Warn("task cache read failed", "rev", p.rev, "error", err)
		} else if found {
			p.tasks = tasks
			return tasks, nil
		}
	}

	decisionID, err := p.svc.Queue.FindIndexedTask(ctx, fmt.Sprintf(decisionIndexFmt, p.branch, p.rev))
	if err != nil {
		return nil, fmt.Errorf("resolve decision task for %s: %w", p.rev, err)
	}
	groupID, err := p.svc.Queue.TaskGroupID(ctx, decisionID)
	if err != nil {
		return nil, fmt.Errorf("resolve task group for %s: %w", p.rev, err)
	}
	tasks, err := p.svc.Queue.ListTaskGroup(ctx, groupID, MaxTier)
	if err != nil {
		return nil, fmt.Errorf("list task group %s: %w", groupID, err)
	}

	for _, t := range tasks {
		if !t.IsCompleted() {
			continue
		}
		results, err := p.svc.Queue.TaskGroupResults(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch group results for task %s: %w", t.ID, err)
		}
		t.Results = results
		if t.Result == domain.TaskResultFailed && t.Classification == "" {
			t.Classification = domain.TagNotClassified
		}
	}

	p.tasks = tasks
	if p.svc.Cache != nil && finalized(tasks) {
		if err := p.svc.Cache.SetTasks(ctx, p.branch, p.rev, tasks, cacheTTL); err != nil {
			p.svc.Log.Warn("task cache write failed", "rev", p.rev, "error", err)
		}
	}
	return tasks, nil
}

func finalized(tasks []*domain.Task) bool {
	for _, t := range tasks {
		if !t.IsCompleted() {
			return false
		}
	}
	return true
}

// GroupSummaries rolls the push's tasks up per test group.
func (p *Push) GroupSummaries(ctx context.Context) (map[string]*domain.GroupSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summariesLocked(ctx)
}

func (p *Push) summariesLocked(ctx context.Context) (map[string]*domain.GroupSummary, error) {
	if p.summaries != nil {
		return p.summaries, nil
	}
	tasks, err := p.tasksLocked(ctx)
	if err != nil {
		return nil, err
	}

	names := map[string]struct{}{}
	for _, t := range tasks {
		for _, r := range t.Results {
			names[r.Group] = struct{}{}
		}
	}
	summaries := make(map[string]*domain.GroupSummary, len(names))
	for name := range names {
		summaries[name] = domain.NewGroupSummary(name, tasks)
	}
	p.summaries = summaries
	return summaries, nil
}

// IsGroupRunning reports whether any task that runs the group is still in
// flight. It never forces a remote fetch; with no summaries loaded yet the
// answer is false.
func (p *Push) IsGroupRunning(group string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.summaries == nil {
		return false
	}
	g, ok := p.summaries[group]
	return ok && g.IsRunning()
}

// TestSelectionData returns the model's selection payload for the push,
// resolved through the evidence chain and cached once obtained.
func (p *Push) TestSelectionData(ctx context.Context) (*domain.SelectionData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.selection != nil {
		return p.selection, nil
	}

	if p.svc.Cache != nil {
		data, found, err := p.svc.Cache.GetSelection(ctx, p.branch, p.rev)
		if err != nil {
			p.svc.Log.Warn("selection cache read failed", "rev", p.rev, "error", err)
		} else if found {
			p.selection = data
			return data, nil
		}
	}

	data, err := p.svc.Evidence.Selection(ctx, p.branch, p.rev)
	if err != nil {
		return nil, err
	}
	p.selection = data
	if p.svc.Cache != nil {
		if err := p.svc.Cache.SetSelection(ctx, p.branch, p.rev, data, cacheTTL); err != nil {
			p.svc.Log.Warn("selection cache write failed", "rev", p.rev, "error", err)
		}
	}
	return data, nil
}

// LikelyRegressions returns the groups whose nearest ancestor run passed.
func (p *Push) LikelyRegressions(ctx context.Context) (map[string]struct{}, error) {
	if err := p.resolveLineage(ctx); err != nil {
		return nil, err
	}
	return p.likely, nil
}

// PossibleRegressions returns the groups with no ancestor run in the
// lineage window.
func (p *Push) PossibleRegressions(ctx context.Context) (map[string]struct{}, error) {
	if err := p.resolveLineage(ctx); err != nil {
		return nil, err
	}
	return p.possible, nil
}

func (p *Push) resolveLineage(ctx context.Context) error {
	p.mu.Lock()
	if p.resolved {
		p.mu.Unlock()
		return nil
	}
	summaries, err := p.summariesLocked(ctx)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	var failing []string
	for name, g := range summaries {
		if len(g.FailingTasks()) > 0 {
			failing = append(failing, name)
		}
	}

	likely, possible, err := p.svc.Lineage.Resolve(ctx, (*lineageNode)(p), failing)
	if err != nil {
		return fmt.Errorf("resolve lineage for %s: %w", p.rev, err)
	}

	p.mu.Lock()
	p.likely, p.possible, p.resolved = likely, possible, true
	p.mu.Unlock()
	return nil
}

// SiblingGroupSummaries returns the named group's summaries from the
// neighboring pushes. Missing neighbors widen nothing and are skipped.
func (p *Push) SiblingGroupSummaries(ctx context.Context, group string) ([]*domain.GroupSummary, error) {
	var out []*domain.GroupSummary
	for _, fetch := range []func(context.Context) (*Push, error){p.Parent, p.Child} {
		sibling, err := fetch(ctx)
		if err != nil {
			switch err.(type) {
			case *domain.ParentPushNotFoundError, *domain.ChildPushNotFoundError:
				continue
			}
			return nil, err
		}
		summaries, err := sibling.GroupSummaries(ctx)
		if err != nil {
			return nil, err
		}
		if g, ok := summaries[group]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

// lineageNode adapts Push to the lineage walker without exporting the
// adapter methods on Push itself.
type lineageNode Push

func (n *lineageNode) Rev() string { return (*Push)(n).rev }

func (n *lineageNode) GroupStatus(ctx context.Context, group string) (domain.GroupStatus, bool, error) {
	summaries, err := (*Push)(n).GroupSummaries(ctx)
	if err != nil {
		return "", false, err
	}
	g, ok := summaries[group]
	if !ok {
		return "", false, nil
	}
	return g.Status(), true, nil
}

func (n *lineageNode) Parent(ctx context.Context) (lineage.PushNode, error) {
	parent, err := (*Push)(n).Parent(ctx)
	if err != nil {
		return nil, err
	}
	return (*lineageNode)(parent), nil
}

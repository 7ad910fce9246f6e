// Package classify holds the regression-classification decision core: it
// combines the evidence tiers gathered for each failing test group of a push
// into a verdict (real / intermittent / unknown), reduces the verdicts to a
// push-level status, and plans the retriggers and backfills that would most
// cheaply resolve whatever stayed unknown.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vietddude/pushwatch/internal/core/domain"
)

// Push is the evidence surface the engine consumes. Implementations fetch
// from remote collaborators; the engine itself performs no I/O beyond these
// calls and never caches what they return.
type Push interface {
	Branch() string
	Rev() string

	// GroupSummaries returns every test group that ran in the push.
	GroupSummaries(ctx context.Context) (map[string]*domain.GroupSummary, error)

	// IsGroupRunning reports whether a run of the group is still in flight.
	IsGroupRunning(group string) bool

	// LikelyRegressions and PossibleRegressions are the lineage-derived
	// regression candidate sets for this push.
	LikelyRegressions(ctx context.Context) (map[string]struct{}, error)
	PossibleRegressions(ctx context.Context) (map[string]struct{}, error)

	// TestSelectionData returns the ML confidence payload for the push.
	TestSelectionData(ctx context.Context) (*domain.SelectionData, error)

	// SiblingGroupSummaries returns the named group's summaries from
	// neighboring pushes, used to widen configuration coverage.
	SiblingGroupSummaries(ctx context.Context, group string) ([]*domain.GroupSummary, error)
}

// Options tune the engine. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// HighConfidence is the score at or above which a confidence tier is
	// high. Scores below it are low; absent scores are none.
	HighConfidence float64

	// UnknownFromRegressions allows defaulting a known, consistently
	// failing group with no causal signal to intermittent instead of
	// leaving it unknown.
	UnknownFromRegressions bool

	// ConsiderSiblingConfigs widens cross-config consistency checks with
	// neighboring pushes' configuration coverage.
	ConsiderSiblingConfigs bool

	// ConfirmThresholds tunes the confirmation pass; nil uses defaults.
	ConfirmThresholds *domain.ConfirmThresholds
}

// DefaultOptions mirror the production sheriffing configuration.
func DefaultOptions() Options {
	return Options{
		HighConfidence:         0.8,
		UnknownFromRegressions: true,
		ConsiderSiblingConfigs: true,
	}
}

// Engine classifies the failing groups of one push. It is stateless and
// safe to share across pushes; a single Classify call is sequential.
type Engine struct {
	opts Options
	log  *slog.Logger
}

// NewEngine creates an engine with the given options.
func NewEngine(opts Options, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{opts: opts, log: log}
}

// Classify evaluates every failing group of the push and returns the
// push-level status, the per-group verdict buckets, and the follow-up plan.
// Missing per-group evidence is part of the decision space; only failures of
// the push-level collaborators (summaries, selection data, lineage) are
// errors, and they propagate untouched.
func (e *Engine) Classify(ctx context.Context, p Push) (domain.PushStatus, *domain.Regressions, *domain.ActionPlan, error) {
	selection, err := p.TestSelectionData(ctx)
	if err != nil {
		return "", nil, nil, err
	}
	likely, err := p.LikelyRegressions(ctx)
	if err != nil {
		return "", nil, nil, fmt.Errorf("resolve likely regressions: %w", err)
	}
	possible, err := p.PossibleRegressions(ctx)
	if err != nil {
		return "", nil, nil, fmt.Errorf("resolve possible regressions: %w", err)
	}
	summaries, err := p.GroupSummaries(ctx)
	if err != nil {
		return "", nil, nil, fmt.Errorf("fetch group summaries: %w", err)
	}

	regressions := domain.NewRegressions()
	plan := domain.NewActionPlan()

	for _, name := range sortedNames(summaries) {
		group := summaries[name]
		failing := group.FailingTasks()
		if len(failing) == 0 {
			continue
		}

		// Confirmation, once computed, is authoritative and bypasses the
		// decision table. Confirmed groups never need more evidence.
		switch group.IsConfirmedFailure(e.opts.ConfirmThresholds) {
		case domain.ConfirmationFailed:
			regressions.Add(domain.VerdictReal, name, failing)
			continue
		case domain.ConfirmationPassed:
			regressions.Add(domain.VerdictIntermittent, name, failing)
			continue
		}

		sig, err := e.signalsFor(ctx, p, group, selection, likely, possible)
		if err != nil {
			return "", nil, nil, err
		}

		verdict, actions := decide(sig, e.opts.UnknownFromRegressions)
		regressions.Add(verdict, name, failing)
		e.planActions(plan, p, name, actions)

		e.log.Debug("classified group",
			"group", name,
			"verdict", verdict,
			"confidence", sig.Confidence,
			"likelihood", sig.Likelihood,
			"consistency", sig.Consistency,
			"freshness", sig.Freshness,
		)
	}

	return regressions.Status(), regressions, plan, nil
}

func (e *Engine) signalsFor(
	ctx context.Context,
	p Push,
	group *domain.GroupSummary,
	selection *domain.SelectionData,
	likely, possible map[string]struct{},
) (Signals, error) {
	score, scored := selection.GroupConfidence(group.Name)

	var consistency domain.Consistency
	if e.opts.ConsiderSiblingConfigs {
		siblings, err := p.SiblingGroupSummaries(ctx, group.Name)
		if err != nil {
			return Signals{}, fmt.Errorf("fetch sibling summaries for %s: %w", group.Name, err)
		}
		consistency = group.IsConfigConsistentFailure(siblings)
	} else {
		consistency = group.IsCrossConfigFailure()
	}

	return Signals{
		Confidence:  confidenceTier(score, scored, e.opts.HighConfidence),
		Likelihood:  likelihoodTier(group.Name, likely, possible),
		Consistency: consistency,
		Freshness:   freshnessTier(group),
	}, nil
}

// planActions accumulates a group's recommendations. Retriggers are skipped
// while a run of the group is already in flight; a backfill targets other
// pushes and still stands.
func (e *Engine) planActions(plan *domain.ActionPlan, p Push, group string, actions []Action) {
	running := p.IsGroupRunning(group)
	for _, a := range actions {
		switch a {
		case ActionRealRetrigger:
			if !running {
				plan.RealRetrigger[group] = struct{}{}
			}
		case ActionIntermittentRetrigger:
			if !running {
				plan.IntermittentRetrigger[group] = struct{}{}
			}
		case ActionBackfill:
			plan.Backfill[group] = struct{}{}
		}
	}
}

func sortedNames(m map[string]*domain.GroupSummary) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

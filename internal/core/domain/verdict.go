package domain

import (
	"sort"
	"time"
)

// Verdict is the per-group classification outcome.
type Verdict string

const (
	VerdictReal         Verdict = "real"
	VerdictIntermittent Verdict = "intermittent"
	VerdictUnknown      Verdict = "unknown"
)

// PushStatus is the push-level classification outcome.
type PushStatus string

const (
	PushStatusGood    PushStatus = "good"
	PushStatusBad     PushStatus = "bad"
	PushStatusUnknown PushStatus = "unknown"
)

// Regressions buckets every failing group of a push under exactly one
// verdict, keyed by group name, with the failing task runs as evidence.
type Regressions struct {
	Real         map[string][]*Task
	Intermittent map[string][]*Task
	Unknown      map[string][]*Task
}

// NewRegressions returns an empty bucket set.
func NewRegressions() *Regressions {
	return &Regressions{
		Real:         map[string][]*Task{},
		Intermittent: map[string][]*Task{},
		Unknown:      map[string][]*Task{},
	}
}

// Add places a group under the bucket matching its verdict.
func (r *Regressions) Add(verdict Verdict, group string, evidence []*Task) {
	switch verdict {
	case VerdictReal:
		r.Real[group] = evidence
	case VerdictIntermittent:
		r.Intermittent[group] = evidence
	case VerdictUnknown:
		r.Unknown[group] = evidence
	}
}

// Status reduces the buckets to a push-level status. Any real regression
// makes the push bad; otherwise any unresolved group blocks a clean verdict;
// a push whose failures are all intermittent is good.
func (r *Regressions) Status() PushStatus {
	switch {
	case len(r.Real) > 0:
		return PushStatusBad
	case len(r.Unknown) > 0:
		return PushStatusUnknown
	default:
		return PushStatusGood
	}
}

// ActionPlan collects the follow-up jobs that would most cheaply resolve
// remaining uncertainty: reruns on this push to confirm a real regression or
// flakiness, and runs on ancestor pushes to find where a failure started.
type ActionPlan struct {
	RealRetrigger         map[string]struct{}
	IntermittentRetrigger map[string]struct{}
	Backfill              map[string]struct{}
}

// NewActionPlan returns an empty plan.
func NewActionPlan() *ActionPlan {
	return &ActionPlan{
		RealRetrigger:         map[string]struct{}{},
		IntermittentRetrigger: map[string]struct{}{},
		Backfill:              map[string]struct{}{},
	}
}

// IsEmpty reports whether the plan recommends no work at all.
func (p *ActionPlan) IsEmpty() bool {
	return len(p.RealRetrigger) == 0 && len(p.IntermittentRetrigger) == 0 && len(p.Backfill) == 0
}

// ClassificationRecord is one persisted classification outcome.
type ClassificationRecord struct {
	ID                    string     `db:"id"`
	Branch                string     `db:"branch"`
	Rev                   string     `db:"rev"`
	Status                PushStatus `db:"status"`
	Real                  []string   `db:"-"`
	Intermittent          []string   `db:"-"`
	Unknown               []string   `db:"-"`
	RealRetrigger         []string   `db:"-"`
	IntermittentRetrigger []string   `db:"-"`
	Backfill              []string   `db:"-"`
	CreatedAt             time.Time  `db:"created_at"`
}

// NewClassificationRecord flattens a classification result for persistence.
func NewClassificationRecord(branch, rev string, regressions *Regressions, plan *ActionPlan) *ClassificationRecord {
	return &ClassificationRecord{
		Branch:                branch,
		Rev:                   rev,
		Status:                regressions.Status(),
		Real:                  sortedKeys(regressions.Real),
		Intermittent:          sortedKeys(regressions.Intermittent),
		Unknown:               sortedKeys(regressions.Unknown),
		RealRetrigger:         sortedSet(plan.RealRetrigger),
		IntermittentRetrigger: sortedSet(plan.IntermittentRetrigger),
		Backfill:              sortedSet(plan.Backfill),
		CreatedAt:             time.Now().UTC(),
	}
}

func sortedKeys(m map[string][]*Task) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

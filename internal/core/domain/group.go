package domain

// GroupStatus is the rolled-up outcome of one test group across a push.
type GroupStatus string

const (
	GroupStatusPass         GroupStatus = "pass"
	GroupStatusFail         GroupStatus = "fail"
	GroupStatusIntermittent GroupStatus = "intermittent"
)

// Consistency describes whether a group failure reproduces across the
// configurations that ran it. Unknown is a first-class state: not enough
// configurations have reported yet to decide either way.
type Consistency int

const (
	ConsistencyUnknown Consistency = iota
	ConsistencyConsistent
	ConsistencyInconsistent
)

func (c Consistency) String() string {
	switch c {
	case ConsistencyConsistent:
		return "consistent"
	case ConsistencyInconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// Confirmation is the outcome of a confirmation pass. When set it is
// authoritative and bypasses every other classification signal.
type Confirmation int

const (
	ConfirmationUnset  Confirmation = iota
	ConfirmationFailed              // reruns reproduced the failure
	ConfirmationPassed              // reruns did not reproduce it
)

func (c Confirmation) String() string {
	switch c {
	case ConfirmationFailed:
		return "failed"
	case ConfirmationPassed:
		return "passed"
	default:
		return "unset"
	}
}

// ConfirmThresholds tunes how many confirmation rerun results settle the
// Confirmation tri-state.
type ConfirmThresholds struct {
	MinFailures int
	MinPasses   int
}

// DefaultConfirmThresholds settles confirmation after two agreeing reruns.
var DefaultConfirmThresholds = ConfirmThresholds{MinFailures: 2, MinPasses: 2}

// minConfigsForConsistency is how many distinct configurations must have
// run a group before a failure counts as cross-config consistent.
const minConfigsForConsistency = 2

// GroupSummary rolls up every task run of one test group within a push.
type GroupSummary struct {
	Name  string
	Tasks []*Task
}

// NewGroupSummary builds a summary over the tasks that ran the named group.
// Tasks without a result for the group are ignored.
func NewGroupSummary(name string, tasks []*Task) *GroupSummary {
	g := &GroupSummary{Name: name}
	for _, t := range tasks {
		if _, ok := t.ResultFor(name); ok {
			g.Tasks = append(g.Tasks, t)
		}
	}
	return g
}

// Status derives the group outcome: intermittent when the group both failed
// and passed within the push, fail when it only failed, pass otherwise.
func (g *GroupSummary) Status() GroupStatus {
	var failed, passed bool
	for _, t := range g.Tasks {
		r, ok := t.ResultFor(g.Name)
		if !ok {
			continue
		}
		if r.OK {
			passed = true
		} else {
			failed = true
		}
	}
	switch {
	case failed && passed:
		return GroupStatusIntermittent
	case failed:
		return GroupStatusFail
	default:
		return GroupStatusPass
	}
}

// FailingTasks returns the tasks in which the group failed, in task order.
// These are the evidence records backing a verdict.
func (g *GroupSummary) FailingTasks() []*Task {
	var out []*Task
	for _, t := range g.Tasks {
		if r, ok := t.ResultFor(g.Name); ok && !r.OK {
			out = append(out, t)
		}
	}
	return out
}

// Classifications returns the triage tags of the failing tasks, ordered.
func (g *GroupSummary) Classifications() []string {
	var out []string
	for _, t := range g.FailingTasks() {
		out = append(out, t.Classification)
	}
	return out
}

// IsNewFailure reports whether any failing task carries the tag marking a
// failure pattern never triaged before.
func (g *GroupSummary) IsNewFailure() bool {
	for _, c := range g.Classifications() {
		if c == TagNewFailure {
			return true
		}
	}
	return false
}

// IsRunning reports whether any task of the group is still in flight.
func (g *GroupSummary) IsRunning() bool {
	for _, t := range g.Tasks {
		if t.State == TaskStateRunning || t.State == TaskStatePending {
			return true
		}
	}
	return false
}

// IsConfirmedFailure evaluates the confirmation pass for this group. It
// returns Unset when no confirmation reruns have completed, or when the
// rerun results are too few to clear the thresholds either way.
func (g *GroupSummary) IsConfirmedFailure(th *ConfirmThresholds) Confirmation {
	if th == nil {
		th = &DefaultConfirmThresholds
	}
	var failures, passes int
	for _, t := range g.Tasks {
		if !t.IsConfirmRun() || !t.IsCompleted() {
			continue
		}
		r, ok := t.ResultFor(g.Name)
		if !ok {
			continue
		}
		if r.OK {
			passes++
		} else {
			failures++
		}
	}
	switch {
	case failures >= th.MinFailures:
		return ConfirmationFailed
	case passes >= th.MinPasses:
		return ConfirmationPassed
	default:
		return ConfirmationUnset
	}
}

// IsCrossConfigFailure decides whether the failure reproduces across the
// configurations of this push alone. Confirmation reruns are excluded: they
// rerun a single config and would skew the coverage count.
func (g *GroupSummary) IsCrossConfigFailure() Consistency {
	return consistencyOver(g.Name, g.Tasks)
}

// IsConfigConsistentFailure is the widened variant: sibling pushes' runs of
// the same group extend the configuration coverage, letting a verdict settle
// before this push has run the group everywhere.
func (g *GroupSummary) IsConfigConsistentFailure(siblings []*GroupSummary) Consistency {
	tasks := append([]*Task{}, g.Tasks...)
	for _, s := range siblings {
		if s != nil && s.Name == g.Name {
			tasks = append(tasks, s.Tasks...)
		}
	}
	return consistencyOver(g.Name, tasks)
}

func consistencyOver(group string, tasks []*Task) Consistency {
	type tally struct{ ok, fail int }
	configs := map[string]*tally{}
	for _, t := range tasks {
		if t.IsConfirmRun() {
			continue
		}
		r, ok := t.ResultFor(group)
		if !ok {
			continue
		}
		c := configs[t.Config()]
		if c == nil {
			c = &tally{}
			configs[t.Config()] = c
		}
		if r.OK {
			c.ok++
		} else {
			c.fail++
		}
	}

	var failed, passed int
	for _, c := range configs {
		if c.fail > 0 {
			failed++
		} else if c.ok > 0 {
			passed++
		}
	}

	switch {
	case failed > 0 && passed > 0:
		return ConsistencyInconsistent
	case failed >= minConfigsForConsistency:
		return ConsistencyConsistent
	default:
		// The failure only ever ran on one config: coverage is too thin
		// to tell a real cross-config failure from a config-local one.
		return ConsistencyUnknown
	}
}

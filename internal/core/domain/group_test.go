package domain

import "testing"

func failTask(id, label, group string) *Task {
	return &Task{
		ID:             id,
		Label:          label,
		State:          TaskStateCompleted,
		Result:         TaskResultFailed,
		Tier:           1,
		Classification: TagNotClassified,
		Results:        []GroupResult{{Group: group, OK: false, Duration: 42}},
	}
}

func passTask(id, label, group string) *Task {
	return &Task{
		ID:      id,
		Label:   label,
		State:   TaskStateCompleted,
		Result:  TaskResultPassed,
		Tier:    1,
		Results: []GroupResult{{Group: group, OK: true, Duration: 42}},
	}
}

func TestGroupSummaryStatus(t *testing.T) {
	tests := []struct {
		name   string
		tasks  []*Task
		expect GroupStatus
	}{
		{
			"all failed",
			[]*Task{failTask("1", "test-a-1", "g"), failTask("2", "test-a-2", "g")},
			GroupStatusFail,
		},
		{
			"mixed",
			[]*Task{failTask("1", "test-a-1", "g"), passTask("2", "test-a-1", "g")},
			GroupStatusIntermittent,
		},
		{
			"all passed",
			[]*Task{passTask("1", "test-a-1", "g")},
			GroupStatusPass,
		},
	}

	for _, tt := range tests {
		g := NewGroupSummary("g", tt.tasks)
		if got := g.Status(); got != tt.expect {
			t.Errorf("%s: Status() = %v, want %v", tt.name, got, tt.expect)
		}
	}
}

func TestGroupSummaryIgnoresForeignTasks(t *testing.T) {
	g := NewGroupSummary("g", []*Task{
		failTask("1", "test-a-1", "g"),
		failTask("2", "test-b-1", "other"),
	})
	if len(g.Tasks) != 1 {
		t.Fatalf("expected 1 task with results for g, got %d", len(g.Tasks))
	}
}

func TestTaskConfig(t *testing.T) {
	tests := []struct {
		label  string
		expect string
	}{
		{"test-linux1804-64-qr/opt-mochitest-3", "test-linux1804-64-qr/opt-mochitest"},
		{"test-linux1804-64-qr/opt-mochitest-3-cf", "test-linux1804-64-qr/opt-mochitest"},
		{"test-windows10-64/debug-xpcshell", "test-windows10-64/debug-xpcshell"},
	}
	for _, tt := range tests {
		task := &Task{Label: tt.label}
		if got := task.Config(); got != tt.expect {
			t.Errorf("Config(%q) = %q, want %q", tt.label, got, tt.expect)
		}
	}
}

func TestIsCrossConfigFailure(t *testing.T) {
	tests := []struct {
		name   string
		tasks  []*Task
		expect Consistency
	}{
		{
			"fails on two configs",
			[]*Task{failTask("1", "test-linux/opt-suite-1", "g"), failTask("2", "test-win/debug-suite-1", "g")},
			ConsistencyConsistent,
		},
		{
			"fails on one config, passes on another",
			[]*Task{failTask("1", "test-linux/opt-suite-1", "g"), passTask("2", "test-win/debug-suite-1", "g")},
			ConsistencyInconsistent,
		},
		{
			"only one config ran it",
			[]*Task{failTask("1", "test-linux/opt-suite-1", "g"), failTask("2", "test-linux/opt-suite-2", "g")},
			ConsistencyUnknown,
		},
	}

	for _, tt := range tests {
		g := NewGroupSummary("g", tt.tasks)
		if got := g.IsCrossConfigFailure(); got != tt.expect {
			t.Errorf("%s: IsCrossConfigFailure() = %v, want %v", tt.name, got, tt.expect)
		}
	}
}

func TestIsConfigConsistentFailureWidensCoverage(t *testing.T) {
	// On its own the push only ran one config: unknown.
	g := NewGroupSummary("g", []*Task{failTask("1", "test-linux/opt-suite-1", "g")})
	if got := g.IsCrossConfigFailure(); got != ConsistencyUnknown {
		t.Fatalf("IsCrossConfigFailure() = %v, want unknown", got)
	}

	// A sibling push ran it on a second config and it failed there too.
	sibling := NewGroupSummary("g", []*Task{failTask("2", "test-win/debug-suite-1", "g")})
	if got := g.IsConfigConsistentFailure([]*GroupSummary{sibling}); got != ConsistencyConsistent {
		t.Errorf("IsConfigConsistentFailure() = %v, want consistent", got)
	}

	// A sibling pass on another config flips it to inconsistent.
	passing := NewGroupSummary("g", []*Task{passTask("3", "test-mac/opt-suite-1", "g")})
	if got := g.IsConfigConsistentFailure([]*GroupSummary{passing}); got != ConsistencyInconsistent {
		t.Errorf("IsConfigConsistentFailure() = %v, want inconsistent", got)
	}
}

func TestIsConfirmedFailure(t *testing.T) {
	cf := func(id string, ok bool) *Task {
		t := &Task{
			ID:      id,
			Label:   "test-linux/opt-suite-1-cf",
			State:   TaskStateCompleted,
			Results: []GroupResult{{Group: "g", OK: ok}},
		}
		if ok {
			t.Result = TaskResultPassed
		} else {
			t.Result = TaskResultFailed
		}
		return t
	}

	tests := []struct {
		name   string
		tasks  []*Task
		expect Confirmation
	}{
		{"no confirm runs", []*Task{failTask("1", "test-linux/opt-suite-1", "g")}, ConfirmationUnset},
		{"reruns reproduce", []*Task{cf("1", false), cf("2", false)}, ConfirmationFailed},
		{"reruns pass", []*Task{cf("1", true), cf("2", true)}, ConfirmationPassed},
		{"too few reruns", []*Task{cf("1", false)}, ConfirmationUnset},
	}

	for _, tt := range tests {
		g := NewGroupSummary("g", tt.tasks)
		if got := g.IsConfirmedFailure(nil); got != tt.expect {
			t.Errorf("%s: IsConfirmedFailure() = %v, want %v", tt.name, got, tt.expect)
		}
	}
}

func TestConfirmRunsExcludedFromConsistency(t *testing.T) {
	// Two failing confirm reruns on distinct configs must not fabricate
	// cross-config coverage.
	g := NewGroupSummary("g", []*Task{
		failTask("1", "test-linux/opt-suite-1-cf", "g"),
		failTask("2", "test-win/debug-suite-1-cf", "g"),
	})
	if got := g.IsCrossConfigFailure(); got != ConsistencyUnknown {
		t.Errorf("IsCrossConfigFailure() = %v, want unknown", got)
	}
}

func TestIsNewFailure(t *testing.T) {
	g := NewGroupSummary("g", []*Task{failTask("1", "test-a-1", "g")})
	if g.IsNewFailure() {
		t.Error("expected known failure for default tag")
	}
	g.Tasks[0].Classification = TagNewFailure
	if !g.IsNewFailure() {
		t.Error("expected new failure")
	}
}

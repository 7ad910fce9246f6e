package domain

import (
	"strings"
	"time"
)

// TaskState is the scheduling state of a CI task.
type TaskState string

const (
	TaskStateUnscheduled TaskState = "unscheduled"
	TaskStatePending     TaskState = "pending"
	TaskStateRunning     TaskState = "running"
	TaskStateCompleted   TaskState = "completed"
)

// TaskResult is the outcome of a completed CI task.
type TaskResult string

const (
	TaskResultPassed TaskResult = "passed"
	TaskResultFailed TaskResult = "failed"
)

// Classification tags applied by humans or automation on failing tasks.
const (
	TagNotClassified   = "not classified"
	TagNewFailure      = "new failure not classified"
	TagIntermittent    = "intermittent"
	TagFixedByCommit   = "fixed by commit"
	TagExpectedFailure = "expected fail"
)

// ConfirmSuffix marks confirmation rerun tasks (dedicated reruns scheduled
// to settle whether a failure reproduces).
const ConfirmSuffix = "-cf"

// GroupResult is the outcome of one test group within one task run.
type GroupResult struct {
	Group    string
	OK       bool
	Duration time.Duration
}

// Task is a single CI job run belonging to a push.
type Task struct {
	ID             string
	Label          string
	State          TaskState
	Result         TaskResult
	Tier           int
	Classification string
	Results        []GroupResult
}

// IsCompleted reports whether the task finished running.
func (t *Task) IsCompleted() bool {
	return t.State == TaskStateCompleted
}

// IsConfirmRun reports whether the task is a confirmation rerun.
func (t *Task) IsConfirmRun() bool {
	return strings.HasSuffix(t.Label, ConfirmSuffix)
}

// Config derives the configuration a task ran on from its label: the label
// minus the confirmation suffix and the trailing chunk number. Two chunks of
// the same suite on the same platform share a config.
func (t *Task) Config() string {
	label := strings.TrimSuffix(t.Label, ConfirmSuffix)
	if i := strings.LastIndex(label, "-"); i > 0 {
		if isDigits(label[i+1:]) {
			label = label[:i]
		}
	}
	return label
}

// ResultFor returns the result of the named group in this task, if any.
func (t *Task) ResultFor(group string) (GroupResult, bool) {
	for _, r := range t.Results {
		if r.Group == group {
			return r, true
		}
	}
	return GroupResult{}, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

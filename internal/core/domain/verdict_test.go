package domain

import "testing"

func TestRegressionsStatus(t *testing.T) {
	ev := []*Task{failTask("1", "test-a-1", "g")}
	tests := []struct {
		name                     string
		real, intermittent, unkn []string
		expect                   PushStatus
	}{
		{"real only", []string{"group1"}, nil, nil, PushStatusBad},
		{"real and intermittent", []string{"group1"}, []string{"group2"}, nil, PushStatusBad},
		{"real and unknown", []string{"group1"}, nil, []string{"group2"}, PushStatusBad},
		{"empty", nil, nil, nil, PushStatusGood},
		{"intermittent only", nil, []string{"group1"}, nil, PushStatusGood},
		{"two intermittents", nil, []string{"group1", "group2"}, nil, PushStatusGood},
		{"unknown only", nil, nil, []string{"group1"}, PushStatusUnknown},
		{"intermittent and unknown", nil, []string{"group1"}, []string{"group2"}, PushStatusUnknown},
	}

	for _, tt := range tests {
		r := NewRegressions()
		for _, g := range tt.real {
			r.Add(VerdictReal, g, ev)
		}
		for _, g := range tt.intermittent {
			r.Add(VerdictIntermittent, g, ev)
		}
		for _, g := range tt.unkn {
			r.Add(VerdictUnknown, g, ev)
		}
		if got := r.Status(); got != tt.expect {
			t.Errorf("%s: Status() = %v, want %v", tt.name, got, tt.expect)
		}
	}
}

func TestNewClassificationRecordFlattens(t *testing.T) {
	r := NewRegressions()
	r.Add(VerdictReal, "group2", nil)
	r.Add(VerdictReal, "group1", nil)
	r.Add(VerdictUnknown, "group3", nil)

	plan := NewActionPlan()
	plan.Backfill["group3"] = struct{}{}

	rec := NewClassificationRecord("main", "abcdef", r, plan)
	if rec.Status != PushStatusBad {
		t.Errorf("Status = %v, want bad", rec.Status)
	}
	if len(rec.Real) != 2 || rec.Real[0] != "group1" || rec.Real[1] != "group2" {
		t.Errorf("Real = %v, want sorted [group1 group2]", rec.Real)
	}
	if len(rec.Backfill) != 1 || rec.Backfill[0] != "group3" {
		t.Errorf("Backfill = %v, want [group3]", rec.Backfill)
	}
}

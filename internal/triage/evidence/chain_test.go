package evidence

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vietddude/pushwatch/internal/core/domain"
	"github.com/vietddude/pushwatch/internal/infra/queue"
)

type stubSource struct {
	name  string
	data  *domain.SelectionData
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchSelection(context.Context, string, string) (*domain.SelectionData, error) {
	s.calls++
	return s.data, s.err
}

func TestChainFirstHitWins(t *testing.T) {
	first := &stubSource{name: "first", data: &domain.SelectionData{}}
	second := &stubSource{name: "second", data: &domain.SelectionData{}}

	data, err := NewChain(nil, first, second).Selection(context.Background(), "main", "abc")
	if err != nil {
		t.Fatalf("Selection failed: %v", err)
	}
	if data != first.data {
		t.Error("expected first source's payload")
	}
	if second.calls != 0 {
		t.Errorf("second source called %d times, want 0", second.calls)
	}
}

func TestChainMissFallsThrough(t *testing.T) {
	first := &stubSource{name: "first", err: ErrMiss}
	second := &stubSource{name: "second", data: &domain.SelectionData{}}

	data, err := NewChain(nil, first, second).Selection(context.Background(), "main", "abc")
	if err != nil {
		t.Fatalf("Selection failed: %v", err)
	}
	if data != second.data {
		t.Error("expected second source's payload")
	}
}

func TestChainFailureFallsThrough(t *testing.T) {
	first := &stubSource{name: "first", err: errors.New("connection refused")}
	second := &stubSource{name: "second", data: &domain.SelectionData{}}

	data, err := NewChain(nil, first, second).Selection(context.Background(), "main", "abc")
	if err != nil {
		t.Fatalf("Selection failed: %v", err)
	}
	if data != second.data {
		t.Error("expected second source's payload")
	}
}

func TestChainExhaustion(t *testing.T) {
	first := &stubSource{name: "first", err: ErrMiss}
	second := &stubSource{name: "second", err: errors.New("boom")}

	_, err := NewChain(nil, first, second).Selection(context.Background(), "main", "abc")
	var notFound *domain.SourcesNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want SourcesNotFoundError", err)
	}
	want := "No registered sources were able to fulfill 'push_test_selection_data'!"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestChainTimeoutIsTerminal(t *testing.T) {
	first := &stubSource{name: "first", err: &domain.BugbugTimeoutError{}}
	second := &stubSource{name: "second", data: &domain.SelectionData{}}

	_, err := NewChain(nil, first, second).Selection(context.Background(), "main", "abc")
	var timeout *domain.BugbugTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("err = %v, want BugbugTimeoutError", err)
	}
	if second.calls != 0 {
		t.Errorf("second source called %d times after terminal timeout, want 0", second.calls)
	}
	if got, want := err.Error(), "Timed out waiting for result from Bugbug HTTP Service"; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestChainEmpty(t *testing.T) {
	_, err := NewChain(nil).Selection(context.Background(), "main", "abc")
	var notFound *domain.SourcesNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want SourcesNotFoundError", err)
	}
}

// fakeStore backs the artifact source without a live queue.
type fakeStore struct {
	taskID   string
	indexErr error
	payload  *domain.SelectionData
	fetchErr error
}

func (s *fakeStore) FindIndexedTask(_ context.Context, indexPath string) (string, error) {
	if s.indexErr != nil {
		return "", s.indexErr
	}
	return s.taskID, nil
}

func (s *fakeStore) FetchJSONArtifact(_ context.Context, taskID, name string, out any) error {
	if s.fetchErr != nil {
		return s.fetchErr
	}
	*(out.(*domain.SelectionData)) = *s.payload
	return nil
}

func TestArtifactSource(t *testing.T) {
	tests := []struct {
		name    string
		store   *fakeStore
		wantErr error
	}{
		{
			name:  "hit",
			store: &fakeStore{taskID: "abc", payload: &domain.SelectionData{Groups: map[string]float64{"g": 0.5}}},
		},
		{
			name:    "missing decision task",
			store:   &fakeStore{indexErr: queue.ErrNotFound},
			wantErr: ErrMiss,
		},
		{
			name:    "missing artifact",
			store:   &fakeStore{taskID: "abc", fetchErr: fmt.Errorf("artifact: %w", queue.ErrNotFound)},
			wantErr: ErrMiss,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := NewArtifactSource(tt.store).FetchSelection(context.Background(), "main", "abc")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchSelection failed: %v", err)
			}
			if score, ok := data.GroupConfidence("g"); !ok || score != 0.5 {
				t.Errorf("confidence = %v %v, want 0.5", score, ok)
			}
		})
	}
}

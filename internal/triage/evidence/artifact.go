package evidence

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietddude/pushwatch/internal/core/domain"
	"github.com/vietddude/pushwatch/internal/infra/queue"
)

const (
	decisionIndexFmt  = "gecko.v2.%s.revision.%s.taskgraph.decision"
	schedulesArtifact = "public/bugbug-push-schedules.json"
)

// ArtifactStore resolves indexed tasks and their artifacts. Implementations
// report a missing index path or artifact with an error matching
// queue.ErrNotFound.
type ArtifactStore interface {
	FindIndexedTask(ctx context.Context, indexPath string) (string, error)
	FetchJSONArtifact(ctx context.Context, taskID, name string, out any) error
}

// ArtifactSource reads the selection payload the decision task uploaded
// when the push was scheduled. It never recomputes anything: if the
// artifact is not there, that is a miss.
type ArtifactSource struct {
	store ArtifactStore
}

func NewArtifactSource(store ArtifactStore) *ArtifactSource {
	return &ArtifactSource{store: store}
}

func (s *ArtifactSource) Name() string { return "decision-task-artifact" }

func (s *ArtifactSource) FetchSelection(ctx context.Context, branch, rev string) (*domain.SelectionData, error) {
	taskID, err := s.store.FindIndexedTask(ctx, fmt.Sprintf(decisionIndexFmt, branch, rev))
	if errors.Is(err, queue.ErrNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("resolve decision task: %w", err)
	}

	var data domain.SelectionData
	if err := s.store.FetchJSONArtifact(ctx, taskID, schedulesArtifact, &data); err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("fetch %s from task %s: %w", schedulesArtifact, taskID, err)
	}
	return &data, nil
}

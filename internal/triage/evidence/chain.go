// Package evidence resolves push evidence through an ordered chain of
// sources. Cheap cached sources come first; a miss falls through to the
// next source, and only when every source is exhausted does the chain give
// up.
package evidence

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vietddude/pushwatch/internal/core/domain"
	"github.com/vietddude/pushwatch/internal/triage/metrics"
)

// CapabilityTestSelection names the capability the chain fulfills.
const CapabilityTestSelection = "push_test_selection_data"

// ErrMiss signals that a source holds no data for the push. The chain
// treats it as "ask the next source", not as a failure.
var ErrMiss = errors.New("source has no data for this push")

// Source yields the test-selection payload for one push.
type Source interface {
	Name() string
	FetchSelection(ctx context.Context, branch, rev string) (*domain.SelectionData, error)
}

// Chain tries sources in registration order.
type Chain struct {
	sources []Source
	log     *slog.Logger
}

// NewChain builds a chain over the given sources. Order matters: put the
// cheapest source first.
func NewChain(log *slog.Logger, sources ...Source) *Chain {
	if log == nil {
		log = slog.Default()
	}
	return &Chain{sources: sources, log: log}
}

// Selection returns the first source's payload for the push. A source miss
// or failure falls through to the next source, with two exceptions: context
// cancellation, and a service that answered "pending" past its retry budget.
// Both are terminal because no later source can do better with less time.
func (c *Chain) Selection(ctx context.Context, branch, rev string) (*domain.SelectionData, error) {
	for _, src := range c.sources {
		data, err := src.FetchSelection(ctx, branch, rev)
		if err == nil {
			c.log.Debug("evidence source hit", "source", src.Name(), "branch", branch, "rev", rev)
			metrics.EvidenceSourceCalls.WithLabelValues(src.Name(), "hit").Inc()
			return data, nil
		}
		if errors.Is(err, ErrMiss) {
			c.log.Debug("evidence source miss", "source", src.Name(), "branch", branch, "rev", rev)
			metrics.EvidenceSourceCalls.WithLabelValues(src.Name(), "miss").Inc()
			continue
		}
		metrics.EvidenceSourceCalls.WithLabelValues(src.Name(), "failure").Inc()
		var timeout *domain.BugbugTimeoutError
		if errors.As(err, &timeout) || ctx.Err() != nil {
			return nil, err
		}
		c.log.Warn("evidence source failed", "source", src.Name(), "error", err)
	}
	return nil, &domain.SourcesNotFoundError{Capability: CapabilityTestSelection}
}

// Package lineage derives regression-candidate sets by walking a push's
// ancestors: a failure is only attributable to a push if the nearest
// ancestor that ran the same group passed it.
package lineage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vietddude/pushwatch/internal/core/domain"
)

// DefaultWindow bounds how many ancestors are inspected before a group's
// history is declared out of reach.
const DefaultWindow = 14

// PushNode is the navigation surface the resolver walks.
type PushNode interface {
	Rev() string

	// GroupStatus reports how the named group fared on this push. The
	// second return is false when the group never ran here.
	GroupStatus(ctx context.Context, group string) (domain.GroupStatus, bool, error)

	// Parent returns the previous push, or ParentPushNotFoundError at the
	// start of usable history.
	Parent(ctx context.Context) (PushNode, error)
}

// Resolver splits a push's failing groups into likely and possible
// regression candidates.
type Resolver struct {
	window int
	log    *slog.Logger
}

func NewResolver(window int, log *slog.Logger) *Resolver {
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{window: window, log: log}
}

// Resolve walks up to window ancestors of p. A failing group whose nearest
// ancestor run passed is a likely regression; one that also failed on an
// ancestor predates the push and is dropped; one with no ancestor run
// inside the window stays possible. Running out of parents is not an
// error, it just leaves the remaining groups possible.
func (r *Resolver) Resolve(ctx context.Context, p PushNode, failing []string) (likely, possible map[string]struct{}, err error) {
	likely = map[string]struct{}{}
	unresolved := map[string]struct{}{}
	for _, g := range failing {
		unresolved[g] = struct{}{}
	}

	node := p
	for depth := 0; depth < r.window && len(unresolved) > 0; depth++ {
		parent, err := node.Parent(ctx)
		if err != nil {
			var notFound *domain.ParentPushNotFoundError
			if errors.As(err, &notFound) {
				r.log.Debug("lineage walk hit start of history",
					"rev", node.Rev(), "depth", depth)
				break
			}
			return nil, nil, err
		}
		node = parent

		for g := range unresolved {
			status, ran, err := node.GroupStatus(ctx, g)
			if err != nil {
				return nil, nil, err
			}
			if !ran {
				continue
			}
			// Any ancestor failure, even a flaky one, means the breakage
			// predates p.
			if status == domain.GroupStatusPass {
				likely[g] = struct{}{}
			}
			delete(unresolved, g)
		}
	}

	return likely, unresolved, nil
}

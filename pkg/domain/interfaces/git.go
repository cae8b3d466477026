package interfaces

import (
	"context"

	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

// GitRepository reads history from a local checkout
type GitRepository interface {
	// Tags returns every tag name in the repository
	Tags(ctx context.Context) ([]string, error)

	// Log returns commits reachable from to and not from from. An empty from
	// means the whole history reachable from to.
	Log(ctx context.Context, from, to string) ([]model.Commit, error)

	// IsAncestor reports whether ancestor is reachable from descendant
	IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error)
}

// MarkerProbe tells whether the template marker file is present
type MarkerProbe interface {
	MarkerExists(ctx context.Context, input *model.GateInput) (bool, error)
}

// SourceCheckout materializes the tagged source of a trigger in a
// directory private to one run
type SourceCheckout interface {
	Checkout(ctx context.Context, runID string, trigger *model.Trigger) (*model.Workspace, error)
	Remove(ctx context.Context, ws *model.Workspace) error
}

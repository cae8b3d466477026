package interfaces

import (
	"context"

	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

// RunRepository stores pipeline runs and release claims
type RunRepository interface {
	PutRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)

	// ClaimTag reserves the tag of repo for runID. Only the first claim
	// succeeds; later claims fail with types.ErrReleaseExists.
	ClaimTag(ctx context.Context, repo model.Repository, tag model.Tag, runID string) error

	// ReleaseTag drops the claim runID holds on the tag. A claim held by
	// another run, or no claim at all, is left as is.
	ReleaseTag(ctx context.Context, repo model.Repository, tag model.Tag, runID string) error

	// PutRelease stores the record of a published release
	PutRelease(ctx context.Context, record *model.ReleaseRecord) error
}

// Notifier announces published releases
type Notifier interface {
	NotifyRelease(ctx context.Context, record *model.ReleaseRecord) error
}

package interfaces

import (
	"context"

	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

// GitHubClient defines operations for interacting with GitHub API
type GitHubClient interface {
	// FileExists reports whether path exists in the repository at ref
	FileExists(ctx context.Context, repo model.Repository, path, ref string) (bool, error)

	// GetReleaseByTag returns the release for tag, or nil when there is none
	GetReleaseByTag(ctx context.Context, repo model.Repository, tag model.Tag) (*model.PublishedRelease, error)

	// CreateRelease creates a draft release for an existing tag
	CreateRelease(ctx context.Context, repo model.Repository, release *model.NewRelease) (*model.PublishedRelease, error)

	// PublishRelease makes a draft release visible
	PublishRelease(ctx context.Context, repo model.Repository, releaseID int64) (*model.PublishedRelease, error)

	// DeleteRelease removes a release, keeping its tag
	DeleteRelease(ctx context.Context, repo model.Repository, releaseID int64) error

	// UploadReleaseAsset attaches a local file to a release
	UploadReleaseAsset(ctx context.Context, repo model.Repository, releaseID int64, name, path string) error
}

package github

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

type client struct {
	githubClient *github.Client
}

type options struct {
	baseURL   string
	uploadURL string
}

// Option configures the GitHub client
type Option func(*options)

// WithEnterpriseURLs targets a GitHub Enterprise Server. An empty uploadURL
// is derived from baseURL, and go-github appends the "api/v3/" and
// "api/uploads/" paths when they are missing.
func WithEnterpriseURLs(baseURL, uploadURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
		o.uploadURL = uploadURL
	}
}

func newGitHubClient(httpClient *http.Client, opts ...Option) (*github.Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	githubClient := github.NewClient(httpClient)
	if o.baseURL == "" {
		return githubClient, nil
	}

	uploadURL := o.uploadURL
	if uploadURL == "" {
		uploadURL = o.baseURL
	}
	enterprise, err := githubClient.WithEnterpriseURLs(o.baseURL, uploadURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid GitHub Enterprise URL",
			goerr.V("base_url", o.baseURL),
			goerr.V("upload_url", uploadURL))
	}
	return enterprise, nil
}

// NewClient creates a new GitHub client with App authentication
func NewClient(appID, installationID int64, privateKey []byte, opts ...Option) (interfaces.GitHubClient, error) {
	itr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport",
			goerr.V("app_id", appID),
			goerr.V("installation_id", installationID))
	}

	githubClient, err := newGitHubClient(&http.Client{Transport: itr}, opts...)
	if err != nil {
		return nil, err
	}
	// Installation tokens are issued by the same API host
	itr.BaseURL = strings.TrimSuffix(githubClient.BaseURL.String(), "/")

	return &client{githubClient: githubClient}, nil
}

// NewInstallationTokenSource returns a function issuing installation
// tokens of a GitHub App, for git over HTTPS
func NewInstallationTokenSource(appID, installationID int64, privateKey []byte, opts ...Option) (func(ctx context.Context) (string, error), error) {
	itr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport",
			goerr.V("app_id", appID),
			goerr.V("installation_id", installationID))
	}

	githubClient, err := newGitHubClient(nil, opts...)
	if err != nil {
		return nil, err
	}
	itr.BaseURL = strings.TrimSuffix(githubClient.BaseURL.String(), "/")

	return itr.Token, nil
}

// NewClientWithToken creates a new GitHub client authenticated by a token,
// such as the GITHUB_TOKEN of a workflow run
func NewClientWithToken(token string, opts ...Option) (interfaces.GitHubClient, error) {
	githubClient, err := newGitHubClient(nil, opts...)
	if err != nil {
		return nil, err
	}
	return &client{githubClient: githubClient.WithAuthToken(token)}, nil
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

// FileExists reports whether path exists in the repository at ref
func (c *client) FileExists(ctx context.Context, repo model.Repository, path, ref string) (bool, error) {
	_, _, resp, err := c.githubClient.Repositories.GetContents(ctx, repo.Owner, repo.Name, path, &github.RepositoryContentGetOptions{
		Ref: ref,
	})
	if isNotFound(resp) {
		return false, nil
	}
	if err != nil {
		return false, goerr.Wrap(err, "failed to get repository contents",
			goerr.V("repo", repo.FullName()),
			goerr.V("path", path),
			goerr.V("ref", ref))
	}
	return true, nil
}

// GetReleaseByTag returns the release for tag, or nil when there is none
func (c *client) GetReleaseByTag(ctx context.Context, repo model.Repository, tag model.Tag) (*model.PublishedRelease, error) {
	release, resp, err := c.githubClient.Repositories.GetReleaseByTag(ctx, repo.Owner, repo.Name, tag.String())
	if isNotFound(resp) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get release by tag",
			goerr.V("repo", repo.FullName()),
			goerr.V("tag", tag))
	}

	return &model.PublishedRelease{
		ID:  release.GetID(),
		URL: release.GetHTMLURL(),
	}, nil
}

// CreateRelease creates a draft release for an existing tag. Drafts are
// not visible to users until PublishRelease.
func (c *client) CreateRelease(ctx context.Context, repo model.Repository, release *model.NewRelease) (*model.PublishedRelease, error) {
	created, _, err := c.githubClient.Repositories.CreateRelease(ctx, repo.Owner, repo.Name, &github.RepositoryRelease{
		TagName: github.Ptr(release.Tag.String()),
		Name:    github.Ptr(release.Name),
		Body:    github.Ptr(release.Body),
		Draft:   github.Ptr(true),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create release",
			goerr.V("repo", repo.FullName()),
			goerr.V("tag", release.Tag))
	}

	return &model.PublishedRelease{
		ID:  created.GetID(),
		URL: created.GetHTMLURL(),
	}, nil
}

// PublishRelease turns a draft into a published release
func (c *client) PublishRelease(ctx context.Context, repo model.Repository, releaseID int64) (*model.PublishedRelease, error) {
	published, _, err := c.githubClient.Repositories.EditRelease(ctx, repo.Owner, repo.Name, releaseID, &github.RepositoryRelease{
		Draft: github.Ptr(false),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to publish release",
			goerr.V("repo", repo.FullName()),
			goerr.V("release_id", releaseID))
	}

	return &model.PublishedRelease{
		ID:  published.GetID(),
		URL: published.GetHTMLURL(),
	}, nil
}

// DeleteRelease removes a release. The tag itself is kept.
func (c *client) DeleteRelease(ctx context.Context, repo model.Repository, releaseID int64) error {
	resp, err := c.githubClient.Repositories.DeleteRelease(ctx, repo.Owner, repo.Name, releaseID)
	if isNotFound(resp) {
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to delete release",
			goerr.V("repo", repo.FullName()),
			goerr.V("release_id", releaseID))
	}
	return nil
}

// UploadReleaseAsset attaches a local file to a release
func (c *client) UploadReleaseAsset(ctx context.Context, repo model.Repository, releaseID int64, name, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return goerr.Wrap(err, "failed to open asset", goerr.V("path", path))
	}
	defer file.Close()

	mediaType := "application/octet-stream"
	if filepath.Ext(name) == ".whl" {
		mediaType = "application/zip"
	}

	_, _, err = c.githubClient.Repositories.UploadReleaseAsset(ctx, repo.Owner, repo.Name, releaseID, &github.UploadOptions{
		Name:      name,
		MediaType: mediaType,
	}, file)
	if err != nil {
		return goerr.Wrap(err, "failed to upload release asset",
			goerr.V("repo", repo.FullName()),
			goerr.V("release_id", releaseID),
			goerr.V("name", name))
	}
	return nil
}

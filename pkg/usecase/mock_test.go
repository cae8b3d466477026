package usecase_test

import (
	"context"
	"errors"
	"sync"

	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

// mockGitHubClient is a hand-written mock of interfaces.GitHubClient
type mockGitHubClient struct {
	fileExistsFunc       func(ctx context.Context, repo model.Repository, path, ref string) (bool, error)
	getReleaseByTagFunc  func(ctx context.Context, repo model.Repository, tag model.Tag) (*model.PublishedRelease, error)
	createReleaseFunc    func(ctx context.Context, repo model.Repository, release *model.NewRelease) (*model.PublishedRelease, error)
	uploadReleaseAssetFn func(ctx context.Context, repo model.Repository, releaseID int64, name, path string) error
	publishReleaseFunc   func(ctx context.Context, repo model.Repository, releaseID int64) (*model.PublishedRelease, error)

	mu        sync.Mutex
	created   []model.NewRelease
	uploaded  map[int64][]string
	published []int64
	deleted   []int64
}

func (m *mockGitHubClient) FileExists(ctx context.Context, repo model.Repository, path, ref string) (bool, error) {
	if m.fileExistsFunc != nil {
		return m.fileExistsFunc(ctx, repo, path, ref)
	}
	return false, nil
}

func (m *mockGitHubClient) GetReleaseByTag(ctx context.Context, repo model.Repository, tag model.Tag) (*model.PublishedRelease, error) {
	if m.getReleaseByTagFunc != nil {
		return m.getReleaseByTagFunc(ctx, repo, tag)
	}
	return nil, nil
}

func (m *mockGitHubClient) CreateRelease(ctx context.Context, repo model.Repository, release *model.NewRelease) (*model.PublishedRelease, error) {
	m.mu.Lock()
	m.created = append(m.created, *release)
	id := int64(len(m.created))
	m.mu.Unlock()

	if m.createReleaseFunc != nil {
		return m.createReleaseFunc(ctx, repo, release)
	}
	return &model.PublishedRelease{
		ID:  id,
		URL: "https://github.com/" + repo.FullName() + "/releases/tag/" + release.Tag.String(),
	}, nil
}

func (m *mockGitHubClient) UploadReleaseAsset(ctx context.Context, repo model.Repository, releaseID int64, name, path string) error {
	m.mu.Lock()
	if m.uploaded == nil {
		m.uploaded = map[int64][]string{}
	}
	m.uploaded[releaseID] = append(m.uploaded[releaseID], name)
	m.mu.Unlock()

	if m.uploadReleaseAssetFn != nil {
		return m.uploadReleaseAssetFn(ctx, repo, releaseID, name, path)
	}
	return nil
}

func (m *mockGitHubClient) PublishRelease(ctx context.Context, repo model.Repository, releaseID int64) (*model.PublishedRelease, error) {
	if m.publishReleaseFunc != nil {
		if _, err := m.publishReleaseFunc(ctx, repo, releaseID); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, releaseID)
	tag := m.created[releaseID-1].Tag
	return &model.PublishedRelease{
		ID:  releaseID,
		URL: "https://github.com/" + repo.FullName() + "/releases/tag/" + tag.String(),
	}, nil
}

func (m *mockGitHubClient) DeleteRelease(ctx context.Context, repo model.Repository, releaseID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, releaseID)
	return nil
}

// mockGit is a hand-written mock of interfaces.GitRepository
type mockGit struct {
	tagsFunc       func(ctx context.Context) ([]string, error)
	logFunc        func(ctx context.Context, from, to string) ([]model.Commit, error)
	isAncestorFunc func(ctx context.Context, ancestor, descendant string) (bool, error)
}

func (m *mockGit) Tags(ctx context.Context) ([]string, error) {
	if m.tagsFunc != nil {
		return m.tagsFunc(ctx)
	}
	return nil, nil
}

func (m *mockGit) Log(ctx context.Context, from, to string) ([]model.Commit, error) {
	if m.logFunc != nil {
		return m.logFunc(ctx, from, to)
	}
	return nil, nil
}

func (m *mockGit) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	if m.isAncestorFunc != nil {
		return m.isAncestorFunc(ctx, ancestor, descendant)
	}
	return true, nil
}

// mockProbe is a hand-written mock of interfaces.MarkerProbe
type mockProbe struct {
	markerExistsFunc func(ctx context.Context, input *model.GateInput) (bool, error)
}

func (m *mockProbe) MarkerExists(ctx context.Context, input *model.GateInput) (bool, error) {
	if m.markerExistsFunc != nil {
		return m.markerExistsFunc(ctx, input)
	}
	return false, errors.New("mock not configured")
}

// mockBuilder is a hand-written mock of interfaces.Builder
type mockBuilder struct {
	buildFunc func(ctx context.Context, job *model.BuildJob) (*model.BuildOutput, error)
}

func (m *mockBuilder) Build(ctx context.Context, job *model.BuildJob) (*model.BuildOutput, error) {
	if m.buildFunc != nil {
		return m.buildFunc(ctx, job)
	}
	return nil, errors.New("mock not configured")
}

// mockNotifier is a hand-written mock of interfaces.Notifier
type mockNotifier struct {
	notifyReleaseFunc func(ctx context.Context, record *model.ReleaseRecord) error
	notified          []*model.ReleaseRecord
}

func (m *mockNotifier) NotifyRelease(ctx context.Context, record *model.ReleaseRecord) error {
	m.notified = append(m.notified, record)
	if m.notifyReleaseFunc != nil {
		return m.notifyReleaseFunc(ctx, record)
	}
	return nil
}

// mockPipeline is a hand-written mock of interfaces.PipelineUseCase
type mockPipeline struct {
	runFunc func(ctx context.Context, trigger *model.Trigger) (*model.Run, error)
}

func (m *mockPipeline) Run(ctx context.Context, trigger *model.Trigger) (*model.Run, error) {
	if m.runFunc != nil {
		return m.runFunc(ctx, trigger)
	}
	return nil, errors.New("mock not configured")
}

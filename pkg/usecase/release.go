package usecase

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
	"golang.org/x/sync/errgroup"
)

// ChangelogGenerator produces the changelog for a tag
type ChangelogGenerator interface {
	Generate(ctx context.Context, tag model.Tag) (*model.Changelog, error)
}

// ChangelogSummarizer produces a highlights paragraph for a changelog
type ChangelogSummarizer interface {
	Summarize(ctx context.Context, changelog *model.Changelog) (string, error)
}

// Release assembles and publishes the release record
type Release struct {
	githubClient interfaces.GitHubClient
	store        interfaces.ArtifactStore
	changelog    ChangelogGenerator
	runs         interfaces.RunRepository
	notifier     interfaces.Notifier
	summarizer   ChangelogSummarizer
	workDir      string
	now          func() time.Time
}

// ReleaseOption configures the release stage
type ReleaseOption func(*Release)

// WithNotifier announces published releases
func WithNotifier(n interfaces.Notifier) ReleaseOption {
	return func(r *Release) {
		r.notifier = n
	}
}

// WithSummarizer prepends generated highlights to the release body
func WithSummarizer(s ChangelogSummarizer) ReleaseOption {
	return func(r *Release) {
		r.summarizer = s
	}
}

// WithReleaseWorkDir sets where artifacts are downloaded to
func WithReleaseWorkDir(dir string) ReleaseOption {
	return func(r *Release) {
		r.workDir = dir
	}
}

// WithReleaseClock sets the clock used for the publish time
func WithReleaseClock(now func() time.Time) ReleaseOption {
	return func(r *Release) {
		r.now = now
	}
}

// NewRelease creates the release stage
func NewRelease(
	githubClient interfaces.GitHubClient,
	store interfaces.ArtifactStore,
	changelog ChangelogGenerator,
	runs interfaces.RunRepository,
	opts ...ReleaseOption,
) *Release {
	r := &Release{
		githubClient: githubClient,
		store:        store,
		changelog:    changelog,
		runs:         runs,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Assemble collects the run's artifacts and changelog, then publishes one
// release for the run's tag with every artifact file attached
func (uc *Release) Assemble(ctx context.Context, run *model.Run) (*model.ReleaseRecord, error) {
	logger := ctxlog.From(ctx)
	repo := run.Trigger.Repository
	tag := run.Trigger.Tag

	downloadDir, err := os.MkdirTemp(uc.workDir, "tagrelease-assets-*")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create download directory")
	}
	defer func() {
		if removeErr := os.RemoveAll(downloadDir); removeErr != nil {
			logger.Warn("Failed to clean up download directory",
				"dir", downloadDir,
				"error", removeErr,
			)
		}
	}()

	var (
		artifacts []model.Artifact
		changelog *model.Changelog
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		fetched, err := uc.store.Fetch(egCtx, run.ID, downloadDir)
		if err != nil {
			return goerr.Wrap(err, "failed to collect artifacts", goerr.V("run_id", run.ID))
		}
		artifacts = fetched
		return nil
	})
	eg.Go(func() error {
		generated, err := uc.changelog.Generate(egCtx, tag)
		if err != nil {
			return goerr.Wrap(err, "failed to generate changelog", goerr.V("tag", tag))
		}
		changelog = generated
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if len(artifacts) == 0 {
		return nil, goerr.New("no artifacts to release",
			goerr.V("run_id", run.ID),
			goerr.T(types.ErrNoArtifacts))
	}
	if len(run.Artifacts) > 0 && len(artifacts) != len(run.Artifacts) {
		return nil, goerr.New("collected artifacts do not match build results",
			goerr.V("run_id", run.ID),
			goerr.V("expected", len(run.Artifacts)),
			goerr.V("collected", len(artifacts)))
	}

	assets, err := releaseAssets(artifacts)
	if err != nil {
		return nil, err
	}

	body := changelog.Body
	if uc.summarizer != nil {
		summary, err := uc.summarizer.Summarize(ctx, changelog)
		if err != nil {
			logger.Warn("Failed to summarize changelog, publishing without highlights", "error", err)
		} else if summary != "" {
			body = summary + "\n\n" + body
		}
	}

	if err := uc.runs.ClaimTag(ctx, repo, tag, run.ID); err != nil {
		return nil, goerr.Wrap(err, "failed to claim tag for release")
	}

	record, err := uc.publish(ctx, run, body, assets)
	if err != nil {
		// Nothing is public yet, so the tag can be released by a later run
		if releaseErr := uc.runs.ReleaseTag(context.WithoutCancel(ctx), repo, tag, run.ID); releaseErr != nil {
			logger.Warn("Failed to release tag claim", "tag", tag, "error", releaseErr)
		}
		return nil, err
	}

	if err := uc.runs.PutRelease(ctx, record); err != nil {
		return nil, goerr.Wrap(err, "failed to save release record")
	}

	logger.Info("Release published",
		"repository", repo.FullName(),
		"tag", tag,
		"url", record.URL,
		"asset_count", len(record.Assets),
	)

	if uc.notifier != nil {
		if err := uc.notifier.NotifyRelease(ctx, record); err != nil {
			logger.Warn("Failed to send release notification", "error", err)
		}
	}

	return record, nil
}

// publish creates a draft release, attaches every asset and then makes the
// release visible. A failure before the release is visible deletes the draft.
func (uc *Release) publish(ctx context.Context, run *model.Run, body string, assets []model.ArtifactFile) (*model.ReleaseRecord, error) {
	logger := ctxlog.From(ctx)
	repo := run.Trigger.Repository
	tag := run.Trigger.Tag

	existing, err := uc.githubClient.GetReleaseByTag(ctx, repo, tag)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to look up existing release")
	}
	if existing != nil {
		return nil, goerr.New("release already exists for tag",
			goerr.V("repository", repo.FullName()),
			goerr.V("tag", tag),
			goerr.V("release_url", existing.URL),
			goerr.T(types.ErrReleaseExists))
	}

	draft, err := uc.githubClient.CreateRelease(ctx, repo, &model.NewRelease{
		Tag:  tag,
		Name: tag.String(),
		Body: body,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create draft release")
	}

	discard := func() {
		if err := uc.githubClient.DeleteRelease(context.WithoutCancel(ctx), repo, draft.ID); err != nil {
			logger.Warn("Failed to delete draft release",
				"release_id", draft.ID,
				"error", err,
			)
		}
	}

	names := make([]string, 0, len(assets))
	for _, asset := range assets {
		if err := uc.githubClient.UploadReleaseAsset(ctx, repo, draft.ID, asset.Name, asset.Path); err != nil {
			discard()
			return nil, goerr.Wrap(err, "failed to attach artifact to release",
				goerr.V("asset", asset.Name),
				goerr.V("release_id", draft.ID))
		}
		names = append(names, asset.Name)
	}

	published, err := uc.githubClient.PublishRelease(ctx, repo, draft.ID)
	if err != nil {
		discard()
		return nil, goerr.Wrap(err, "failed to publish release", goerr.V("release_id", draft.ID))
	}

	return &model.ReleaseRecord{
		Tag:         tag,
		Repository:  repo,
		ReleaseID:   published.ID,
		URL:         published.URL,
		Body:        body,
		Assets:      names,
		PublishedAt: uc.now().UTC(),
	}, nil
}

// releaseAssets flattens artifacts into uniquely named files. The same
// file produced by two jobs is attached once; different content under the
// same name is an error.
func releaseAssets(artifacts []model.Artifact) ([]model.ArtifactFile, error) {
	byName := map[string]model.ArtifactFile{}
	for _, artifact := range artifacts {
		for _, f := range artifact.Files {
			if prev, ok := byName[f.Name]; ok {
				if prev.SHA256 != f.SHA256 {
					return nil, goerr.New("conflicting release asset names",
						goerr.V("name", f.Name),
						goerr.V("artifact", artifact.Name))
				}
				continue
			}
			if f.Path == "" {
				return nil, goerr.New("artifact file was not downloaded", goerr.V("name", f.Name))
			}
			byName[f.Name] = f
		}
	}

	assets := make([]model.ArtifactFile, 0, len(byName))
	for _, f := range byName {
		assets = append(assets, f)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	return assets, nil
}

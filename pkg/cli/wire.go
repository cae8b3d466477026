package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/cli/config"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/infra/builder"
	"github.com/m-mizutani/tagrelease/pkg/infra/git"
	"github.com/m-mizutani/tagrelease/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// pipelineConfig groups every configuration a full pipeline needs
type pipelineConfig struct {
	github    config.GitHub
	pipeline  config.Pipeline
	storage   config.Storage
	firestore config.Firestore
	slack     config.Slack
	gemini    config.Gemini
}

func (c *pipelineConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, c.github.Flags()...)
	flags = append(flags, c.pipeline.Flags()...)
	flags = append(flags, c.storage.Flags()...)
	flags = append(flags, c.firestore.Flags()...)
	flags = append(flags, c.slack.Flags()...)
	flags = append(flags, c.gemini.Flags()...)
	return flags
}

// components is the wired pipeline with its collaborators
type components struct {
	def      *config.PipelineDefinition
	repo     model.Repository
	git      *git.Repository
	runs     interfaces.RunRepository
	store    interfaces.ArtifactStore
	pipeline *usecase.Pipeline
	closers  []func()

	source       markerSource
	workDir      string
	githubClient interfaces.GitHubClient
	releaseOpts  []usecase.ReleaseOption
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// markerSource selects where the gate looks for the marker file
type markerSource int

const (
	markerFromCheckout markerSource = iota
	markerFromGitHub
)

func (c *pipelineConfig) wire(ctx context.Context, source markerSource) (*components, error) {
	def, err := c.pipeline.Load()
	if err != nil {
		return nil, err
	}

	comp := &components{
		def:     def,
		git:     git.New(c.pipeline.RepoDir),
		source:  source,
		workDir: c.pipeline.WorkDir,
	}
	success := false
	defer func() {
		if !success {
			comp.Close()
		}
	}()

	if c.github.Repository != "" {
		if comp.repo, err = c.github.Repo(); err != nil {
			return nil, err
		}
	}

	if comp.githubClient, err = c.github.NewClient(); err != nil {
		return nil, err
	}

	store, closeStore, err := c.storage.NewStore(ctx)
	if err != nil {
		return nil, err
	}
	comp.store = store
	comp.closers = append(comp.closers, closeStore)

	runs, closeRuns, err := c.firestore.NewRepository(ctx)
	if err != nil {
		return nil, err
	}
	comp.runs = runs
	comp.closers = append(comp.closers, closeRuns)

	comp.releaseOpts = []usecase.ReleaseOption{usecase.WithReleaseWorkDir(c.pipeline.WorkDir)}
	if notifier := c.slack.NewNotifier(); notifier != nil {
		comp.releaseOpts = append(comp.releaseOpts, usecase.WithNotifier(notifier))
	}
	summarizer, err := c.gemini.NewSummarizer(ctx)
	if err != nil {
		return nil, err
	}
	if summarizer != nil {
		comp.releaseOpts = append(comp.releaseOpts, usecase.WithSummarizer(summarizer))
	}

	comp.pipeline = comp.pipelineFor(comp.git, comp.repo)

	success = true
	return comp, nil
}

// pipelineFor wires a pipeline that builds from and reads history of the
// checkout g. repo is used for changelog links.
func (c *components) pipelineFor(g *git.Repository, repo model.Repository, opts ...usecase.PipelineOption) *usecase.Pipeline {
	var probe interfaces.MarkerProbe = g
	if c.source == markerFromGitHub {
		probe = usecase.NewGitHubMarkerProbe(c.githubClient)
	}

	build := usecase.NewBuild(newBuilder(c.def, g.Dir()), c.store, buildConfig(c.def, c.workDir))
	changelog := newChangelog(c.def, g, repo)
	release := usecase.NewRelease(c.githubClient, c.store, changelog, c.runs, c.releaseOpts...)

	if c.def.DefaultBranch != "" {
		opts = append([]usecase.PipelineOption{usecase.WithBranchCheck(g)}, opts...)
	}

	return usecase.NewPipeline(
		usecase.PipelineConfig{
			Template:      c.def.TemplateRepository(),
			MarkerPath:    c.def.MarkerPath,
			Platforms:     c.def.Platforms,
			DefaultBranch: c.def.DefaultBranch,
		},
		usecase.NewGate(probe),
		build,
		release,
		c.runs,
		opts...,
	)
}

// workspacePipeline runs every trigger in its own checkout under the work
// directory
func (c *pipelineConfig) workspacePipeline(comp *components) (*usecase.WorkspacePipeline, error) {
	token, err := c.github.CloneToken()
	if err != nil {
		return nil, err
	}
	webURL, err := c.github.WebURL()
	if err != nil {
		return nil, err
	}

	opts := []git.CheckoutOption{
		git.WithToken(token),
		git.WithRemoteURL(git.GitHubRemote(webURL)),
	}
	if comp.def.DefaultBranch != "" {
		opts = append(opts, git.WithBranch(comp.def.DefaultBranch))
	}
	checkout := git.NewCheckout(c.pipeline.WorkDir, opts...)

	return usecase.NewWorkspacePipeline(checkout, comp.runs,
		func(ws *model.Workspace, runID string) interfaces.PipelineUseCase {
			return comp.pipelineFor(git.New(ws.Dir), ws.Repository,
				usecase.WithRunIDGenerator(func() string { return runID }))
		},
	), nil
}

func newBuilder(def *config.PipelineDefinition, repoDir string) interfaces.Builder {
	opts := []builder.Option{builder.WithDir(repoDir)}
	if def.Build.Pattern != "" {
		opts = append(opts, builder.WithPattern(def.Build.Pattern))
	}
	return builder.NewCommand(def.Build.Command, opts...)
}

func buildConfig(def *config.PipelineDefinition, workDir string) usecase.BuildConfig {
	return usecase.BuildConfig{
		WorkDir:       workDir,
		Bootstrap:     def.Build.Bootstrap,
		PathExtension: def.Build.PathExtension,
		Skip:          def.Build.Skip,
		Env:           def.Build.Env,
		Parallelism:   def.Build.Parallelism,
	}
}

func newChangelog(def *config.PipelineDefinition, g interfaces.GitRepository, repo model.Repository) *usecase.Changelog {
	var opts []usecase.ChangelogOption
	if !repo.IsZero() {
		opts = append(opts, usecase.WithChangelogRepository(repo))
	}
	if def.Changelog.PreambleLines != nil {
		opts = append(opts, usecase.WithPreambleLines(*def.Changelog.PreambleLines))
	}
	if def.Changelog.OtherChanges != nil {
		opts = append(opts, usecase.WithOtherChanges(*def.Changelog.OtherChanges))
	}
	return usecase.NewChangelog(g, opts...)
}

// resolveTag reads the tag from the flag, accepting a full ref
func resolveTag(s string) (model.Tag, error) {
	if s == "" {
		return "", goerr.New("tag is required (--tag or GITHUB_REF_NAME)")
	}
	return model.ParseTag(s)
}

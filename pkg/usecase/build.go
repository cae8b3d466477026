package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
	"golang.org/x/sync/errgroup"
)

// BuildConfig holds the environment inputs of the build stage
type BuildConfig struct {
	WorkDir       string   // parent of per-job output directories
	Bootstrap     string   // toolchain bootstrap command
	PathExtension []string // prepended to PATH
	Skip          []string // build identifiers to exclude, exported as CIBW_SKIP
	Env           []string // extra KEY=VALUE pairs
	Parallelism   int      // 0 runs every platform at once
}

// Build fans the build out over the platform list
type Build struct {
	builder interfaces.Builder
	store   interfaces.ArtifactStore
	cfg     BuildConfig
}

// NewBuild creates the build stage
func NewBuild(builder interfaces.Builder, store interfaces.ArtifactStore, cfg BuildConfig) *Build {
	return &Build{
		builder: builder,
		store:   store,
		cfg:     cfg,
	}
}

// Job describes the build job for the platform at index
func (uc *Build) Job(runID string, index int, platform model.Platform) *model.BuildJob {
	job := &model.BuildJob{
		RunID:         runID,
		Platform:      platform,
		Index:         index,
		PathExtension: uc.cfg.PathExtension,
	}
	job.OutputDir = filepath.Join(uc.cfg.WorkDir, runID, job.ArtifactName())

	if platform.NeedsBootstrap() {
		job.Bootstrap = uc.cfg.Bootstrap
	}

	job.Env = append(job.Env, "CIBW_PLATFORM="+string(platform.OS))
	if platform.Arch != "" {
		job.Env = append(job.Env, "CIBW_ARCHS="+platform.Arch)
	}
	if len(uc.cfg.Skip) > 0 {
		job.Env = append(job.Env, "CIBW_SKIP="+strings.Join(uc.cfg.Skip, " "))
	}
	job.Env = append(job.Env, uc.cfg.Env...)

	return job
}

// BuildAll builds every platform independently and stores one artifact per
// job. A failing job does not stop the others; every failure is reported.
func (uc *Build) BuildAll(ctx context.Context, runID string, platforms []model.Platform) ([]model.Artifact, error) {
	logger := ctxlog.From(ctx)

	if len(platforms) == 0 {
		return nil, goerr.New("no platforms configured", goerr.T(types.ErrInvalidConfig))
	}

	artifacts := make([]*model.Artifact, len(platforms))
	errs := make([]error, len(platforms))

	var eg errgroup.Group
	if uc.cfg.Parallelism > 0 {
		eg.SetLimit(uc.cfg.Parallelism)
	}

	for i, platform := range platforms {
		job := uc.Job(runID, i, platform)
		eg.Go(func() error {
			artifact, err := uc.buildOne(ctx, job)
			if err != nil {
				logger.Error("Platform build failed",
					"platform", platform.Name,
					"index", i,
					"error", err,
				)
				errs[i] = err
				return nil
			}
			artifacts[i] = artifact
			return nil
		})
	}
	_ = eg.Wait()

	var failed []string
	for i, err := range errs {
		if err != nil {
			failed = append(failed, platforms[i].Name)
		}
	}
	if len(failed) > 0 {
		return nil, goerr.Wrap(errors.Join(errs...), "build failed",
			goerr.V("failed_platforms", failed),
			goerr.V("platform_count", len(platforms)),
			goerr.T(types.ErrBuildFailed))
	}

	result := make([]model.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		result = append(result, *a)
	}

	logger.Info("All platform builds completed",
		"run_id", runID,
		"artifact_count", len(result),
	)
	return result, nil
}

// BuildPlatform builds a single matrix entry. index is the entry's position
// in the full platform list so the artifact name matches BuildAll's.
func (uc *Build) BuildPlatform(ctx context.Context, runID string, index int, platform model.Platform) (*model.Artifact, error) {
	if err := platform.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid platform", goerr.T(types.ErrInvalidConfig))
	}
	artifact, err := uc.buildOne(ctx, uc.Job(runID, index, platform))
	if err != nil {
		return nil, goerr.Wrap(err, "build failed",
			goerr.V("platform", platform.Name),
			goerr.T(types.ErrBuildFailed))
	}
	return artifact, nil
}

func (uc *Build) buildOne(ctx context.Context, job *model.BuildJob) (*model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "build cancelled", goerr.V("platform", job.Platform.Name))
	}

	output, err := uc.builder.Build(ctx, job)
	if err != nil {
		return nil, goerr.Wrap(err, "builder failed", goerr.V("platform", job.Platform.Name))
	}
	if len(output.Files) == 0 {
		return nil, goerr.New("build produced no files",
			goerr.V("platform", job.Platform.Name),
			goerr.V("output_dir", job.OutputDir),
			goerr.T(types.ErrNoArtifacts))
	}

	artifact, err := uc.store.Put(ctx, job.RunID, job.ArtifactName(), output.Files)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to store artifact",
			goerr.V("platform", job.Platform.Name),
			goerr.V("name", job.ArtifactName()))
	}
	return artifact, nil
}

package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
)

// GateChecker decides whether the pipeline continues past the gate
type GateChecker interface {
	Check(ctx context.Context, input *model.GateInput) (*model.GateDecision, error)
}

// BuildStage runs the build fan-out
type BuildStage interface {
	BuildAll(ctx context.Context, runID string, platforms []model.Platform) ([]model.Artifact, error)
}

// ReleaseStage runs the release stage
type ReleaseStage interface {
	Assemble(ctx context.Context, run *model.Run) (*model.ReleaseRecord, error)
}

// PipelineConfig is the static part of every run
type PipelineConfig struct {
	Template      model.Repository
	MarkerPath    string
	Platforms     []model.Platform
	DefaultBranch string // when set, the tag must be reachable from this ref
}

// Pipeline walks a run through gate, build fan-out and release
type Pipeline struct {
	cfg     PipelineConfig
	gate    GateChecker
	build   BuildStage
	release ReleaseStage
	runs    interfaces.RunRepository
	git     interfaces.GitRepository
	now     func() time.Time
	newID   func() string
}

// PipelineOption configures the pipeline
type PipelineOption func(*Pipeline)

// WithPipelineClock sets the clock used for state history
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithRunIDGenerator replaces the run ID generator
func WithRunIDGenerator(fn func() string) PipelineOption {
	return func(p *Pipeline) {
		p.newID = fn
	}
}

// WithBranchCheck enables the default branch check using git
func WithBranchCheck(git interfaces.GitRepository) PipelineOption {
	return func(p *Pipeline) {
		p.git = git
	}
}

// NewPipeline creates the pipeline use case
func NewPipeline(
	cfg PipelineConfig,
	gate GateChecker,
	build BuildStage,
	release ReleaseStage,
	runs interfaces.RunRepository,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		gate:    gate,
		build:   build,
		release: release,
		runs:    runs,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline for trigger. The returned run is always
// non-nil once the run was created, including when an error is returned.
func (p *Pipeline) Run(ctx context.Context, trigger *model.Trigger) (*model.Run, error) {
	run := model.NewRun(p.newID(), *trigger, p.now().UTC())
	logger := ctxlog.From(ctx).With("run_id", run.ID, "tag", trigger.Tag)
	ctx = ctxlog.With(ctx, logger)

	logger.Info("Pipeline triggered",
		"repository", trigger.Repository.FullName(),
		"source", trigger.Source,
	)

	if err := p.save(ctx, run); err != nil {
		return run, err
	}

	if err := p.execute(ctx, run); err != nil {
		run.Fail(err, p.now().UTC())
		logger.Error("Pipeline failed", "state", run.State, "error", err)
		if saveErr := p.save(ctx, run); saveErr != nil {
			logger.Error("Failed to save failed run", "error", saveErr)
		}
		return run, err
	}

	logger.Info("Pipeline finished", "state", run.State)
	return run, nil
}

// Release runs only the release stage for a run whose artifacts were built
// by separate build jobs under runID. A run unknown to the repository is
// recorded as built first.
func (p *Pipeline) Release(ctx context.Context, runID string, trigger *model.Trigger) (*model.Run, error) {
	logger := ctxlog.From(ctx).With("run_id", runID, "tag", trigger.Tag)
	ctx = ctxlog.With(ctx, logger)

	if !trigger.Tag.IsVersion() {
		return nil, goerr.New("trigger is not a version tag",
			goerr.V("tag", trigger.Tag),
			goerr.T(types.ErrInvalidTag))
	}

	run, err := p.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load run", goerr.V("run_id", runID))
	}
	if run == nil {
		run = model.NewRun(runID, *trigger, p.now().UTC())
		for _, state := range []model.RunState{model.StateGateChecked, model.StateBuilding, model.StateBuilt} {
			if err := run.Transition(state, p.now().UTC()); err != nil {
				return nil, err
			}
		}
	} else if run.Trigger.Tag != trigger.Tag || !run.Trigger.Repository.Same(trigger.Repository) {
		return run, goerr.New("run belongs to another tag",
			goerr.V("run_id", runID),
			goerr.V("run_tag", run.Trigger.Tag),
			goerr.V("tag", trigger.Tag),
			goerr.T(types.ErrInvalidConfig))
	}

	err = func() error {
		if err := p.advance(ctx, run, model.StateReleasing); err != nil {
			return err
		}
		record, err := p.release.Assemble(ctx, run)
		if err != nil {
			return err
		}
		run.Release = record
		return p.advance(ctx, run, model.StateReleased)
	}()
	if err != nil {
		run.Fail(err, p.now().UTC())
		logger.Error("Release failed", "state", run.State, "error", err)
		if saveErr := p.save(ctx, run); saveErr != nil {
			logger.Error("Failed to save failed run", "error", saveErr)
		}
		return run, err
	}

	logger.Info("Release finished", "url", run.Release.URL)
	return run, nil
}

func (p *Pipeline) execute(ctx context.Context, run *model.Run) error {
	trigger := run.Trigger

	if !trigger.Tag.IsVersion() {
		return goerr.New("trigger is not a version tag",
			goerr.V("tag", trigger.Tag),
			goerr.T(types.ErrInvalidTag))
	}

	decision, err := p.gate.Check(ctx, &model.GateInput{
		Repository: trigger.Repository,
		Template:   p.cfg.Template,
		MarkerPath: p.cfg.MarkerPath,
		Ref:        trigger.Tag.String(),
	})
	if err != nil {
		return goerr.Wrap(err, "gate check failed")
	}

	if decision.Continue && p.git != nil && p.cfg.DefaultBranch != "" {
		onBranch, err := p.git.IsAncestor(ctx, trigger.Tag.String(), p.cfg.DefaultBranch)
		if err != nil {
			return goerr.Wrap(err, "failed to check default branch", goerr.V("branch", p.cfg.DefaultBranch))
		}
		if !onBranch {
			decision = &model.GateDecision{Continue: false, Reason: model.GateReasonNotOnDefaultBranch}
		}
	}

	run.Gate = decision
	if err := p.advance(ctx, run, model.StateGateChecked); err != nil {
		return err
	}

	if !decision.Continue {
		ctxlog.From(ctx).Info("Release skipped by gate", "reason", decision.Reason)
		return p.advance(ctx, run, model.StateSkipped)
	}

	if err := p.advance(ctx, run, model.StateBuilding); err != nil {
		return err
	}
	artifacts, err := p.build.BuildAll(ctx, run.ID, p.cfg.Platforms)
	if err != nil {
		return err
	}
	run.Artifacts = artifacts
	if err := p.advance(ctx, run, model.StateBuilt); err != nil {
		return err
	}

	if err := p.advance(ctx, run, model.StateReleasing); err != nil {
		return err
	}
	record, err := p.release.Assemble(ctx, run)
	if err != nil {
		return err
	}
	run.Release = record
	return p.advance(ctx, run, model.StateReleased)
}

func (p *Pipeline) advance(ctx context.Context, run *model.Run, next model.RunState) error {
	if err := run.Transition(next, p.now().UTC()); err != nil {
		return err
	}
	ctxlog.From(ctx).Debug("Run state changed", "state", next)
	return p.save(ctx, run)
}

func (p *Pipeline) save(ctx context.Context, run *model.Run) error {
	if err := p.runs.PutRun(ctx, run); err != nil {
		return goerr.Wrap(err, "failed to save run", goerr.V("run_id", run.ID), goerr.V("state", run.State))
	}
	return nil
}

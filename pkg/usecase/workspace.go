package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

// PipelineFactory wires a pipeline whose build, changelog and branch check
// all read from ws. runID must be used as the run's ID.
type PipelineFactory func(ws *model.Workspace, runID string) interfaces.PipelineUseCase

// WorkspacePipeline runs every trigger against a fresh checkout of the
// trigger's repository at its tag, so concurrent runs never share a tree
type WorkspacePipeline struct {
	checkout    interfaces.SourceCheckout
	runs        interfaces.RunRepository
	newPipeline PipelineFactory
	now         func() time.Time
	newID       func() string
}

// WorkspaceOption configures WorkspacePipeline
type WorkspaceOption func(*WorkspacePipeline)

// WithWorkspaceRunIDGenerator replaces the run ID generator
func WithWorkspaceRunIDGenerator(fn func() string) WorkspaceOption {
	return func(p *WorkspacePipeline) {
		p.newID = fn
	}
}

// WithWorkspaceClock sets the clock used when a checkout failure is recorded
func WithWorkspaceClock(now func() time.Time) WorkspaceOption {
	return func(p *WorkspacePipeline) {
		p.now = now
	}
}

// NewWorkspacePipeline creates a WorkspacePipeline
func NewWorkspacePipeline(checkout interfaces.SourceCheckout, runs interfaces.RunRepository, factory PipelineFactory, opts ...WorkspaceOption) *WorkspacePipeline {
	p := &WorkspacePipeline{
		checkout:    checkout,
		runs:        runs,
		newPipeline: factory,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run checks out the tagged source, runs the pipeline on it and removes
// the checkout afterwards. A failed checkout is recorded as a failed run.
func (p *WorkspacePipeline) Run(ctx context.Context, trigger *model.Trigger) (*model.Run, error) {
	runID := p.newID()
	logger := ctxlog.From(ctx).With("run_id", runID, "tag", trigger.Tag)

	ws, err := p.checkout.Checkout(ctx, runID, trigger)
	if err != nil {
		err = goerr.Wrap(err, "failed to check out tagged source",
			goerr.V("repository", trigger.Repository.FullName()),
			goerr.V("tag", trigger.Tag))

		run := model.NewRun(runID, *trigger, p.now().UTC())
		run.Fail(err, p.now().UTC())
		if saveErr := p.runs.PutRun(ctx, run); saveErr != nil {
			logger.Error("Failed to save failed run", "error", saveErr)
		}
		return run, err
	}
	defer func() {
		if err := p.checkout.Remove(context.WithoutCancel(ctx), ws); err != nil {
			logger.Warn("Failed to remove workspace", "dir", ws.Dir, "error", err)
		}
	}()

	logger.Info("Source checked out", "dir", ws.Dir, "commit", ws.Commit)
	return p.newPipeline(ws, runID).Run(ctx, trigger)
}

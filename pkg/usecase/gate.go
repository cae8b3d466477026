package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

// Gate is the template-flag gate deciding whether a release runs at all
type Gate struct {
	probe interfaces.MarkerProbe
}

// NewGate creates a gate looking for the marker file through probe
func NewGate(probe interfaces.MarkerProbe) *Gate {
	return &Gate{probe: probe}
}

// Check returns Continue=false for the canonical template repository itself
// or when the marker file is present
func (uc *Gate) Check(ctx context.Context, input *model.GateInput) (*model.GateDecision, error) {
	logger := ctxlog.From(ctx)

	if !input.Template.IsZero() && input.Repository.Same(input.Template) {
		logger.Info("Repository is the canonical template, skipping release",
			"repository", input.Repository.FullName(),
		)
		return &model.GateDecision{Continue: false, Reason: model.GateReasonTemplateRepo}, nil
	}

	markerPath := input.MarkerPath
	if markerPath == "" {
		markerPath = model.DefaultMarkerPath
	}
	probeInput := *input
	probeInput.MarkerPath = markerPath

	exists, err := uc.probe.MarkerExists(ctx, &probeInput)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to probe template marker",
			goerr.V("repository", input.Repository.FullName()),
			goerr.V("marker_path", markerPath))
	}
	if exists {
		logger.Info("Template marker file present, skipping release",
			"repository", input.Repository.FullName(),
			"marker_path", markerPath,
		)
		return &model.GateDecision{Continue: false, Reason: model.GateReasonMarkerFilePresent}, nil
	}

	return &model.GateDecision{Continue: true, Reason: model.GateReasonRelease}, nil
}

// GitHubMarkerProbe checks the marker file through the GitHub contents API
type GitHubMarkerProbe struct {
	client interfaces.GitHubClient
}

// NewGitHubMarkerProbe creates a probe reading the repository at the gate ref
func NewGitHubMarkerProbe(client interfaces.GitHubClient) *GitHubMarkerProbe {
	return &GitHubMarkerProbe{client: client}
}

// MarkerExists implements interfaces.MarkerProbe
func (p *GitHubMarkerProbe) MarkerExists(ctx context.Context, input *model.GateInput) (bool, error) {
	return p.client.FileExists(ctx, input.Repository, input.MarkerPath, input.Ref)
}

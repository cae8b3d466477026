package interfaces

import (
	"context"

	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

// WebhookUseCase defines the interface for webhook event processing
type WebhookUseCase interface {
	// ProcessEvent processes a webhook event
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) error
}

// PipelineUseCase runs the release pipeline for a trigger
type PipelineUseCase interface {
	Run(ctx context.Context, trigger *model.Trigger) (*model.Run, error)
}

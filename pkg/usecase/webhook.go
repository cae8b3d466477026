package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/utils/async"
)

// DispatchFunc runs handler detached from the request
type DispatchFunc func(ctx context.Context, handler func(ctx context.Context) error)

type webhookUseCase struct {
	pipeline     interfaces.PipelineUseCase
	repositories []model.Repository
	dispatch     DispatchFunc
}

// WebhookOption configures the webhook use case
type WebhookOption func(*webhookUseCase)

// WithAllowedRepositories restricts which repositories may trigger runs
func WithAllowedRepositories(repos ...model.Repository) WebhookOption {
	return func(uc *webhookUseCase) {
		uc.repositories = repos
	}
}

// WithDispatcher replaces the asynchronous dispatcher
func WithDispatcher(fn DispatchFunc) WebhookOption {
	return func(uc *webhookUseCase) {
		uc.dispatch = fn
	}
}

// NewWebhook creates a new instance of WebhookUseCase
func NewWebhook(pipeline interfaces.PipelineUseCase, opts ...WebhookOption) *webhookUseCase {
	uc := &webhookUseCase{
		pipeline: pipeline,
		dispatch: async.Dispatch,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ProcessEvent starts a pipeline run for version tag pushes and ignores
// everything else
func (uc *webhookUseCase) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	logger := ctxlog.From(ctx)

	logger.Info("Processing webhook event",
		"id", event.ID,
		"type", event.Type,
		"ref", event.Ref,
		"repository", event.Repository,
		"sender", event.Sender,
		"tag_push", event.IsTagPush(),
	)

	if !event.IsTagPush() {
		logger.Debug("Ignoring event that is not a version tag push",
			"type", event.Type,
			"ref", event.Ref,
		)
		return nil
	}

	repo, err := model.ParseRepository(event.Repository)
	if err != nil {
		return goerr.Wrap(err, "invalid repository in webhook event", goerr.V("delivery_id", event.ID))
	}

	if !uc.allowed(repo) {
		logger.Warn("Tag push from repository that is not allowed",
			"repository", repo.FullName(),
		)
		return nil
	}

	tag, err := model.ParseTag(event.Ref)
	if err != nil {
		return goerr.Wrap(err, "invalid tag in webhook event", goerr.V("delivery_id", event.ID))
	}

	trigger := &model.Trigger{
		Repository: repo,
		Tag:        tag,
		CommitSHA:  event.After,
		Source:     "webhook",
		DeliveryID: event.ID,
	}

	uc.dispatch(ctx, func(ctx context.Context) error {
		_, err := uc.pipeline.Run(ctx, trigger)
		return err
	})

	return nil
}

func (uc *webhookUseCase) allowed(repo model.Repository) bool {
	if len(uc.repositories) == 0 {
		return true
	}
	for _, r := range uc.repositories {
		if r.Same(repo) {
			return true
		}
	}
	return false
}

// ParseRepositories parses a comma separated "owner/name" list
func ParseRepositories(s string) ([]model.Repository, error) {
	var repos []model.Repository
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		repo, err := model.ParseRepository(item)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

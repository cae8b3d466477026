package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/usecase"
)

func syncDispatch(ctx context.Context, handler func(ctx context.Context) error) {
	_ = handler(ctx)
}

func TestWebhookUseCase_ProcessEvent(t *testing.T) {
	tests := []struct {
		name    string
		event   *model.WebhookEvent
		allowed []model.Repository
		want    *model.Trigger
		wantErr bool
	}{
		{
			name: "version tag push starts a run",
			event: &model.WebhookEvent{
				ID:         "delivery-1",
				Type:       model.EventTypePush,
				Ref:        "refs/tags/v0.2.0",
				After:      "abc123",
				Repository: "acme/fastlib",
				Sender:     "octocat",
				ReceivedAt: time.Now(),
			},
			want: &model.Trigger{
				Repository: model.Repository{Owner: "acme", Name: "fastlib"},
				Tag:        "v0.2.0",
				CommitSHA:  "abc123",
				Source:     "webhook",
				DeliveryID: "delivery-1",
			},
		},
		{
			name: "branch push is ignored",
			event: &model.WebhookEvent{
				ID:         "delivery-2",
				Type:       model.EventTypePush,
				Ref:        "refs/heads/main",
				Repository: "acme/fastlib",
			},
		},
		{
			name: "non-version tag is ignored",
			event: &model.WebhookEvent{
				ID:         "delivery-3",
				Type:       model.EventTypePush,
				Ref:        "refs/tags/nightly",
				Repository: "acme/fastlib",
			},
		},
		{
			name: "tag deletion is ignored",
			event: &model.WebhookEvent{
				ID:         "delivery-4",
				Type:       model.EventTypePush,
				Ref:        "refs/tags/v0.2.0",
				Deleted:    true,
				Repository: "acme/fastlib",
			},
		},
		{
			name: "ping is ignored",
			event: &model.WebhookEvent{
				ID:   "delivery-5",
				Type: model.EventTypePing,
			},
		},
		{
			name: "repository outside allow list is ignored",
			event: &model.WebhookEvent{
				ID:         "delivery-6",
				Type:       model.EventTypePush,
				Ref:        "refs/tags/v1.0.0",
				Repository: "someone/else",
			},
			allowed: []model.Repository{{Owner: "acme", Name: "fastlib"}},
		},
		{
			name: "malformed repository is an error",
			event: &model.WebhookEvent{
				ID:         "delivery-7",
				Type:       model.EventTypePush,
				Ref:        "refs/tags/v1.0.0",
				Repository: "no-slash",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *model.Trigger
			pipeline := &mockPipeline{
				runFunc: func(ctx context.Context, trigger *model.Trigger) (*model.Run, error) {
					got = trigger
					return model.NewRun("run-1", *trigger, time.Now()), nil
				},
			}

			uc := usecase.NewWebhook(pipeline,
				usecase.WithDispatcher(syncDispatch),
				usecase.WithAllowedRepositories(tt.allowed...),
			)
			err := uc.ProcessEvent(context.Background(), tt.event)
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Value(t, got).Equal(tt.want)
		})
	}
}

func TestParseRepositories(t *testing.T) {
	repos, err := usecase.ParseRepositories("acme/fastlib, acme/other,,")
	gt.NoError(t, err)
	gt.Value(t, repos).Equal([]model.Repository{
		{Owner: "acme", Name: "fastlib"},
		{Owner: "acme", Name: "other"},
	})

	_, err = usecase.ParseRepositories("acme")
	gt.Error(t, err)

	repos, err = usecase.ParseRepositories("")
	gt.NoError(t, err)
	gt.A(t, repos).Length(0)
}

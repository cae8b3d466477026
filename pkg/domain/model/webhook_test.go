package model_test

import (
	"testing"

	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

func TestWebhookEvent_IsTagPush(t *testing.T) {
	tests := []struct {
		name     string
		event    *model.WebhookEvent
		expected bool
	}{
		{
			name: "Version tag push - supported",
			event: &model.WebhookEvent{
				Type: model.EventTypePush,
				Ref:  "refs/tags/v1.2.3",
			},
			expected: true,
		},
		{
			name: "Two component version tag - supported",
			event: &model.WebhookEvent{
				Type: model.EventTypePush,
				Ref:  "refs/tags/v0.1",
			},
			expected: true,
		},
		{
			name: "Branch push - not supported",
			event: &model.WebhookEvent{
				Type: model.EventTypePush,
				Ref:  "refs/heads/main",
			},
			expected: false,
		},
		{
			name: "Non version tag - not supported",
			event: &model.WebhookEvent{
				Type: model.EventTypePush,
				Ref:  "refs/tags/nightly",
			},
			expected: false,
		},
		{
			name: "Pre-release suffix - not supported",
			event: &model.WebhookEvent{
				Type: model.EventTypePush,
				Ref:  "refs/tags/v1.0.0-rc1",
			},
			expected: false,
		},
		{
			name: "Deleted tag - not supported",
			event: &model.WebhookEvent{
				Type:    model.EventTypePush,
				Ref:     "refs/tags/v1.0.0",
				Deleted: true,
			},
			expected: false,
		},
		{
			name: "Create event - not supported",
			event: &model.WebhookEvent{
				Type: model.EventTypeCreate,
				Ref:  "refs/tags/v1.0.0",
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.event.IsTagPush()
			if got != tt.expected {
				t.Errorf("IsTagPush() = %v, want %v", got, tt.expected)
			}
		})
	}
}

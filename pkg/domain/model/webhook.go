package model

import (
	"strings"
	"time"
)

// WebhookEventType represents the type of webhook event received
type WebhookEventType string

const (
	EventTypePush    WebhookEventType = "push"
	EventTypeCreate  WebhookEventType = "create"
	EventTypePing    WebhookEventType = "ping"
	EventTypeUnknown WebhookEventType = "unknown"
)

// WebhookEvent represents a webhook event received from GitHub
type WebhookEvent struct {
	ID         string           // Retrieved from X-GitHub-Delivery header
	Type       WebhookEventType // Retrieved from X-GitHub-Event header
	Ref        string           // Full git ref, e.g. refs/tags/v1.0.0
	After      string           // Commit SHA the ref points to
	Deleted    bool             // True when the ref was deleted
	Repository string           // Repository full name
	Sender     string           // Sender username
	ReceivedAt time.Time        // Time when the event was received
	RawPayload []byte           // Raw JSON payload
}

// IsTagPush reports whether the event is a push creating a version tag
func (e *WebhookEvent) IsTagPush() bool {
	if e.Type != EventTypePush || e.Deleted {
		return false
	}
	if !strings.HasPrefix(e.Ref, TagRefPrefix) {
		return false
	}
	return Tag(strings.TrimPrefix(e.Ref, TagRefPrefix)).IsVersion()
}

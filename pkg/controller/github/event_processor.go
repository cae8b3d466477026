package github

import (
	"slices"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

// ParseEvent converts a GitHub webhook payload into a WebhookEvent. Event
// types other than push, create and ping are returned as EventTypeUnknown.
func ParseEvent(eventType, deliveryID string, body []byte, receivedAt time.Time) (*model.WebhookEvent, error) {
	event := &model.WebhookEvent{
		ID:         deliveryID,
		Type:       model.WebhookEventType(eventType),
		ReceivedAt: receivedAt,
		RawPayload: body,
	}

	if !slices.Contains(github.MessageTypes(), eventType) {
		event.Type = model.EventTypeUnknown
		return event, nil
	}

	payload, err := github.ParseWebHook(eventType, body)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid webhook payload",
			goerr.V("event_type", eventType),
			goerr.V("delivery_id", deliveryID))
	}

	// Use Get*() helper methods for concise and nil-safe field access
	switch e := payload.(type) {
	case *github.PushEvent:
		event.Ref = e.GetRef()
		event.After = e.GetAfter()
		event.Deleted = e.GetDeleted()
		event.Repository = e.GetRepo().GetFullName()
		event.Sender = e.GetSender().GetLogin()

	case *github.CreateEvent:
		if e.GetRefType() == "tag" {
			event.Ref = model.TagRefPrefix + e.GetRef()
		} else {
			event.Ref = "refs/heads/" + e.GetRef()
		}
		event.Repository = e.GetRepo().GetFullName()
		event.Sender = e.GetSender().GetLogin()

	case *github.PingEvent:
		event.Type = model.EventTypePing

	default:
		event.Type = model.EventTypeUnknown
	}

	return event, nil
}

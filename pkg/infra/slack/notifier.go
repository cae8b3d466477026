package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/slack-go/slack"
)

// Notifier posts release announcements to a Slack incoming webhook
type Notifier struct {
	webhookURL string
	post       func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// Option configures the notifier
type Option func(*Notifier)

// WithPostFunc replaces the function used to deliver messages
func WithPostFunc(fn func(ctx context.Context, url string, msg *slack.WebhookMessage) error) Option {
	return func(n *Notifier) {
		n.post = fn
	}
}

// New creates a Slack notifier
func New(webhookURL string, opts ...Option) *Notifier {
	n := &Notifier{
		webhookURL: webhookURL,
		post:       slack.PostWebhookContext,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifyRelease posts a summary of the published release
func (n *Notifier) NotifyRelease(ctx context.Context, record *model.ReleaseRecord) error {
	msg := buildMessage(record)
	if err := n.post(ctx, n.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post Slack message",
			goerr.V("repository", record.Repository.FullName()),
			goerr.V("tag", record.Tag))
	}
	return nil
}

func buildMessage(record *model.ReleaseRecord) *slack.WebhookMessage {
	title := fmt.Sprintf("%s %s released", record.Repository.FullName(), record.Tag)

	var assets strings.Builder
	for _, name := range record.Assets {
		assets.WriteString("• `" + name + "`\n")
	}

	return &slack.WebhookMessage{
		Text: title,
		Attachments: []slack.Attachment{
			{
				Color:     "good",
				Title:     title,
				TitleLink: record.URL,
				Text:      record.Body,
				Fields: []slack.AttachmentField{
					{
						Title: fmt.Sprintf("Assets (%d)", len(record.Assets)),
						Value: assets.String(),
					},
				},
			},
		},
	}
}

package config

import (
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/infra/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds release notification configuration
type Slack struct {
	WebhookURL string `masq:"secret"`
}

// Flags returns CLI flags for Slack configuration
func (c *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook URL for release notifications",
			Destination: &c.WebhookURL,
			Sources:     cli.EnvVars("TAGRELEASE_SLACK_WEBHOOK_URL"),
		},
	}
}

// NewNotifier returns nil when no webhook URL is configured
func (c *Slack) NewNotifier() interfaces.Notifier {
	if c.WebhookURL == "" {
		return nil
	}
	return slack.New(c.WebhookURL)
}

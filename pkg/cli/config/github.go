package config

import (
	"context"
	"net/url"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
	"github.com/m-mizutani/tagrelease/pkg/infra/git"
	githubinfra "github.com/m-mizutani/tagrelease/pkg/infra/github"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub configuration
type GitHub struct {
	Token          string `masq:"secret"`
	AppID          int64
	InstallationID int64
	PrivateKey     string `masq:"secret"`
	WebhookSecret  string `masq:"secret"`
	Repository     string
	BaseURL        string
	UploadURL      string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub token with contents write permission",
			Destination: &c.Token,
			Sources:     cli.EnvVars("TAGRELEASE_GITHUB_TOKEN", "GITHUB_TOKEN"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID, used instead of a token",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("TAGRELEASE_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("TAGRELEASE_GITHUB_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "GitHub App private key (PEM content or file path)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("TAGRELEASE_GITHUB_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "GitHub webhook secret",
			Destination: &c.WebhookSecret,
			Sources:     cli.EnvVars("TAGRELEASE_GITHUB_WEBHOOK_SECRET"),
		},
		&cli.StringFlag{
			Name:        "github-repository",
			Usage:       "Repository to release, in owner/name form",
			Destination: &c.Repository,
			Sources:     cli.EnvVars("TAGRELEASE_GITHUB_REPOSITORY", "GITHUB_REPOSITORY"),
		},
		&cli.StringFlag{
			Name:        "github-base-url",
			Usage:       "GitHub API base URL for GitHub Enterprise Server",
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("TAGRELEASE_GITHUB_BASE_URL"),
		},
		&cli.StringFlag{
			Name:        "github-upload-url",
			Usage:       "GitHub Enterprise Server upload URL (derived from the base URL when empty)",
			Destination: &c.UploadURL,
			Sources:     cli.EnvVars("TAGRELEASE_GITHUB_UPLOAD_URL"),
		},
	}
}

// NewClient builds a GitHub client. GitHub App credentials take precedence
// over a token.
func (c *GitHub) NewClient() (interfaces.GitHubClient, error) {
	opts := c.options()

	if c.AppID != 0 {
		key, err := c.appKey()
		if err != nil {
			return nil, err
		}
		return githubinfra.NewClient(c.AppID, c.InstallationID, key, opts...)
	}

	if c.Token == "" {
		return nil, goerr.New("GitHub token or App credentials are required", goerr.T(types.ErrInvalidConfig))
	}
	return githubinfra.NewClientWithToken(c.Token, opts...)
}

// CloneToken returns the token source used to clone repositories over
// HTTPS, preferring GitHub App installation tokens
func (c *GitHub) CloneToken() (git.TokenFunc, error) {
	if c.AppID != 0 {
		key, err := c.appKey()
		if err != nil {
			return nil, err
		}
		return githubinfra.NewInstallationTokenSource(c.AppID, c.InstallationID, key, c.options()...)
	}

	token := c.Token
	return func(context.Context) (string, error) { return token, nil }, nil
}

// WebURL is the web host repositories are cloned from
func (c *GitHub) WebURL() (string, error) {
	if c.BaseURL == "" {
		return "https://github.com", nil
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", goerr.New("invalid GitHub base URL",
			goerr.V("url", c.BaseURL),
			goerr.T(types.ErrInvalidConfig))
	}
	return u.Scheme + "://" + u.Host, nil
}

func (c *GitHub) options() []githubinfra.Option {
	if c.BaseURL == "" {
		return nil
	}
	return []githubinfra.Option{githubinfra.WithEnterpriseURLs(c.BaseURL, c.UploadURL)}
}

func (c *GitHub) appKey() ([]byte, error) {
	if c.InstallationID == 0 || c.PrivateKey == "" {
		return nil, goerr.New("GitHub App requires installation ID and private key",
			goerr.V("app_id", c.AppID),
			goerr.T(types.ErrInvalidConfig))
	}
	return c.privateKey()
}

// privateKey accepts either the PEM content itself or a path to it
func (c *GitHub) privateKey() ([]byte, error) {
	if _, err := os.Stat(c.PrivateKey); err == nil {
		key, err := os.ReadFile(c.PrivateKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read GitHub App private key", goerr.V("path", c.PrivateKey))
		}
		return key, nil
	}
	return []byte(c.PrivateKey), nil
}

// Repo parses the configured repository
func (c *GitHub) Repo() (model.Repository, error) {
	if c.Repository == "" {
		return model.Repository{}, goerr.New("GitHub repository is required", goerr.T(types.ErrInvalidConfig))
	}
	return model.ParseRepository(c.Repository)
}

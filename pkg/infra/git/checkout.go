package git

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
)

// TokenFunc returns a token for HTTPS access to the remote. An empty token
// clones anonymously.
type TokenFunc func(ctx context.Context) (string, error)

// Checkout clones the trigger repository into <root>/<run id>/src and
// checks out the tag
type Checkout struct {
	root      string
	remoteURL func(repo model.Repository) string
	token     TokenFunc
	branch    string
}

// CheckoutOption configures Checkout
type CheckoutOption func(*Checkout)

// WithRemoteURL replaces how a repository maps to its clone URL
func WithRemoteURL(fn func(repo model.Repository) string) CheckoutOption {
	return func(c *Checkout) {
		c.remoteURL = fn
	}
}

// WithToken authenticates clones with the token fn returns
func WithToken(fn TokenFunc) CheckoutOption {
	return func(c *Checkout) {
		c.token = fn
	}
}

// WithBranch makes branch available as a local ref so it can be used for
// the default branch check
func WithBranch(branch string) CheckoutOption {
	return func(c *Checkout) {
		c.branch = branch
	}
}

// GitHubRemote builds HTTPS clone URLs on the host of baseURL, e.g.
// "https://github.com"
func GitHubRemote(baseURL string) func(repo model.Repository) string {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return func(repo model.Repository) string {
		return baseURL + "/" + repo.Owner + "/" + repo.Name + ".git"
	}
}

// NewCheckout creates a Checkout placing workspaces under root
func NewCheckout(root string, opts ...CheckoutOption) *Checkout {
	c := &Checkout{
		root:      root,
		remoteURL: GitHubRemote("https://github.com"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Checkout clones trigger.Repository and detaches HEAD at trigger.Tag. When
// the trigger carries a commit SHA, the tag must still point at it.
func (c *Checkout) Checkout(ctx context.Context, runID string, trigger *model.Trigger) (*model.Workspace, error) {
	dir := filepath.Join(c.root, runID, "src")
	if err := os.RemoveAll(dir); err != nil {
		return nil, goerr.Wrap(err, "failed to clean workspace", goerr.V("dir", dir))
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create workspace", goerr.V("dir", dir))
	}

	env, err := c.environ(ctx)
	if err != nil {
		return nil, err
	}

	remote := c.remoteURL(trigger.Repository)
	if _, err := runGit(ctx, filepath.Dir(dir), env, "clone", "--quiet", "--no-checkout", remote, dir); err != nil {
		return nil, goerr.Wrap(err, "failed to clone repository",
			goerr.V("repository", trigger.Repository.FullName()),
			goerr.V("run_id", runID))
	}

	repo := New(dir)
	tag := trigger.Tag.String()

	commit, err := repo.revParse(ctx, "refs/tags/"+tag+"^{commit}")
	if err != nil {
		return nil, goerr.Wrap(err, "tag not found in repository",
			goerr.V("repository", trigger.Repository.FullName()),
			goerr.V("tag", tag))
	}

	if trigger.CommitSHA != "" && trigger.CommitSHA != commit {
		// Annotated tag pushes report the tag object, not the commit
		object, err := repo.revParse(ctx, "refs/tags/"+tag)
		if err != nil {
			return nil, err
		}
		if trigger.CommitSHA != object {
			return nil, goerr.New("tag no longer points at the pushed commit",
				goerr.V("tag", tag),
				goerr.V("pushed", trigger.CommitSHA),
				goerr.V("current", commit),
				goerr.T(types.ErrSourceMismatch))
		}
	}

	if _, err := repo.run(ctx, "checkout", "--quiet", "--detach", commit); err != nil {
		return nil, goerr.Wrap(err, "failed to check out tag", goerr.V("tag", tag))
	}

	if c.branch != "" {
		if _, err := repo.run(ctx, "branch", "--force", c.branch, "origin/"+c.branch); err != nil {
			return nil, goerr.Wrap(err, "failed to create default branch ref", goerr.V("branch", c.branch))
		}
	}

	return &model.Workspace{
		RunID:      runID,
		Dir:        dir,
		Repository: trigger.Repository,
		Tag:        trigger.Tag,
		Commit:     commit,
	}, nil
}

// Remove deletes the workspace directory
func (c *Checkout) Remove(_ context.Context, ws *model.Workspace) error {
	if err := os.RemoveAll(ws.Dir); err != nil {
		return goerr.Wrap(err, "failed to remove workspace", goerr.V("dir", ws.Dir))
	}
	return nil
}

// environ passes credentials through GIT_CONFIG_* so they stay out of the
// command line and the remote URL
func (c *Checkout) environ(ctx context.Context) ([]string, error) {
	env := []string{"GIT_TERMINAL_PROMPT=0"}
	if c.token == nil {
		return env, nil
	}

	token, err := c.token(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get token for clone")
	}
	if token == "" {
		return env, nil
	}

	cred := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
	return append(env,
		"GIT_CONFIG_COUNT=1",
		"GIT_CONFIG_KEY_0=http.extraHeader",
		"GIT_CONFIG_VALUE_0=Authorization: Basic "+cred,
	), nil
}

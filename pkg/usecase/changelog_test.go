package usecase_test

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/infra/git"
	"github.com/m-mizutani/tagrelease/pkg/usecase"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func TestChangelog_Generate(t *testing.T) {
	var gotFrom, gotTo string
	g := &mockGit{
		tagsFunc: func(ctx context.Context) ([]string, error) {
			return []string{"v0.1.0", "nightly", "v0.2.0", "v0.3.0"}, nil
		},
		logFunc: func(ctx context.Context, from, to string) ([]model.Commit, error) {
			gotFrom, gotTo = from, to
			return []model.Commit{
				{Hash: "1111111aaaaaaaa", Subject: "feat(wheel): add arm64 builds"},
				{Hash: "2222222bbbbbbbb", Subject: "fix: handle empty tag list"},
				{Hash: "3333333cccccccc", Subject: "chore: bump deps"},
				{Hash: "4444444dddddddd", Subject: "feat!: drop python 3.8", Body: "BREAKING CHANGE: python 3.8 is no longer supported"},
			}, nil
		},
	}

	uc := usecase.NewChangelog(g,
		usecase.WithChangelogRepository(model.Repository{Owner: "acme", Name: "fastlib"}),
		usecase.WithChangelogClock(fixedClock),
	)

	changelog, err := uc.Generate(context.Background(), "v0.2.0")
	gt.NoError(t, err)
	gt.Value(t, gotFrom).Equal("v0.1.0")
	gt.Value(t, gotTo).Equal("v0.2.0")
	gt.Value(t, changelog.Previous).Equal(model.Tag("v0.1.0"))
	gt.A(t, changelog.Commits).Length(4)

	gt.True(t, strings.HasPrefix(changelog.Text,
		"## [0.2.0](https://github.com/acme/fastlib/compare/v0.1.0...v0.2.0) (2024-05-01)\n\n"))
	gt.True(t, strings.HasPrefix(changelog.Body, "### Features\n"))

	body := changelog.Body
	gt.String(t, body).Contains("* **wheel:** add arm64 builds ([1111111](https://github.com/acme/fastlib/commit/1111111aaaaaaaa))")
	gt.String(t, body).Contains("### Bug Fixes\n\n* handle empty tag list")
	gt.String(t, body).Contains("### Other Changes\n\n* bump deps")
	gt.String(t, body).Contains("### BREAKING CHANGES\n\n* python 3.8 is no longer supported")

	features := strings.Index(body, "### Features")
	fixes := strings.Index(body, "### Bug Fixes")
	breaking := strings.Index(body, "### BREAKING CHANGES")
	gt.True(t, features < fixes)
	gt.True(t, fixes < breaking)
}

func TestChangelog_Generate_FirstTag(t *testing.T) {
	var gotFrom string
	g := &mockGit{
		tagsFunc: func(ctx context.Context) ([]string, error) {
			return []string{"v0.1.0"}, nil
		},
		logFunc: func(ctx context.Context, from, to string) ([]model.Commit, error) {
			gotFrom = from
			return []model.Commit{{Hash: "abcdef0123", Subject: "feat: initial"}}, nil
		},
	}

	changelog, err := usecase.NewChangelog(g, usecase.WithChangelogClock(fixedClock)).
		Generate(context.Background(), "v0.1.0")
	gt.NoError(t, err)
	gt.Value(t, gotFrom).Equal("")
	gt.Value(t, changelog.Previous).Equal(model.Tag(""))
	gt.True(t, strings.HasPrefix(changelog.Text, "## 0.1.0 (2024-05-01)\n\n"))
	gt.String(t, changelog.Body).Contains("* initial (abcdef0)")
}

func TestChangelog_Generate_Options(t *testing.T) {
	g := &mockGit{
		tagsFunc: func(ctx context.Context) ([]string, error) {
			return []string{"v1.0.0", "v1.1.0"}, nil
		},
		logFunc: func(ctx context.Context, from, to string) ([]model.Commit, error) {
			return []model.Commit{
				{Hash: "aaaaaaaaaa", Subject: "docs: update readme"},
				{Hash: "bbbbbbbbbb", Subject: "perf: faster wheel copy"},
			}, nil
		},
	}

	changelog, err := usecase.NewChangelog(g,
		usecase.WithOtherChanges(false),
		usecase.WithPreambleLines(0),
		usecase.WithChangelogClock(fixedClock),
	).Generate(context.Background(), "v1.1.0")
	gt.NoError(t, err)
	gt.Value(t, changelog.Body).Equal(changelog.Text)
	gt.String(t, changelog.Body).Contains("### Performance Improvements")
	gt.False(t, strings.Contains(changelog.Body, "update readme"))
}

func TestChangelog_Generate_Git(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not installed")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=tester",
			"GIT_AUTHOR_EMAIL=tester@example.com",
			"GIT_COMMITTER_NAME=tester",
			"GIT_COMMITTER_EMAIL=tester@example.com",
		)
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	run("init", "-q")
	run("commit", "-q", "--allow-empty", "-m", "feat: first release")
	run("tag", "v0.1.0")
	run("commit", "-q", "--allow-empty", "-m", "feat: parallel builds")
	run("commit", "-q", "--allow-empty", "-m", "fix: asset names")
	run("tag", "v0.2.0")

	uc := usecase.NewChangelog(git.New(dir), usecase.WithChangelogClock(fixedClock))
	ctx := context.Background()

	second, err := uc.Generate(ctx, "v0.2.0")
	gt.NoError(t, err)
	gt.A(t, second.Commits).Length(2)
	gt.String(t, second.Body).Contains("parallel builds")
	gt.String(t, second.Body).Contains("asset names")
	gt.False(t, strings.Contains(second.Body, "first release"))

	first, err := uc.Generate(ctx, "v0.1.0")
	gt.NoError(t, err)
	gt.A(t, first.Commits).Length(1)
	gt.String(t, first.Body).Contains("first release")
}

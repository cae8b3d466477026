package git_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/infra/git"
)

func newTestRepo(t *testing.T) (string, func(args ...string)) {
	t.Helper()
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
	return dir, run
}

func TestRepository_TagsAndLog(t *testing.T) {
	ctx := context.Background()
	dir, run := newTestRepo(t)

	run("commit", "-q", "--allow-empty", "-m", "feat: initial")
	run("tag", "v0.1.0")
	run("commit", "-q", "--allow-empty", "-m", "fix(core): handle empty input", "-m", "details here")
	run("commit", "-q", "--allow-empty", "-m", "feat: add wheels")
	run("tag", "v0.2.0")
	run("tag", "not-a-version")

	repo := git.New(dir)

	tags, err := repo.Tags(ctx)
	gt.NoError(t, err)
	gt.A(t, tags).Length(3)

	commits, err := repo.Log(ctx, "v0.1.0", "v0.2.0")
	gt.NoError(t, err)
	gt.A(t, commits).Length(2)
	gt.Value(t, commits[0].Subject).Equal("feat: add wheels")
	gt.Value(t, commits[1].Subject).Equal("fix(core): handle empty input")
	gt.Value(t, commits[1].Body).Equal("details here")
	gt.Value(t, commits[1].Author).Equal("tester")
	gt.Number(t, len(commits[0].Hash)).Equal(40)

	all, err := repo.Log(ctx, "", "v0.1.0")
	gt.NoError(t, err)
	gt.A(t, all).Length(1)

	ok, err := repo.IsAncestor(ctx, "v0.1.0", "v0.2.0")
	gt.NoError(t, err)
	gt.True(t, ok)

	ok, err = repo.IsAncestor(ctx, "v0.2.0", "v0.1.0")
	gt.NoError(t, err)
	gt.False(t, ok)
}

func TestRepository_MarkerExists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo := git.New(dir)
	input := &model.GateInput{MarkerPath: model.DefaultMarkerPath}

	exists, err := repo.MarkerExists(ctx, input)
	gt.NoError(t, err)
	gt.False(t, exists)

	gt.NoError(t, os.MkdirAll(filepath.Join(dir, ".github"), 0755))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, ".github", "template.yml"), []byte("owner: x\n"), 0644))

	exists, err = repo.MarkerExists(ctx, input)
	gt.NoError(t, err)
	gt.True(t, exists)
}

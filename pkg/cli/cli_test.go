package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagrelease/pkg/cli"
)

func TestGateCommand(t *testing.T) {
	tests := []struct {
		name       string
		repository string
		marker     bool
		want       string
	}{
		{name: "derived repository", repository: "acme/fastlib", want: "continue=true\nreason=release\n"},
		{name: "template repository", repository: "acme/python-template", want: "continue=false\nreason=template_repository\n"},
		{name: "marker present", repository: "acme/fastlib", marker: true, want: "continue=false\nreason=marker_file_present\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repoDir := t.TempDir()
			if tt.marker {
				gt.NoError(t, os.MkdirAll(filepath.Join(repoDir, ".github"), 0755))
				gt.NoError(t, os.WriteFile(filepath.Join(repoDir, ".github", "template.yml"), nil, 0644))
			}
			output := filepath.Join(t.TempDir(), "github_output")

			err := cli.Run(context.Background(), []string{
				"tagrelease",
				"--log-format", "text",
				"gate",
				"--github-repository", tt.repository,
				"--template-repository", "acme/python-template",
				"--repo-dir", repoDir,
				"--github-output", output,
			})
			gt.NoError(t, err)

			raw, err := os.ReadFile(output)
			gt.NoError(t, err)
			gt.Value(t, string(raw)).Equal(tt.want)
		})
	}
}

func TestGateCommand_MissingRepository(t *testing.T) {
	t.Setenv("GITHUB_REPOSITORY", "")
	t.Setenv("TAGRELEASE_GITHUB_REPOSITORY", "")

	err := cli.Run(context.Background(), []string{
		"tagrelease", "--log-format", "text",
		"gate", "--repo-dir", t.TempDir(),
	})
	gt.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	err := cli.Run(context.Background(), []string{"tagrelease", "--log-level", "loud", "gate"})
	gt.Error(t, err)
}

func TestBuildCommand_SinglePlatform(t *testing.T) {
	buildArgs := func(artifactDir string, selector ...string) []string {
		args := []string{
			"tagrelease", "--log-format", "text",
			"build",
			"--run-id", "gha-7",
			"--build-command", "touch {output_dir}/x-{platform}.whl",
			"--platform", "a:linux",
			"--platform", "b:macos",
			"--bootstrap", "",
			"--repo-dir", t.TempDir(),
			"--work-dir", t.TempDir(),
			"--artifact-dir", artifactDir,
		}
		return append(args, selector...)
	}

	t.Run("by name", func(t *testing.T) {
		artifactDir := t.TempDir()
		gt.NoError(t, cli.Run(context.Background(), buildArgs(artifactDir, "--only-platform", "b")))

		entries, err := os.ReadDir(filepath.Join(artifactDir, "gha-7"))
		gt.NoError(t, err)
		gt.A(t, entries).Length(1)
		gt.Value(t, entries[0].Name()).Equal("wheels-b-1")

		_, err = os.Stat(filepath.Join(artifactDir, "gha-7", "wheels-b-1", "x-b.whl"))
		gt.NoError(t, err)
	})

	t.Run("by index", func(t *testing.T) {
		artifactDir := t.TempDir()
		gt.NoError(t, cli.Run(context.Background(), buildArgs(artifactDir, "--only-index", "0")))

		entries, err := os.ReadDir(filepath.Join(artifactDir, "gha-7"))
		gt.NoError(t, err)
		gt.A(t, entries).Length(1)
		gt.Value(t, entries[0].Name()).Equal("wheels-a-0")
	})

	t.Run("unknown name", func(t *testing.T) {
		gt.Error(t, cli.Run(context.Background(), buildArgs(t.TempDir(), "--only-platform", "c")))
	})

	t.Run("index out of range", func(t *testing.T) {
		gt.Error(t, cli.Run(context.Background(), buildArgs(t.TempDir(), "--only-index", "2")))
	})

	t.Run("name and index disagree", func(t *testing.T) {
		gt.Error(t, cli.Run(context.Background(), buildArgs(t.TempDir(), "--only-platform", "a", "--only-index", "1")))
	})
}

package git

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
	logFormat = "--format=%H" + fieldSep + "%an" + fieldSep + "%aI" + fieldSep + "%s" + fieldSep + "%b" + recordSep
)

// Repository reads tags and history from a local checkout with the git CLI
type Repository struct {
	dir string
}

// New creates a Repository rooted at dir
func New(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the checkout directory
func (r *Repository) Dir() string {
	return r.dir
}

func (r *Repository) run(ctx context.Context, args ...string) (string, error) {
	return runGit(ctx, r.dir, nil, args...)
}

// runGit runs git in dir. env is appended to the process environment and
// is never included in errors.
func runGit(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", goerr.Wrap(err, "git command failed",
			goerr.V("args", args),
			goerr.V("dir", dir),
			goerr.V("stderr", strings.TrimSpace(stderr.String())))
	}
	return stdout.String(), nil
}

// revParse resolves rev to an object name
func (r *Repository) revParse(ctx context.Context, rev string) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--verify", "--quiet", rev)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Tags returns every tag name in the repository
func (r *Repository) Tags(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "tag", "--list")
	if err != nil {
		return nil, err
	}

	var tags []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			tags = append(tags, line)
		}
	}
	return tags, nil
}

// Log returns commits in from..to, newest first
func (r *Repository) Log(ctx context.Context, from, to string) ([]model.Commit, error) {
	rev := to
	if from != "" {
		rev = from + ".." + to
	}

	out, err := r.run(ctx, "log", logFormat, rev, "--")
	if err != nil {
		return nil, err
	}
	return parseLog(out)
}

func parseLog(out string) ([]model.Commit, error) {
	var commits []model.Commit
	for _, record := range strings.Split(out, recordSep) {
		record = strings.Trim(record, "\n")
		if record == "" {
			continue
		}

		fields := strings.SplitN(record, fieldSep, 5)
		if len(fields) != 5 {
			return nil, goerr.New("unexpected git log record", goerr.V("record", record))
		}

		date, err := time.Parse(time.RFC3339, fields[2])
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse commit date", goerr.V("date", fields[2]))
		}

		commits = append(commits, model.Commit{
			Hash:    fields[0],
			Author:  fields[1],
			Date:    date,
			Subject: fields[3],
			Body:    strings.TrimSpace(fields[4]),
		})
	}
	return commits, nil
}

// IsAncestor reports whether ancestor is reachable from descendant
func (r *Repository) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "merge-base", "--is-ancestor", ancestor, descendant)
	cmd.Dir = r.dir
	err := cmd.Run()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, goerr.Wrap(err, "git merge-base failed",
		goerr.V("ancestor", ancestor),
		goerr.V("descendant", descendant))
}

// MarkerExists checks the marker file in the local checkout
func (r *Repository) MarkerExists(ctx context.Context, input *model.GateInput) (bool, error) {
	_, err := os.Stat(filepath.Join(r.dir, filepath.FromSlash(input.MarkerPath)))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, goerr.Wrap(err, "failed to stat marker file", goerr.V("path", input.MarkerPath))
	}
}

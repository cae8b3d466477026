package builder

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

// Command builds wheels by running shell commands
type Command struct {
	shell   []string
	command string
	pattern string
	dir     string
	baseEnv func() []string
}

// Option configures the command builder
type Option func(*Command)

// WithShell sets the interpreter used for commands, e.g. []string{"bash", "-c"}
func WithShell(shell ...string) Option {
	return func(c *Command) {
		c.shell = shell
	}
}

// WithPattern sets the glob matching build outputs
func WithPattern(pattern string) Option {
	return func(c *Command) {
		c.pattern = pattern
	}
}

// WithDir sets the working directory of the commands, normally the project checkout
func WithDir(dir string) Option {
	return func(c *Command) {
		c.dir = dir
	}
}

// WithBaseEnv replaces the environment the commands inherit
func WithBaseEnv(fn func() []string) Option {
	return func(c *Command) {
		c.baseEnv = fn
	}
}

// NewCommand creates a builder running command for every job. The
// placeholders {output_dir}, {platform}, {os} and {arch} are replaced with
// the job's values.
func NewCommand(command string, opts ...Option) *Command {
	c := &Command{
		shell:   []string{"sh", "-c"},
		command: command,
		pattern: "*.whl",
		baseEnv: os.Environ,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build runs the optional bootstrap command and then the build command
func (c *Command) Build(ctx context.Context, job *model.BuildJob) (*model.BuildOutput, error) {
	logger := ctxlog.From(ctx).With(
		slog.String("platform", job.Platform.Name),
		slog.Int("index", job.Index),
	)

	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create output directory", goerr.V("dir", job.OutputDir))
	}

	env := c.environ(job)

	if job.Bootstrap != "" {
		logger.Info("Bootstrapping toolchain")
		if err := c.exec(ctx, logger, job, job.Bootstrap, env); err != nil {
			return nil, goerr.Wrap(err, "toolchain bootstrap failed", goerr.V("platform", job.Platform.Name))
		}
	}

	logger.Info("Building wheels", slog.String("output_dir", job.OutputDir))
	if err := c.exec(ctx, logger, job, c.command, env); err != nil {
		return nil, goerr.Wrap(err, "failed building wheels", goerr.V("platform", job.Platform.Name))
	}

	files, err := filepath.Glob(filepath.Join(job.OutputDir, c.pattern))
	if err != nil {
		return nil, goerr.Wrap(err, "invalid output pattern", goerr.V("pattern", c.pattern))
	}
	sort.Strings(files)

	return &model.BuildOutput{Files: files}, nil
}

func (c *Command) expand(job *model.BuildJob, s string) string {
	return strings.NewReplacer(
		"{output_dir}", job.OutputDir,
		"{platform}", job.Platform.Name,
		"{os}", string(job.Platform.OS),
		"{arch}", job.Platform.Arch,
	).Replace(s)
}

// environ merges the base environment, the PATH extension and job.Env
func (c *Command) environ(job *model.BuildJob) []string {
	var env []string
	path := ""
	for _, kv := range c.baseEnv() {
		if v, ok := strings.CutPrefix(kv, "PATH="); ok {
			path = v
			continue
		}
		env = append(env, kv)
	}

	var parts []string
	for _, ext := range job.PathExtension {
		parts = append(parts, os.Expand(ext, func(key string) string {
			for _, kv := range env {
				if v, ok := strings.CutPrefix(kv, key+"="); ok {
					return v
				}
			}
			return ""
		}))
	}
	if path != "" {
		parts = append(parts, path)
	}
	env = append(env, "PATH="+strings.Join(parts, string(os.PathListSeparator)))

	return append(env, job.Env...)
}

func (c *Command) exec(ctx context.Context, logger *slog.Logger, job *model.BuildJob, command string, env []string) error {
	args := append(append([]string{}, c.shell[1:]...), c.expand(job, command))
	cmd := exec.CommandContext(ctx, c.shell[0], args...)
	cmd.Env = env
	cmd.Dir = c.dir

	var tail tailBuffer
	w := io.MultiWriter(&lineLogger{logger: logger}, &tail)
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
		return goerr.Wrap(err, "command failed",
			goerr.V("command", command),
			goerr.V("exit_code", exitCode),
			goerr.V("output", tail.String()))
	}
	return nil
}

// lineLogger writes each complete output line as a debug log entry
type lineLogger struct {
	logger *slog.Logger
	buf    bytes.Buffer
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			l.buf.Reset()
			l.buf.WriteString(line)
			break
		}
		l.logger.Debug(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

const tailLines = 20

// tailBuffer keeps the last lines of output for error reports
type tailBuffer struct {
	lines []string
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf.Write(p)
	return len(p), nil
}

func (t *tailBuffer) String() string {
	scanner := bufio.NewScanner(bytes.NewReader(t.buf.Bytes()))
	t.lines = t.lines[:0]
	for scanner.Scan() {
		t.lines = append(t.lines, scanner.Text())
		if len(t.lines) > tailLines {
			t.lines = t.lines[1:]
		}
	}
	return strings.Join(t.lines, "\n")
}

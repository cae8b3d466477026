package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

func cmdRun() *cli.Command {
	var (
		cfg       pipelineConfig
		tag       string
		commitSHA string
	)

	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:        "tag",
			Aliases:     []string{"t"},
			Usage:       "Version tag to release",
			Destination: &tag,
			Sources:     cli.EnvVars("TAGRELEASE_TAG", "GITHUB_REF_NAME"),
		},
		&cli.StringFlag{
			Name:        "commit",
			Usage:       "Commit SHA the tag points to",
			Destination: &commitSHA,
			Sources:     cli.EnvVars("GITHUB_SHA"),
		},
	}, cfg.Flags()...)

	return &cli.Command{
		Name:  "run",
		Usage: "Run the whole release pipeline for a tag: gate, build and release",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			t, err := resolveTag(tag)
			if err != nil {
				return err
			}

			comp, err := cfg.wire(ctx, markerFromCheckout)
			if err != nil {
				return err
			}
			defer comp.Close()

			if comp.repo.IsZero() {
				return goerr.New("repository is required (--github-repository or GITHUB_REPOSITORY)")
			}

			ctxlog.From(ctx).Info("Starting release pipeline",
				"repository", comp.repo.FullName(),
				"tag", t,
				"platforms", len(comp.def.Platforms),
			)

			run, err := comp.pipeline.Run(ctx, &model.Trigger{
				Repository: comp.repo,
				Tag:        t,
				CommitSHA:  commitSHA,
				Source:     "cli",
			})
			if run != nil {
				printRun(os.Stdout, run)
			}
			return err
		},
	}
}

// printRun writes a human readable summary of the run
func printRun(w io.Writer, run *model.Run) {
	bold := color.New(color.Bold)
	label := color.New(color.FgCyan)

	_, _ = bold.Fprintf(w, "Run %s\n", run.ID)
	_, _ = label.Fprint(w, "  tag:   ")
	_, _ = fmt.Fprintln(w, run.Trigger.Tag)
	_, _ = label.Fprint(w, "  state: ")
	_, _ = stateColor(run.State).Fprintln(w, run.State)

	if run.Gate != nil && !run.Gate.Continue {
		_, _ = label.Fprint(w, "  skipped: ")
		_, _ = fmt.Fprintln(w, run.Gate.Reason)
	}

	for _, a := range run.Artifacts {
		_, _ = fmt.Fprintf(w, "  - %s (%d files, %d bytes)\n", a.Name, len(a.Files), a.Size())
	}

	if run.Release != nil {
		_, _ = label.Fprint(w, "  release: ")
		_, _ = fmt.Fprintln(w, run.Release.URL)
	}
	if run.Error != "" {
		_, _ = label.Fprint(w, "  error: ")
		_, _ = color.New(color.FgRed).Fprintln(w, run.Error)
	}
}

func stateColor(state model.RunState) *color.Color {
	switch state {
	case model.StateReleased:
		return color.New(color.FgGreen, color.Bold)
	case model.StateSkipped:
		return color.New(color.FgYellow)
	case model.StateFailed:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.Reset)
	}
}

package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

func cmdRelease() *cli.Command {
	var (
		cfg   pipelineConfig
		tag   string
		runID string
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
			Name:        "run-id",
			Usage:       "Run whose stored artifacts are released",
			Destination: &runID,
			Sources:     cli.EnvVars("TAGRELEASE_RUN_ID", "GITHUB_RUN_ID"),
		},
	}, cfg.Flags()...)

	return &cli.Command{
		Name:  "release",
		Usage: "Publish the release for artifacts stored by earlier build jobs of a run",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			t, err := resolveTag(tag)
			if err != nil {
				return err
			}
			if runID == "" {
				return goerr.New("run ID is required (--run-id or GITHUB_RUN_ID)", goerr.T(types.ErrInvalidConfig))
			}

			comp, err := cfg.wire(ctx, markerFromCheckout)
			if err != nil {
				return err
			}
			defer comp.Close()

			if comp.repo.IsZero() {
				return goerr.New("repository is required (--github-repository or GITHUB_REPOSITORY)", goerr.T(types.ErrInvalidConfig))
			}

			ctxlog.From(ctx).Info("Releasing stored artifacts",
				"repository", comp.repo.FullName(),
				"tag", t,
				"run_id", runID,
			)

			run, err := comp.pipeline.Release(ctx, runID, &model.Trigger{
				Repository: comp.repo,
				Tag:        t,
				Source:     "cli",
			})
			if run != nil {
				printRun(os.Stdout, run)
			}
			return err
		},
	}
}

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/tagrelease/pkg/cli/config"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/infra/git"
	"github.com/urfave/cli/v3"
)

func cmdChangelog() *cli.Command {
	var (
		githubCfg   config.GitHub
		pipelineCfg config.Pipeline
		tag         string
		full        bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "tag",
			Aliases:     []string{"t"},
			Usage:       "Version tag to generate the changelog for",
			Destination: &tag,
			Sources:     cli.EnvVars("TAGRELEASE_TAG", "GITHUB_REF_NAME"),
		},
		&cli.BoolFlag{
			Name:        "full",
			Usage:       "Print the header lines that are dropped from the release body",
			Destination: &full,
		},
	}
	flags = append(flags, githubCfg.Flags()...)
	flags = append(flags, pipelineCfg.Flags()...)

	return &cli.Command{
		Name:  "changelog",
		Usage: "Print the release notes for a tag",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			t, err := resolveTag(tag)
			if err != nil {
				return err
			}
			def, err := pipelineCfg.Load()
			if err != nil {
				return err
			}

			var repo model.Repository
			if githubCfg.Repository != "" {
				if repo, err = githubCfg.Repo(); err != nil {
					return err
				}
			}

			changelog, err := newChangelog(def, git.New(pipelineCfg.RepoDir), repo).Generate(ctx, t)
			if err != nil {
				return err
			}

			if full {
				fmt.Fprint(os.Stdout, changelog.Text)
			} else {
				fmt.Fprint(os.Stdout, changelog.Body)
			}
			return nil
		},
	}
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/cli/config"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/infra/git"
	"github.com/m-mizutani/tagrelease/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdGate() *cli.Command {
	var (
		githubCfg   config.GitHub
		pipelineCfg config.Pipeline
		tag         string
		remote      bool
		outputPath  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "tag",
			Aliases:     []string{"t"},
			Usage:       "Ref the marker file is looked up at when --remote is set",
			Destination: &tag,
			Sources:     cli.EnvVars("TAGRELEASE_TAG", "GITHUB_REF_NAME"),
		},
		&cli.BoolFlag{
			Name:        "remote",
			Usage:       "Look up the marker file through the GitHub API instead of the local checkout",
			Destination: &remote,
		},
		&cli.StringFlag{
			Name:        "github-output",
			Usage:       "File the continue=true|false line is appended to",
			Destination: &outputPath,
			Sources:     cli.EnvVars("GITHUB_OUTPUT"),
		},
	}
	flags = append(flags, githubCfg.Flags()...)
	flags = append(flags, pipelineCfg.Flags()...)

	return &cli.Command{
		Name:  "gate",
		Usage: "Decide whether the release pipeline continues and print continue=true|false",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			def, err := pipelineCfg.Load()
			if err != nil {
				return err
			}
			repo, err := githubCfg.Repo()
			if err != nil {
				return err
			}

			var probe interfaces.MarkerProbe
			if remote {
				client, err := githubCfg.NewClient()
				if err != nil {
					return err
				}
				probe = usecase.NewGitHubMarkerProbe(client)
			} else {
				probe = git.New(pipelineCfg.RepoDir)
			}

			decision, err := usecase.NewGate(probe).Check(ctx, &model.GateInput{
				Repository: repo,
				Template:   def.TemplateRepository(),
				MarkerPath: def.MarkerPath,
				Ref:        tag,
			})
			if err != nil {
				return err
			}

			return writeGateOutput(os.Stdout, outputPath, decision)
		},
	}
}

// writeGateOutput prints the decision and appends it to the GitHub Actions
// output file when one is given
func writeGateOutput(w io.Writer, outputPath string, decision *model.GateDecision) error {
	line := fmt.Sprintf("continue=%t\n", decision.Continue)
	if _, err := io.WriteString(w, line); err != nil {
		return goerr.Wrap(err, "failed to write gate decision")
	}

	if outputPath == "" {
		return nil
	}

	f, err := os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return goerr.Wrap(err, "failed to open GitHub output file", goerr.V("path", outputPath))
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%sreason=%s\n", line, decision.Reason); err != nil {
		return goerr.Wrap(err, "failed to write GitHub output file", goerr.V("path", outputPath))
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/cli/config"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
	"github.com/m-mizutani/tagrelease/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdBuild() *cli.Command {
	var (
		pipelineCfg config.Pipeline
		storageCfg  config.Storage
		runID       string
		platform    string
		index       int
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "run-id",
			Usage:       "Run the artifacts belong to; a new ID is generated when empty",
			Destination: &runID,
			Sources:     cli.EnvVars("TAGRELEASE_RUN_ID", "GITHUB_RUN_ID"),
		},
		&cli.StringFlag{
			Name:        "only-platform",
			Usage:       "Build only the matrix entry with this name",
			Destination: &platform,
			Sources:     cli.EnvVars("TAGRELEASE_ONLY_PLATFORM"),
		},
		&cli.IntFlag{
			Name:        "only-index",
			Usage:       "Build only the matrix entry at this position",
			Value:       -1,
			Destination: &index,
			Sources:     cli.EnvVars("TAGRELEASE_ONLY_INDEX"),
		},
	}
	flags = append(flags, pipelineCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)

	return &cli.Command{
		Name:  "build",
		Usage: "Build wheels and store them as artifacts of a run, for the whole matrix or one entry",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			def, err := pipelineCfg.Load()
			if err != nil {
				return err
			}

			store, closeStore, err := storageCfg.NewStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			if runID == "" {
				runID = uuid.NewString()
			}
			build := usecase.NewBuild(newBuilder(def, pipelineCfg.RepoDir), store, buildConfig(def, pipelineCfg.WorkDir))

			if platform == "" && index < 0 {
				ctxlog.From(ctx).Info("Building wheels",
					"run_id", runID,
					"platforms", len(def.Platforms),
				)
				artifacts, err := build.BuildAll(ctx, runID, def.Platforms)
				if err != nil {
					return err
				}
				printArtifacts(os.Stdout, artifacts...)
				return nil
			}

			i, err := selectPlatform(def.Platforms, platform, index)
			if err != nil {
				return err
			}
			ctxlog.From(ctx).Info("Building wheels for one platform",
				"run_id", runID,
				"platform", def.Platforms[i].Name,
				"index", i,
			)
			artifact, err := build.BuildPlatform(ctx, runID, i, def.Platforms[i])
			if err != nil {
				return err
			}
			printArtifacts(os.Stdout, *artifact)
			return nil
		},
	}
}

// selectPlatform returns the matrix position chosen by name or index. Both
// may be given as long as they agree.
func selectPlatform(platforms []model.Platform, name string, index int) (int, error) {
	if index >= len(platforms) {
		return 0, goerr.New("platform index out of range",
			goerr.V("index", index),
			goerr.V("platform_count", len(platforms)),
			goerr.T(types.ErrInvalidConfig))
	}
	if name == "" {
		return index, nil
	}

	for i, p := range platforms {
		if p.Name != name {
			continue
		}
		if index >= 0 && index != i {
			return 0, goerr.New("platform name and index disagree",
				goerr.V("platform", name),
				goerr.V("index", index),
				goerr.T(types.ErrInvalidConfig))
		}
		return i, nil
	}
	return 0, goerr.New("platform is not in the build matrix",
		goerr.V("platform", name),
		goerr.T(types.ErrInvalidConfig))
}

func printArtifacts(w io.Writer, artifacts ...model.Artifact) {
	for _, a := range artifacts {
		for _, f := range a.Files {
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name, f.Name, f.SHA256)
		}
	}
}

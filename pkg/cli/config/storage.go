package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
	"github.com/m-mizutani/tagrelease/pkg/infra/storage"
	"github.com/urfave/cli/v3"
)

// Storage holds artifact store configuration
type Storage struct {
	Dir       string
	GCSBucket string
	GCSPrefix string
}

// Flags returns CLI flags for artifact store configuration
func (c *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "artifact-dir",
			Usage:       "Local directory storing build artifacts",
			Value:       filepath.Join(os.TempDir(), "tagrelease-artifacts"),
			Destination: &c.Dir,
			Sources:     cli.EnvVars("TAGRELEASE_ARTIFACT_DIR"),
		},
		&cli.StringFlag{
			Name:        "artifact-gcs-bucket",
			Usage:       "Cloud Storage bucket storing build artifacts, used instead of the local directory",
			Destination: &c.GCSBucket,
			Sources:     cli.EnvVars("TAGRELEASE_ARTIFACT_GCS_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "artifact-gcs-prefix",
			Usage:       "Object name prefix in the artifact bucket",
			Value:       "tagrelease",
			Destination: &c.GCSPrefix,
			Sources:     cli.EnvVars("TAGRELEASE_ARTIFACT_GCS_PREFIX"),
		},
	}
}

// NewStore creates the configured artifact store. The returned closer
// must be called when the store is no longer used.
func (c *Storage) NewStore(ctx context.Context) (interfaces.ArtifactStore, func(), error) {
	if c.GCSBucket != "" {
		store, err := storage.NewGCS(ctx, c.GCSBucket, c.GCSPrefix)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}

	if c.Dir == "" {
		return nil, nil, goerr.New("artifact directory or bucket is required", goerr.T(types.ErrInvalidConfig))
	}
	return storage.NewLocal(c.Dir), func() {}, nil
}

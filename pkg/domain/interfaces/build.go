package interfaces

import (
	"context"

	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

// Builder compiles and packages one platform's wheels into job.OutputDir
type Builder interface {
	Build(ctx context.Context, job *model.BuildJob) (*model.BuildOutput, error)
}

// ArtifactStore persists build outputs between the fan-out and release stages
type ArtifactStore interface {
	// Put stores files under artifact name for the run. Names are immutable:
	// putting the same name twice in a run is an error.
	Put(ctx context.Context, runID, name string, files []string) (*model.Artifact, error)

	// Fetch downloads every artifact of the run into destDir
	Fetch(ctx context.Context, runID, destDir string) ([]model.Artifact, error)
}

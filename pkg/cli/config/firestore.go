package config

import (
	"context"

	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/m-mizutani/tagrelease/pkg/infra/firestore"
	"github.com/m-mizutani/tagrelease/pkg/infra/memory"
	"github.com/urfave/cli/v3"
)

// Firestore holds run repository configuration
type Firestore struct {
	ProjectID  string
	DatabaseID string
}

// Flags returns CLI flags for Firestore configuration
func (c *Firestore) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Google Cloud project of the Firestore run history (in-memory when empty)",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars("TAGRELEASE_FIRESTORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Destination: &c.DatabaseID,
			Sources:     cli.EnvVars("TAGRELEASE_FIRESTORE_DATABASE_ID"),
		},
	}
}

// NewRepository creates the run repository. Without a project the run
// history lives in memory for the lifetime of the process.
func (c *Firestore) NewRepository(ctx context.Context) (interfaces.RunRepository, func(), error) {
	if c.ProjectID == "" {
		return memory.New(), func() {}, nil
	}

	repo, err := firestore.New(ctx, c.ProjectID, c.DatabaseID)
	if err != nil {
		return nil, nil, err
	}
	return repo, func() { _ = repo.Close() }, nil
}

package firestore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
	"github.com/m-mizutani/tagrelease/pkg/infra/firestore"
)

func TestRepository(t *testing.T) {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID is not set")
	}

	ctx := context.Background()
	repo, err := firestore.New(ctx, projectID, os.Getenv("TEST_FIRESTORE_DATABASE_ID"))
	gt.NoError(t, err)
	defer repo.Close()

	target := model.Repository{Owner: "octo", Name: "widget-" + uuid.NewString()}
	tag := model.Tag("v0.1.0")

	t.Run("run round trip", func(t *testing.T) {
		run := model.NewRun(uuid.NewString(), model.Trigger{Repository: target, Tag: tag}, time.Now().UTC())
		gt.NoError(t, repo.PutRun(ctx, run))

		got, err := repo.GetRun(ctx, run.ID)
		gt.NoError(t, err)
		gt.Value(t, got.State).Equal(model.StateTriggered)
		gt.Value(t, got.Trigger.Tag).Equal(tag)
	})

	t.Run("missing run is nil", func(t *testing.T) {
		got, err := repo.GetRun(ctx, uuid.NewString())
		gt.NoError(t, err)
		gt.Value(t, got).Nil()
	})

	t.Run("second claim conflicts", func(t *testing.T) {
		gt.NoError(t, repo.ClaimTag(ctx, target, tag, "run-a"))
		err := repo.ClaimTag(ctx, target, tag, "run-b")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrReleaseExists))
	})

	t.Run("released claim can be taken again", func(t *testing.T) {
		other := model.Tag("v0.2.0")
		gt.NoError(t, repo.ClaimTag(ctx, target, other, "run-a"))
		gt.NoError(t, repo.ReleaseTag(ctx, target, other, "run-b"))
		gt.True(t, goerr.HasTag(repo.ClaimTag(ctx, target, other, "run-b"), types.ErrReleaseExists))

		gt.NoError(t, repo.ReleaseTag(ctx, target, other, "run-a"))
		gt.NoError(t, repo.ClaimTag(ctx, target, other, "run-b"))
	})
}

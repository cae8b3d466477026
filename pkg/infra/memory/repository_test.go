package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
	"github.com/m-mizutani/tagrelease/pkg/infra/memory"
)

func TestRepository_Runs(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	run := model.NewRun("run-1", model.Trigger{Tag: "v0.1.0"}, time.Now())
	gt.NoError(t, repo.PutRun(ctx, run))

	// Stored runs are copies
	gt.NoError(t, run.Transition(model.StateGateChecked, time.Now()))
	got, err := repo.GetRun(ctx, "run-1")
	gt.NoError(t, err)
	gt.Value(t, got.State).Equal(model.StateTriggered)

	missing, err := repo.GetRun(ctx, "nope")
	gt.NoError(t, err)
	gt.Value(t, missing).Nil()
}

func TestRepository_ClaimTag(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	target := model.Repository{Owner: "octo", Name: "widget"}

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.ClaimTag(ctx, target, "v0.1.0", "run")
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, conflicts int
	for err := range results {
		if err == nil {
			succeeded++
		} else if goerr.HasTag(err, types.ErrReleaseExists) {
			conflicts++
		}
	}
	gt.Number(t, succeeded).Equal(1)
	gt.Number(t, conflicts).Equal(9)

	// Different tag of the same repository is independent
	gt.NoError(t, repo.ClaimTag(ctx, target, "v0.2.0", "run"))
}

func TestRepository_ReleaseTag(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	target := model.Repository{Owner: "octo", Name: "widget"}

	gt.NoError(t, repo.ClaimTag(ctx, target, "v0.1.0", "run-a"))

	// Only the holder can drop its claim
	gt.NoError(t, repo.ReleaseTag(ctx, target, "v0.1.0", "run-b"))
	err := repo.ClaimTag(ctx, target, "v0.1.0", "run-b")
	gt.True(t, goerr.HasTag(err, types.ErrReleaseExists))

	gt.NoError(t, repo.ReleaseTag(ctx, target, "v0.1.0", "run-a"))
	gt.NoError(t, repo.ClaimTag(ctx, target, "v0.1.0", "run-b"))

	// Releasing an unclaimed tag is a no-op
	gt.NoError(t, repo.ReleaseTag(ctx, target, "v9.9.9", "run-a"))
}

package firestore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionRuns     = "runs"
	collectionClaims   = "tag_claims"
	collectionReleases = "releases"
)

// Repository stores runs, tag claims and release records in Firestore
type Repository struct {
	client *firestore.Client
}

type tagClaim struct {
	Repository string    `firestore:"repository"`
	Tag        string    `firestore:"tag"`
	RunID      string    `firestore:"run_id"`
	ClaimedAt  time.Time `firestore:"claimed_at"`
}

// New creates a Firestore-backed run repository
func New(ctx context.Context, projectID, databaseID string, opts ...option.ClientOption) (*Repository, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}
	return &Repository{client: client}, nil
}

// Close releases the underlying client
func (r *Repository) Close() error {
	return r.client.Close()
}

// tagKey builds a document ID; '/' is not allowed in Firestore IDs
func tagKey(repo model.Repository, tag model.Tag) string {
	return strings.ToLower(repo.Owner + "__" + repo.Name + "__" + tag.String())
}

// PutRun saves the run, overwriting the previous state
func (r *Repository) PutRun(ctx context.Context, run *model.Run) error {
	if _, err := r.client.Collection(collectionRuns).Doc(run.ID).Set(ctx, run); err != nil {
		return goerr.Wrap(err, "failed to save run", goerr.V("run_id", run.ID))
	}
	return nil
}

// GetRun loads a run, returning nil when it does not exist
func (r *Repository) GetRun(ctx context.Context, id string) (*model.Run, error) {
	snap, err := r.client.Collection(collectionRuns).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get run", goerr.V("run_id", id))
	}

	var run model.Run
	if err := snap.DataTo(&run); err != nil {
		return nil, goerr.Wrap(err, "failed to decode run", goerr.V("run_id", id))
	}
	return &run, nil
}

// ClaimTag creates the claim document; Create fails if it already exists
func (r *Repository) ClaimTag(ctx context.Context, repo model.Repository, tag model.Tag, runID string) error {
	claim := &tagClaim{
		Repository: repo.FullName(),
		Tag:        tag.String(),
		RunID:      runID,
		ClaimedAt:  time.Now().UTC(),
	}

	_, err := r.client.Collection(collectionClaims).Doc(tagKey(repo, tag)).Create(ctx, claim)
	if status.Code(err) == codes.AlreadyExists {
		return goerr.New("tag is already claimed by another run",
			goerr.V("repository", repo.FullName()),
			goerr.V("tag", tag),
			goerr.T(types.ErrReleaseExists))
	}
	if err != nil {
		return goerr.Wrap(err, "failed to claim tag",
			goerr.V("repository", repo.FullName()),
			goerr.V("tag", tag))
	}
	return nil
}

// ReleaseTag deletes the claim document when runID holds it. The read and
// delete run in one transaction so a claim taken over by another run is kept.
func (r *Repository) ReleaseTag(ctx context.Context, repo model.Repository, tag model.Tag, runID string) error {
	doc := r.client.Collection(collectionClaims).Doc(tagKey(repo, tag))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}

		var claim tagClaim
		if err := snap.DataTo(&claim); err != nil {
			return err
		}
		if claim.RunID != runID {
			return nil
		}
		return tx.Delete(doc)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to release tag claim",
			goerr.V("repository", repo.FullName()),
			goerr.V("tag", tag),
			goerr.V("run_id", runID))
	}
	return nil
}

// PutRelease stores the record of a published release
func (r *Repository) PutRelease(ctx context.Context, record *model.ReleaseRecord) error {
	if _, err := r.client.Collection(collectionReleases).Doc(tagKey(record.Repository, record.Tag)).Set(ctx, record); err != nil {
		return goerr.Wrap(err, "failed to save release record",
			goerr.V("repository", record.Repository.FullName()),
			goerr.V("tag", record.Tag))
	}
	return nil
}

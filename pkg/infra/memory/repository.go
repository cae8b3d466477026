package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
)

// Repository is an in-process run repository used by the CLI and tests
type Repository struct {
	mu       sync.Mutex
	runs     map[string]model.Run
	claims   map[string]string
	releases map[string]model.ReleaseRecord
}

// New creates an empty in-memory repository
func New() *Repository {
	return &Repository{
		runs:     map[string]model.Run{},
		claims:   map[string]string{},
		releases: map[string]model.ReleaseRecord{},
	}
}

func tagKey(repo model.Repository, tag model.Tag) string {
	return strings.ToLower(repo.FullName() + "@" + tag.String())
}

// PutRun saves a copy of the run
func (r *Repository) PutRun(_ context.Context, run *model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *run
	copied.History = append([]model.StateChange(nil), run.History...)
	copied.Artifacts = append([]model.Artifact(nil), run.Artifacts...)
	r.runs[run.ID] = copied
	return nil
}

// GetRun returns a copy of the run, or nil when it does not exist
func (r *Repository) GetRun(_ context.Context, id string) (*model.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

// ClaimTag reserves the tag for runID; the first claim wins
func (r *Repository) ClaimTag(_ context.Context, repo model.Repository, tag model.Tag, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := tagKey(repo, tag)
	if owner, ok := r.claims[key]; ok {
		return goerr.New("tag is already claimed by another run",
			goerr.V("repository", repo.FullName()),
			goerr.V("tag", tag),
			goerr.V("claimed_by", owner),
			goerr.T(types.ErrReleaseExists))
	}
	r.claims[key] = runID
	return nil
}

// ReleaseTag drops the claim if runID holds it
func (r *Repository) ReleaseTag(_ context.Context, repo model.Repository, tag model.Tag, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := tagKey(repo, tag)
	if owner, ok := r.claims[key]; ok && owner == runID {
		delete(r.claims, key)
	}
	return nil
}

// PutRelease stores the release record
func (r *Repository) PutRelease(_ context.Context, record *model.ReleaseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.releases[tagKey(record.Repository, record.Tag)] = *record
	return nil
}

// Releases returns every stored release record
func (r *Repository) Releases() []model.ReleaseRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]model.ReleaseRecord, 0, len(r.releases))
	for _, rec := range r.releases {
		records = append(records, rec)
	}
	return records
}

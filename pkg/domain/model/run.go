package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
)

// RunState is a pipeline state
type RunState string

const (
	StateTriggered   RunState = "triggered"
	StateGateChecked RunState = "gate-checked"
	StateSkipped     RunState = "skipped"
	StateBuilding    RunState = "building"
	StateBuilt       RunState = "built"
	StateReleasing   RunState = "releasing"
	StateReleased    RunState = "released"
	StateFailed      RunState = "failed"
)

var runTransitions = map[RunState][]RunState{
	StateTriggered:   {StateGateChecked, StateFailed},
	StateGateChecked: {StateSkipped, StateBuilding, StateFailed},
	StateBuilding:    {StateBuilt, StateFailed},
	StateBuilt:       {StateReleasing, StateFailed},
	StateReleasing:   {StateReleased, StateFailed},
}

// IsTerminal reports whether no further transition is possible
func (s RunState) IsTerminal() bool {
	return len(runTransitions[s]) == 0
}

// CanTransitionTo reports whether next is a legal successor of s
func (s RunState) CanTransitionTo(next RunState) bool {
	for _, candidate := range runTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Trigger describes what started a run
type Trigger struct {
	Repository Repository `json:"repository" firestore:"repository"`
	Tag        Tag        `json:"tag" firestore:"tag"`
	CommitSHA  string     `json:"commit_sha,omitempty" firestore:"commit_sha"`
	Source     string     `json:"source" firestore:"source"` // "cli" or "webhook"
	DeliveryID string     `json:"delivery_id,omitempty" firestore:"delivery_id"`
}

// StateChange is one entry of the run history
type StateChange struct {
	State RunState  `json:"state" firestore:"state"`
	At    time.Time `json:"at" firestore:"at"`
}

// Run is a single pipeline execution for one tag
type Run struct {
	ID        string         `json:"id" firestore:"id"`
	Trigger   Trigger        `json:"trigger" firestore:"trigger"`
	State     RunState       `json:"state" firestore:"state"`
	History   []StateChange  `json:"history" firestore:"history"`
	Gate      *GateDecision  `json:"gate,omitempty" firestore:"gate"`
	Artifacts []Artifact     `json:"artifacts,omitempty" firestore:"artifacts"`
	Release   *ReleaseRecord `json:"release,omitempty" firestore:"release"`
	Error     string         `json:"error,omitempty" firestore:"error"`
	CreatedAt time.Time      `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" firestore:"updated_at"`
}

// NewRun creates a run in the triggered state
func NewRun(id string, trigger Trigger, now time.Time) *Run {
	return &Run{
		ID:        id,
		Trigger:   trigger,
		State:     StateTriggered,
		History:   []StateChange{{State: StateTriggered, At: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the run to next, rejecting illegal transitions
func (r *Run) Transition(next RunState, now time.Time) error {
	if !r.State.CanTransitionTo(next) {
		return goerr.New("invalid run state transition",
			goerr.V("run_id", r.ID),
			goerr.V("from", r.State),
			goerr.V("to", next),
			goerr.T(types.ErrInvalidTransition))
	}
	r.State = next
	r.History = append(r.History, StateChange{State: next, At: now})
	r.UpdatedAt = now
	return nil
}

// Fail moves the run to the failed state and records the cause. Failing a
// run that already reached a terminal state is a no-op.
func (r *Run) Fail(cause error, now time.Time) {
	if r.State.IsTerminal() {
		return
	}
	r.State = StateFailed
	r.History = append(r.History, StateChange{State: StateFailed, At: now})
	r.UpdatedAt = now
	if cause != nil {
		r.Error = cause.Error()
	}
}

package model

// DefaultMarkerPath is the file whose presence marks a freshly instantiated template
const DefaultMarkerPath = ".github/template.yml"

// GateInput is everything the template-flag gate looks at
type GateInput struct {
	Repository Repository
	Template   Repository // canonical template repository; zero value disables the check
	MarkerPath string
	Ref        string // ref the marker is probed at, usually the tag
}

// GateReason explains a gate decision
type GateReason string

const (
	GateReasonRelease            GateReason = "release"
	GateReasonTemplateRepo       GateReason = "template_repository"
	GateReasonMarkerFilePresent  GateReason = "marker_file_present"
	GateReasonNotOnDefaultBranch GateReason = "not_on_default_branch"
)

// GateDecision is the "continue" signal consumed by the build stage
type GateDecision struct {
	Continue bool       `json:"continue" firestore:"continue"`
	Reason   GateReason `json:"reason" firestore:"reason"`
}

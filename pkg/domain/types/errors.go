package types

import "github.com/m-mizutani/goerr/v2"

// Error tags used to classify pipeline failures
var (
	ErrInvalidTag        = goerr.NewTag("invalid_tag")
	ErrInvalidTransition = goerr.NewTag("invalid_transition")
	ErrBuildFailed       = goerr.NewTag("build_failed")
	ErrNoArtifacts       = goerr.NewTag("no_artifacts")
	ErrReleaseExists     = goerr.NewTag("release_exists")
	ErrInvalidConfig     = goerr.NewTag("invalid_config")
	ErrSourceMismatch    = goerr.NewTag("source_mismatch")
)

package model

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// OSFamily is the operating system family a wheel targets
type OSFamily string

const (
	OSLinux   OSFamily = "linux"
	OSMacOS   OSFamily = "macos"
	OSWindows OSFamily = "windows"
)

// Platform is one entry of the build matrix
type Platform struct {
	Name string   `json:"name" toml:"name" yaml:"name" firestore:"name"`
	OS   OSFamily `json:"os" toml:"os" yaml:"os" firestore:"os"`
	Arch string   `json:"arch,omitempty" toml:"arch" yaml:"arch,omitempty" firestore:"arch"`

	// Bootstrap forces the toolchain bootstrap command to run before the
	// build. Linux builds run in containers without a Rust toolchain, so
	// they bootstrap by default.
	Bootstrap *bool `json:"bootstrap,omitempty" toml:"bootstrap" yaml:"bootstrap,omitempty" firestore:"-"`
}

// NeedsBootstrap reports whether the toolchain must be provisioned first
func (p Platform) NeedsBootstrap() bool {
	if p.Bootstrap != nil {
		return *p.Bootstrap
	}
	return p.OS == OSLinux
}

// Validate checks the platform definition
func (p Platform) Validate() error {
	if p.Name == "" {
		return goerr.New("platform name is empty")
	}
	if strings.ContainsAny(p.Name, "/\\ ") {
		return goerr.New("platform name must not contain path separators or spaces", goerr.V("name", p.Name))
	}
	switch p.OS {
	case OSLinux, OSMacOS, OSWindows:
	default:
		return goerr.New("platform has unknown os", goerr.V("name", p.Name), goerr.V("os", p.OS))
	}
	return nil
}

// BuildJob is one instance of the fan-out
type BuildJob struct {
	RunID     string
	Platform  Platform
	Index     int
	OutputDir string

	// Bootstrap is the toolchain provisioning command; empty when the
	// platform already has the toolchain
	Bootstrap string

	// PathExtension is prepended to PATH so a freshly installed toolchain
	// is found by the build
	PathExtension []string

	// Env holds extra KEY=VALUE pairs for the build command
	Env []string
}

// ArtifactName is unique per (platform, index) pair within a run
func (j *BuildJob) ArtifactName() string {
	return fmt.Sprintf("wheels-%s-%d", j.Platform.Name, j.Index)
}

// BuildOutput lists what a build job produced
type BuildOutput struct {
	Files []string
}

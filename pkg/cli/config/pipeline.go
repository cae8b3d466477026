package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// DefaultBuildCommand runs cibuildwheel, which reads the CIBW_* variables
// exported for every job
const DefaultBuildCommand = "python -m cibuildwheel --output-dir {output_dir}"

// DefaultPlatforms is the build matrix used when none is configured
var DefaultPlatforms = []model.Platform{
	{Name: "linux", OS: model.OSLinux},
	{Name: "macos", OS: model.OSMacOS},
	{Name: "windows", OS: model.OSWindows},
}

// PipelineDefinition is the pipeline file layout, shared by TOML and YAML
type PipelineDefinition struct {
	Template      string           `toml:"template" yaml:"template"`
	MarkerPath    string           `toml:"marker_path" yaml:"marker_path"`
	DefaultBranch string           `toml:"default_branch" yaml:"default_branch"`
	Platforms     []model.Platform `toml:"platforms" yaml:"platforms"`
	Build         BuildDefinition  `toml:"build" yaml:"build"`
	Changelog     struct {
		PreambleLines *int  `toml:"preamble_lines" yaml:"preamble_lines"`
		OtherChanges  *bool `toml:"other_changes" yaml:"other_changes"`
	} `toml:"changelog" yaml:"changelog"`
}

// BuildDefinition configures the build command run for every platform
type BuildDefinition struct {
	Command       string   `toml:"command" yaml:"command"`
	Pattern       string   `toml:"pattern" yaml:"pattern"`
	Bootstrap     string   `toml:"bootstrap" yaml:"bootstrap"`
	PathExtension []string `toml:"path_extension" yaml:"path_extension"`
	Skip          []string `toml:"skip" yaml:"skip"`
	Env           []string `toml:"env" yaml:"env"`
	Parallelism   int      `toml:"parallelism" yaml:"parallelism"`
}

// Pipeline holds the pipeline definition flags. Flags override the file.
type Pipeline struct {
	File          string
	Template      string
	MarkerPath    string
	DefaultBranch string
	Platforms     []string
	Command       string
	Bootstrap     string
	PathExtension string
	Skip          string
	Parallelism   int
	WorkDir       string
	RepoDir       string
}

// Flags returns CLI flags for pipeline configuration
func (c *Pipeline) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Pipeline definition file (.toml, .yaml or .yml)",
			Destination: &c.File,
			Sources:     cli.EnvVars("TAGRELEASE_CONFIG"),
		},
		&cli.StringFlag{
			Name:        "template-repository",
			Usage:       "Canonical template repository (owner/name) that never releases",
			Destination: &c.Template,
			Sources:     cli.EnvVars("TAGRELEASE_TEMPLATE_REPOSITORY"),
		},
		&cli.StringFlag{
			Name:        "marker-path",
			Usage:       "Marker file whose presence skips the release",
			Destination: &c.MarkerPath,
			Sources:     cli.EnvVars("TAGRELEASE_MARKER_PATH"),
		},
		&cli.StringFlag{
			Name:        "default-branch",
			Usage:       "Require the tag to be reachable from this ref (e.g. origin/main)",
			Destination: &c.DefaultBranch,
			Sources:     cli.EnvVars("TAGRELEASE_DEFAULT_BRANCH"),
		},
		&cli.StringSliceFlag{
			Name:        "platform",
			Usage:       "Build platform as name:os[:arch], repeatable",
			Destination: &c.Platforms,
			Sources:     cli.EnvVars("TAGRELEASE_PLATFORMS"),
		},
		&cli.StringFlag{
			Name:        "build-command",
			Usage:       "Command building the wheels into {output_dir}",
			Destination: &c.Command,
			Sources:     cli.EnvVars("TAGRELEASE_BUILD_COMMAND"),
		},
		&cli.StringFlag{
			Name:        "bootstrap",
			Usage:       "Toolchain bootstrap command for platforms that need it",
			Destination: &c.Bootstrap,
			Sources:     cli.EnvVars("TAGRELEASE_BOOTSTRAP"),
		},
		&cli.StringFlag{
			Name:        "path-extension",
			Usage:       "Directories prepended to PATH, separated by the OS path list separator",
			Destination: &c.PathExtension,
			Sources:     cli.EnvVars("TAGRELEASE_PATH_EXTENSION"),
		},
		&cli.StringFlag{
			Name:        "skip",
			Usage:       "Build identifiers to exclude, space separated",
			Destination: &c.Skip,
			Sources:     cli.EnvVars("TAGRELEASE_SKIP"),
		},
		&cli.IntFlag{
			Name:        "parallelism",
			Usage:       "Maximum concurrent platform builds (0 for unlimited)",
			Destination: &c.Parallelism,
			Sources:     cli.EnvVars("TAGRELEASE_PARALLELISM"),
		},
		&cli.StringFlag{
			Name:        "work-dir",
			Usage:       "Directory for build outputs and per-run source checkouts",
			Value:       filepath.Join(os.TempDir(), "tagrelease"),
			Destination: &c.WorkDir,
			Sources:     cli.EnvVars("TAGRELEASE_WORK_DIR"),
		},
		&cli.StringFlag{
			Name:        "repo-dir",
			Usage:       "Local checkout of the repository; serve clones each pushed tag into --work-dir instead",
			Value:       ".",
			Destination: &c.RepoDir,
			Sources:     cli.EnvVars("TAGRELEASE_REPO_DIR"),
		},
	}
}

// Load reads the pipeline file, if any, and applies flag overrides
func (c *Pipeline) Load() (*PipelineDefinition, error) {
	def := &PipelineDefinition{}
	if c.File != "" {
		loaded, err := LoadPipelineFile(c.File)
		if err != nil {
			return nil, err
		}
		def = loaded
	}

	if c.Template != "" {
		def.Template = c.Template
	}
	if c.MarkerPath != "" {
		def.MarkerPath = c.MarkerPath
	}
	if c.DefaultBranch != "" {
		def.DefaultBranch = c.DefaultBranch
	}
	if c.Command != "" {
		def.Build.Command = c.Command
	}
	if c.Bootstrap != "" {
		def.Build.Bootstrap = c.Bootstrap
	}
	if c.PathExtension != "" {
		def.Build.PathExtension = filepath.SplitList(c.PathExtension)
	}
	if c.Skip != "" {
		def.Build.Skip = strings.Fields(c.Skip)
	}
	if c.Parallelism > 0 {
		def.Build.Parallelism = c.Parallelism
	}

	if len(c.Platforms) > 0 {
		def.Platforms = nil
		for _, s := range c.Platforms {
			p, err := ParsePlatform(s)
			if err != nil {
				return nil, err
			}
			def.Platforms = append(def.Platforms, p)
		}
	}
	if len(def.Platforms) == 0 {
		def.Platforms = DefaultPlatforms
	}
	if def.Build.Command == "" {
		def.Build.Command = DefaultBuildCommand
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// Validate checks the definition
func (d *PipelineDefinition) Validate() error {
	seen := map[string]bool{}
	for _, p := range d.Platforms {
		if err := p.Validate(); err != nil {
			return goerr.Wrap(err, "invalid platform", goerr.T(types.ErrInvalidConfig))
		}
		if seen[p.Name] {
			return goerr.New("duplicate platform name", goerr.V("name", p.Name), goerr.T(types.ErrInvalidConfig))
		}
		seen[p.Name] = true
	}
	if d.Template != "" {
		if _, err := model.ParseRepository(d.Template); err != nil {
			return goerr.Wrap(err, "invalid template repository", goerr.T(types.ErrInvalidConfig))
		}
	}
	if d.Build.Parallelism < 0 {
		return goerr.New("parallelism must not be negative", goerr.T(types.ErrInvalidConfig))
	}
	return nil
}

// TemplateRepository returns the parsed template repository, zero when unset
func (d *PipelineDefinition) TemplateRepository() model.Repository {
	repo, _ := model.ParseRepository(d.Template)
	return repo
}

// LoadPipelineFile decodes a TOML or YAML pipeline file by extension
func LoadPipelineFile(path string) (*PipelineDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read pipeline file", goerr.V("path", path))
	}

	def := &PipelineDefinition{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(def); err != nil {
			return nil, goerr.Wrap(err, "failed to parse TOML pipeline file",
				goerr.V("path", path), goerr.T(types.ErrInvalidConfig))
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(def); err != nil {
			return nil, goerr.Wrap(err, "failed to parse YAML pipeline file",
				goerr.V("path", path), goerr.T(types.ErrInvalidConfig))
		}
	default:
		return nil, goerr.New("unsupported pipeline file extension",
			goerr.V("path", path), goerr.T(types.ErrInvalidConfig))
	}
	return def, nil
}

// ParsePlatform parses "name:os[:arch]"
func ParsePlatform(s string) (model.Platform, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return model.Platform{}, goerr.New("platform must be name:os[:arch]",
			goerr.V("platform", s), goerr.T(types.ErrInvalidConfig))
	}
	p := model.Platform{Name: parts[0], OS: model.OSFamily(strings.ToLower(parts[1]))}
	if len(parts) == 3 {
		p.Arch = parts[2]
	}
	if err := p.Validate(); err != nil {
		return model.Platform{}, goerr.Wrap(err, "invalid platform", goerr.V("platform", s), goerr.T(types.ErrInvalidConfig))
	}
	return p, nil
}

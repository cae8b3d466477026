package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

// Local stores artifacts on the local filesystem under root/<run>/<name>/
type Local struct {
	root string
}

// NewLocal creates a filesystem artifact store
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Put copies files into the artifact directory
func (s *Local) Put(ctx context.Context, runID, name string, files []string) (*model.Artifact, error) {
	runDir, err := safeJoin(s.root, runID)
	if err != nil {
		return nil, err
	}
	dir, err := safeJoin(runDir, name)
	if err != nil {
		return nil, err
	}
	if filepath.Dir(dir) != runDir {
		return nil, goerr.New("artifact name must be a single path element", goerr.V("name", name))
	}

	// Mkdir fails on an existing directory, which keeps artifacts immutable
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create run directory", goerr.V("dir", runDir))
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, goerr.New("artifact already exists", goerr.V("run_id", runID), goerr.V("name", name))
		}
		return nil, goerr.Wrap(err, "failed to create artifact directory", goerr.V("dir", dir))
	}

	platform, index := parseArtifactName(name)
	artifact := &model.Artifact{Name: name, Platform: platform, Index: index}

	for _, src := range files {
		desc, err := describeFile(src)
		if err != nil {
			return nil, err
		}
		dst := filepath.Join(dir, desc.Name)
		if err := copyFile(src, dst); err != nil {
			return nil, err
		}
		desc.Path = dst
		artifact.Files = append(artifact.Files, desc)
	}

	manifest, err := json.Marshal(artifact)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal artifact manifest")
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), manifest, 0644); err != nil {
		return nil, goerr.Wrap(err, "failed to write artifact manifest", goerr.V("dir", dir))
	}

	ctxlog.From(ctx).Debug("Stored artifact locally",
		"run_id", runID,
		"name", name,
		"file_count", len(artifact.Files),
	)

	return artifact, nil
}

// Fetch copies every artifact of the run into destDir/<name>/
func (s *Local) Fetch(ctx context.Context, runID, destDir string) ([]model.Artifact, error) {
	runDir, err := safeJoin(s.root, runID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(runDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list run directory", goerr.V("dir", runDir))
	}

	var artifacts []model.Artifact
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(runDir, entry.Name(), manifestName))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read artifact manifest", goerr.V("name", entry.Name()))
		}
		var artifact model.Artifact
		if err := json.Unmarshal(raw, &artifact); err != nil {
			return nil, goerr.Wrap(err, "failed to parse artifact manifest", goerr.V("name", entry.Name()))
		}

		outDir, err := safeJoin(destDir, artifact.Name)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return nil, goerr.Wrap(err, "failed to create download directory", goerr.V("dir", outDir))
		}

		for i, f := range artifact.Files {
			dst, err := safeJoin(outDir, f.Name)
			if err != nil {
				return nil, err
			}
			if err := copyFile(filepath.Join(runDir, entry.Name(), f.Name), dst); err != nil {
				return nil, err
			}
			artifact.Files[i].Path = dst
		}
		artifacts = append(artifacts, artifact)
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return goerr.Wrap(err, "failed to open source file", goerr.V("path", src))
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return goerr.Wrap(err, "failed to create destination file", goerr.V("path", dst))
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return goerr.Wrap(err, "failed to copy file content", goerr.V("path", dst))
	}
	return out.Close()
}

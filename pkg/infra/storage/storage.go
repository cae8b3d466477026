package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
)

const manifestName = "artifact.json"

// describeFile computes the size and checksum of a local file
func describeFile(path string) (model.ArtifactFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.ArtifactFile{}, goerr.Wrap(err, "failed to open artifact file", goerr.V("path", path))
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return model.ArtifactFile{}, goerr.Wrap(err, "failed to hash artifact file", goerr.V("path", path))
	}

	return model.ArtifactFile{
		Name:   filepath.Base(path),
		Size:   size,
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Path:   path,
	}, nil
}

// safeJoin joins name under dir and rejects names escaping dir
func safeJoin(dir string, name ...string) (string, error) {
	destPath := filepath.Join(append([]string{dir}, name...)...)
	rel, err := filepath.Rel(filepath.Clean(dir), destPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", goerr.New("invalid artifact path detected",
			goerr.V("name", filepath.Join(name...)),
			goerr.V("dest", destPath))
	}
	return destPath, nil
}

// parseArtifactName splits "wheels-<platform>-<index>"
func parseArtifactName(name string) (string, int) {
	trimmed := strings.TrimPrefix(name, "wheels-")
	idx := strings.LastIndex(trimmed, "-")
	if idx < 0 {
		return trimmed, 0
	}
	var index int
	for _, r := range trimmed[idx+1:] {
		if r < '0' || r > '9' {
			return trimmed, 0
		}
		index = index*10 + int(r-'0')
	}
	return trimmed[:idx], index
}

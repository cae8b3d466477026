package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS stores artifacts in a Cloud Storage bucket under <prefix>/<run>/<name>/
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates a Cloud Storage artifact store
func NewGCS(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client", goerr.V("bucket", bucket))
	}

	return &GCS{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Close releases the underlying client
func (s *GCS) Close() error {
	return s.client.Close()
}

func (s *GCS) objectName(parts ...string) string {
	if s.prefix != "" {
		parts = append([]string{s.prefix}, parts...)
	}
	return path.Join(parts...)
}

// Put uploads files and the artifact manifest. The manifest is written
// last with a does-not-exist precondition so an artifact name can be
// stored only once per run.
func (s *GCS) Put(ctx context.Context, runID, name string, files []string) (*model.Artifact, error) {
	bucket := s.client.Bucket(s.bucket)
	platform, index := parseArtifactName(name)
	artifact := &model.Artifact{Name: name, Platform: platform, Index: index}

	for _, src := range files {
		desc, err := describeFile(src)
		if err != nil {
			return nil, err
		}
		if err := s.upload(ctx, bucket.Object(s.objectName(runID, name, desc.Name)), src); err != nil {
			return nil, err
		}
		artifact.Files = append(artifact.Files, desc)
	}

	manifest, err := json.Marshal(artifact)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal artifact manifest")
	}

	obj := bucket.Object(s.objectName(runID, name, manifestName)).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(manifest); err != nil {
		_ = w.Close()
		return nil, goerr.Wrap(err, "failed to write artifact manifest", goerr.V("name", name))
	}
	if err := w.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to store artifact manifest",
			goerr.V("run_id", runID),
			goerr.V("name", name))
	}

	ctxlog.From(ctx).Debug("Stored artifact in Cloud Storage",
		"bucket", s.bucket,
		"run_id", runID,
		"name", name,
		"file_count", len(artifact.Files),
	)

	return artifact, nil
}

func (s *GCS) upload(ctx context.Context, obj *storage.ObjectHandle, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return goerr.Wrap(err, "failed to open artifact file", goerr.V("path", src))
	}
	defer f.Close()

	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to upload artifact file", goerr.V("object", obj.ObjectName()))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize artifact upload", goerr.V("object", obj.ObjectName()))
	}
	return nil
}

// Fetch downloads every artifact of the run into destDir/<name>/
func (s *GCS) Fetch(ctx context.Context, runID, destDir string) ([]model.Artifact, error) {
	bucket := s.client.Bucket(s.bucket)
	runPrefix := s.objectName(runID) + "/"

	var artifacts []model.Artifact
	it := bucket.Objects(ctx, &storage.Query{Prefix: runPrefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list artifacts", goerr.V("prefix", runPrefix))
		}
		if path.Base(attrs.Name) != manifestName {
			continue
		}

		artifact, err := s.fetchArtifact(ctx, bucket, attrs.Name, destDir)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *artifact)
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, nil
}

func (s *GCS) fetchArtifact(ctx context.Context, bucket *storage.BucketHandle, manifestObj, destDir string) (*model.Artifact, error) {
	raw, err := s.read(ctx, bucket.Object(manifestObj))
	if err != nil {
		return nil, err
	}

	var artifact model.Artifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, goerr.Wrap(err, "failed to parse artifact manifest", goerr.V("object", manifestObj))
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
		data, err := s.read(ctx, bucket.Object(path.Join(path.Dir(manifestObj), f.Name)))
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return nil, goerr.Wrap(err, "failed to write downloaded file", goerr.V("path", dst))
		}
		artifact.Files[i].Path = dst
	}

	return &artifact, nil
}

func (s *GCS) read(ctx context.Context, obj *storage.ObjectHandle) ([]byte, error) {
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open object", goerr.V("object", obj.ObjectName()))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read object", goerr.V("object", obj.ObjectName()))
	}
	return data, nil
}

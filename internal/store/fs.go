package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/curator-cli/internal/model"
)

// Filesystem artifact names within a version directory.
const (
	acceptedFile = "accepted.jsonl"
	disputedFile = "disputed.log"
	metadataFile = "metadata.yaml"
	versionFile  = "version.json"
	latestFile   = "LATEST"
	stagingDir   = ".staging"
)

// FSStore implements VersionStore on a local directory, one subdirectory per
// version. Content is staged under .staging and made visible with a single
// directory rename, so readers see a whole version or nothing. A LATEST
// pointer file is swapped atomically after each successful commit.
type FSStore struct {
	root string
}

// NewFS creates an FSStore rooted at dir.
func NewFS(dir string) *FSStore {
	return &FSStore{root: dir}
}

func (s *FSStore) Migrate(_ context.Context) error {
	if err := os.MkdirAll(filepath.Join(s.root, stagingDir), 0o755); err != nil {
		return eris.Wrap(err, "versions fs: create layout")
	}
	return nil
}

func (s *FSStore) Close() error { return nil }

func (s *FSStore) Publish(_ context.Context, v *model.DatasetVersion) error {
	target := filepath.Join(s.root, v.VersionID)

	if meta, err := s.readMeta(target); err == nil {
		if meta.ContentHash != v.ContentHash() {
			return eris.Wrapf(ErrVersionCollision, "version %s", v.VersionID)
		}
		return nil // idempotent republish
	}

	if err := os.MkdirAll(filepath.Join(s.root, stagingDir), 0o755); err != nil {
		return eris.Wrap(err, "versions fs: create staging")
	}

	stage := filepath.Join(s.root, stagingDir, v.VersionID+"."+uuid.New().String()[:8])
	if err := os.Mkdir(stage, 0o755); err != nil {
		return eris.Wrap(err, "versions fs: create stage dir")
	}
	// Staged output is never durable: remove it on any exit path. After a
	// successful rename the stage path no longer exists and this is a no-op.
	defer os.RemoveAll(stage)

	if err := s.writeArtifacts(stage, v); err != nil {
		return err
	}

	if err := os.Rename(stage, target); err != nil {
		// A concurrent publisher may have claimed the id between the check
		// and the rename; reclassify instead of failing blind.
		if meta, readErr := s.readMeta(target); readErr == nil {
			if meta.ContentHash != v.ContentHash() {
				return eris.Wrapf(ErrVersionCollision, "version %s", v.VersionID)
			}
			return nil
		}
		return eris.Wrapf(err, "versions fs: commit version %s", v.VersionID)
	}

	if err := renameio.WriteFile(filepath.Join(s.root, latestFile), []byte(v.VersionID+"\n"), 0o644); err != nil {
		return eris.Wrap(err, "versions fs: update latest pointer")
	}
	return nil
}

func (s *FSStore) writeArtifacts(dir string, v *model.DatasetVersion) error {
	metaYAML, err := yaml.Marshal(v.Meta())
	if err != nil {
		return eris.Wrap(err, "versions fs: marshal metadata")
	}
	versionJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "versions fs: marshal version")
	}

	files := map[string][]byte{
		acceptedFile: v.AcceptedJSONL(),
		disputedFile: v.DisputedLog(),
		metadataFile: metaYAML,
		versionFile:  versionJSON,
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return eris.Wrapf(err, "versions fs: stage %s", name)
		}
	}
	return nil
}

func (s *FSStore) readMeta(dir string) (*model.Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, eris.Wrap(err, "versions fs: read metadata")
	}
	var meta model.Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, eris.Wrap(err, "versions fs: unmarshal metadata")
	}
	return &meta, nil
}

func (s *FSStore) Get(_ context.Context, versionID string) (*model.DatasetVersion, error) {
	data, err := os.ReadFile(filepath.Join(s.root, versionID, versionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrVersionNotFound, "version %s", versionID)
		}
		return nil, eris.Wrapf(err, "versions fs: read version %s", versionID)
	}

	var v model.DatasetVersion
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, eris.Wrapf(err, "versions fs: unmarshal version %s", versionID)
	}
	return &v, nil
}

func (s *FSStore) List(_ context.Context) ([]model.Meta, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "versions fs: list")
	}

	var metas []model.Meta
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == stagingDir {
			continue
		}
		meta, err := s.readMeta(filepath.Join(s.root, entry.Name()))
		if err != nil {
			continue // not a version directory
		}
		metas = append(metas, *meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		if !metas[i].CreatedAt.Equal(metas[j].CreatedAt) {
			return metas[i].CreatedAt.Before(metas[j].CreatedAt)
		}
		return metas[i].VersionID < metas[j].VersionID
	})
	return metas, nil
}

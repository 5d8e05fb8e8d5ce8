// Package contentsync copies entity content between the repository and a
// local directory.
//
// SyncDown mirrors a Project, Folder, or File into a directory and writes a
// manifest listing every file it wrote. SyncUp reads that manifest back and
// uploads each listed file, creating files that have no id yet.
package contentsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/syt-tools/syt/internal/entity"
	syterrors "github.com/syt-tools/syt/internal/errors"
	"github.com/syt-tools/syt/internal/logging"
	"github.com/syt-tools/syt/internal/repository"
	"github.com/syt-tools/syt/internal/util"
)

// SyncedFile is a file written or uploaded by a sync.
type SyncedFile struct {
	ID   string
	Path string
}

// Syncer moves content for one repository.
type Syncer struct {
	repo         repository.Repository
	manifestName string
	logger       *logging.Logger
}

// New creates a Syncer. An empty manifestName uses DefaultManifestFile.
func New(repo repository.Repository, manifestName string, logger *logging.Logger) *Syncer {
	if manifestName == "" {
		manifestName = DefaultManifestFile
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Syncer{repo: repo, manifestName: manifestName, logger: logger}
}

// ManifestPath returns the manifest location inside dir.
func (s *Syncer) ManifestPath(dir string) string {
	return filepath.Join(dir, s.manifestName)
}

// SyncDown downloads root into dir. Containers are mirrored as directories
// with root's children placed directly in dir; a single file lands in dir
// under its own name. The manifest is written last.
func (s *Syncer) SyncDown(ctx context.Context, root *entity.Entity, dir string) ([]SyncedFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkout directory: %w", err)
	}

	var (
		synced   []SyncedFile
		manifest []ManifestEntry
	)
	download := func(id, parentID, name, localDir string) error {
		if err := checkName(id, name); err != nil {
			return err
		}
		data, err := s.repo.Download(ctx, id)
		if err != nil {
			return repository.Classify("download file", id, err)
		}
		path := filepath.Join(localDir, name)
		if err := util.WriteFileAtomic(path, data, 0644); err != nil {
			return syterrors.Wrapf(err, "failed to write %s", path)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		synced = append(synced, SyncedFile{ID: id, Path: path})
		manifest = append(manifest, ManifestEntry{Path: rel, ParentID: parentID, Name: name, ID: id})
		s.logger.Debug("downloaded file", "entity_id", id, "path", path, "bytes", len(data))
		return nil
	}

	if root.Kind == entity.KindFile {
		if err := download(root.ID, root.ParentID, root.Name, dir); err != nil {
			return nil, err
		}
	} else {
		type level struct {
			id  string
			dir string
		}
		queue := []level{{id: root.ID, dir: dir}}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]

			children, err := s.repo.ListChildren(ctx, cur.id, entity.KindFolder, entity.KindFile)
			if err != nil {
				return nil, repository.Classify("list children", cur.id, err)
			}
			for _, child := range children {
				switch child.Kind {
				case entity.KindFolder:
					if err := checkName(child.ID, child.Name); err != nil {
						return nil, err
					}
					sub := filepath.Join(cur.dir, child.Name)
					if err := os.MkdirAll(sub, 0755); err != nil {
						return nil, fmt.Errorf("failed to create %s: %w", sub, err)
					}
					queue = append(queue, level{id: child.ID, dir: sub})
				case entity.KindFile:
					if err := download(child.ID, cur.id, child.Name, cur.dir); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	if err := WriteManifest(s.ManifestPath(dir), manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	return synced, nil
}

// checkName rejects entity names that would not map to a single path element
// inside the checkout directory.
func checkName(id, name string) error {
	if name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`) {
		return nil
	}
	return syterrors.NewValidationError("entity name cannot be used as a local file name").
		WithEntity(id, name).WithField("name").WithValue(name)
}

// within reports whether path is base or lies below it.
func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// SyncUp uploads every file listed in the manifest at manifestPath. Relative
// paths are resolved against the manifest's directory, and every path must
// stay inside it. A missing manifest is a NotFoundError.
func (s *Syncer) SyncUp(ctx context.Context, manifestPath string) ([]SyncedFile, error) {
	entries, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(manifestPath)

	var synced []SyncedFile
	for _, e := range entries {
		path := e.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		if !within(base, path) {
			return synced, syterrors.NewValidationError("manifest path is outside the checkout directory").
				WithEntity(e.ID, e.Name).WithField("path").WithValue(e.Path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return synced, syterrors.Wrapf(err, "failed to read %s", path)
		}
		stored, err := s.repo.Upload(ctx, repository.UploadRequest{
			ID:       e.ID,
			ParentID: e.ParentID,
			Name:     e.Name,
			Content:  data,
		})
		if err != nil {
			return synced, repository.Classify("upload file", e.ID, err)
		}
		synced = append(synced, SyncedFile{ID: stored.ID, Path: path})
		s.logger.Debug("uploaded file", "entity_id", stored.ID, "path", path, "bytes", len(data))
	}
	return synced, nil
}

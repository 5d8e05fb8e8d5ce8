package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/syt-tools/syt/internal/entity"
	"github.com/syt-tools/syt/internal/util"
)

// File is a Memory repository persisted as a YAML snapshot. The snapshot is
// loaded once at open and rewritten atomically after every mutation.
type File struct {
	*Memory
	path   string
	saveMu sync.Mutex
}

// OpenFile loads the snapshot at path. A missing file yields an empty
// repository that is created on the first write.
func OpenFile(path string, opts Options) (*File, error) {
	memOpts := []MemoryOption{WithViewRefresh(opts.ViewRefresh)}
	if opts.Username != "" {
		memOpts = append(memOpts, WithCredentials(opts.Username, opts.Password))
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &File{Memory: NewMemory(memOpts...), path: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read repository file: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse repository file %s: %w", path, err)
	}
	return &File{Memory: LoadSnapshot(snap, memOpts...), path: path}, nil
}

// WriteSnapshot serializes snap to path. It is used to seed file repositories.
func WriteSnapshot(path string, snap Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode repository snapshot: %w", err)
	}
	return util.WriteFileAtomic(path, data, 0600)
}

// Path returns the snapshot file location.
func (f *File) Path() string {
	return f.path
}

// Save writes the current contents to disk.
func (f *File) Save() error {
	f.saveMu.Lock()
	defer f.saveMu.Unlock()
	return WriteSnapshot(f.path, f.Memory.Snapshot())
}

// Store implements Repository.
func (f *File) Store(ctx context.Context, e *entity.Entity) (*entity.Entity, error) {
	stored, err := f.Memory.Store(ctx, e)
	if err != nil {
		return nil, err
	}
	if err := f.Save(); err != nil {
		return nil, err
	}
	return stored, nil
}

// CreateView implements Repository.
func (f *File) CreateView(ctx context.Context, spec entity.ViewSpec) (entity.ViewHandle, error) {
	h, err := f.Memory.CreateView(ctx, spec)
	if err != nil {
		return entity.ViewHandle{}, err
	}
	if err := f.Save(); err != nil {
		return entity.ViewHandle{}, err
	}
	return h, nil
}

// Upload implements Repository.
func (f *File) Upload(ctx context.Context, req UploadRequest) (*entity.Entity, error) {
	stored, err := f.Memory.Upload(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := f.Save(); err != nil {
		return nil, err
	}
	return stored, nil
}

// RefreshViews re-snapshots views and persists them.
func (f *File) RefreshViews() error {
	f.Memory.RefreshViews()
	return f.Save()
}

var _ Repository = (*File)(nil)

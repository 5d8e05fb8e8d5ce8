// Package workspace manages the local side of a checkout: the pointer file
// that records which entity a directory was checked out from, and the
// resolution of command arguments to an entity id and checkout path.
package workspace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	syterrors "github.com/syt-tools/syt/internal/errors"
	"github.com/syt-tools/syt/internal/util"
)

// DefaultPointerFile is the name of the pointer file in a checkout directory.
const DefaultPointerFile = ".syt"

// Workspace knows the pointer file name and the id prefix that tells entity
// ids apart from paths.
type Workspace struct {
	PointerFile string
	IDPrefix    string
}

// New creates a Workspace. Empty arguments use the defaults.
func New(pointerFile, idPrefix string) Workspace {
	if pointerFile == "" {
		pointerFile = DefaultPointerFile
	}
	if idPrefix == "" {
		idPrefix = "syn"
	}
	return Workspace{PointerFile: pointerFile, IDPrefix: idPrefix}
}

// PointerPath returns the pointer file location inside dir.
func (w Workspace) PointerPath(dir string) string {
	return filepath.Join(dir, w.PointerFile)
}

// WritePointer records entityID in dir, creating dir if needed. The file holds
// the id and nothing else.
func (w Workspace) WritePointer(dir, entityID string) error {
	return util.WriteFileAtomic(w.PointerPath(dir), []byte(entityID), 0644)
}

// ReadPointer returns the entity id recorded in dir. A missing or empty
// pointer file is a NotFoundError.
func (w Workspace) ReadPointer(dir string) (string, error) {
	path := w.PointerPath(dir)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", syterrors.NewNotFoundError("pointer file", path)
	}
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", syterrors.NewNotFoundError("pointer file", path).WithCause(errors.New("file is empty"))
	}
	return id, nil
}

// IsEntityID reports whether arg looks like an entity id rather than a path.
func (w Workspace) IsEntityID(arg string) bool {
	return strings.HasPrefix(strings.ToLower(arg), strings.ToLower(w.IDPrefix))
}

// Target is the entity a command acts on and the local directory it syncs with.
type Target struct {
	EntityID string
	Path     string
}

// Resolve turns the positional arguments [entity-id] [checkout-path] into a
// Target:
//
//   - no arguments: the id is read from the pointer file in cwd
//   - an id, optionally followed by a path (default cwd)
//   - a path instead of an id: the id is read from that path's pointer file
func (w Workspace) Resolve(args []string, cwd string) (Target, error) {
	if len(args) == 0 || args[0] == "" {
		id, err := w.ReadPointer(cwd)
		if err != nil {
			return Target{}, err
		}
		return Target{EntityID: id, Path: cwd}, nil
	}

	if !w.IsEntityID(args[0]) {
		path := args[0]
		if !filepath.IsAbs(path) {
			path = filepath.Join(cwd, path)
		}
		id, err := w.ReadPointer(path)
		if err != nil {
			return Target{}, err
		}
		return Target{EntityID: id, Path: path}, nil
	}

	t := Target{EntityID: args[0], Path: cwd}
	if len(args) > 1 && args[1] != "" {
		t.Path = args[1]
		if !filepath.IsAbs(t.Path) {
			t.Path = filepath.Join(cwd, t.Path)
		}
	}
	return t, nil
}

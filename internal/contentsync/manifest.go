package contentsync

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	syterrors "github.com/syt-tools/syt/internal/errors"
	"github.com/syt-tools/syt/internal/util"
)

// DefaultManifestFile is the manifest name written next to synced content.
const DefaultManifestFile = "SYNAPSE_METADATA_MANIFEST.tsv"

var manifestHeader = []string{"path", "parent", "name", "id"}

// ManifestEntry is one file row of a manifest.
type ManifestEntry struct {
	// Path is relative to the manifest's directory, or an absolute path
	// inside it.
	Path     string
	ParentID string
	Name     string
	// ID is empty for files that do not exist in the repository yet.
	ID string
}

// WriteManifest writes entries as a tab-separated file with a header row.
func WriteManifest(path string, entries []ManifestEntry) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	if err := w.Write(manifestHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.Write([]string{filepath.ToSlash(e.Path), e.ParentID, e.Name, e.ID}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return util.WriteFileAtomic(path, buf.Bytes(), 0644)
}

// ReadManifest parses a manifest. Columns are matched by header name, so
// extra columns are ignored. A missing file is a NotFoundError.
func ReadManifest(path string) ([]ManifestEntry, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, syterrors.NewNotFoundError("manifest", path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"path", "parent"} {
		if _, ok := cols[required]; !ok {
			return nil, syterrors.NewValidationError("manifest is missing a required column").
				WithField(required).WithValue(path)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var entries []ManifestEntry
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest: %w", err)
		}
		if slices.Equal(record, []string{""}) {
			continue
		}
		e := ManifestEntry{
			Path:     filepath.FromSlash(field(record, "path")),
			ParentID: field(record, "parent"),
			Name:     field(record, "name"),
			ID:       field(record, "id"),
		}
		if e.Name == "" {
			e.Name = filepath.Base(e.Path)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

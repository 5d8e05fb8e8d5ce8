package contentsync

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/syt-tools/syt/internal/entity"
	syterrors "github.com/syt-tools/syt/internal/errors"
	"github.com/syt-tools/syt/internal/repository"
)

// newRepo builds P(syn1) > A(syn2) > {B(syn3) > f.txt(syn5), g.txt(syn4)}.
func newRepo(t *testing.T) *repository.Memory {
	t.Helper()
	m := repository.NewMemory()
	m.Put(&entity.Entity{ID: "syn1", Kind: entity.KindProject, Name: "P"})
	m.Put(&entity.Entity{ID: "syn2", ParentID: "syn1", Kind: entity.KindFolder, Name: "A"})
	m.Put(&entity.Entity{ID: "syn3", ParentID: "syn2", Kind: entity.KindFolder, Name: "B"})
	m.Put(&entity.Entity{ID: "syn4", ParentID: "syn2", Kind: entity.KindFile, Name: "g.txt"})
	m.Put(&entity.Entity{ID: "syn5", ParentID: "syn3", Kind: entity.KindFile, Name: "f.txt"})
	m.SetContent("syn4", []byte("gee"))
	m.SetContent("syn5", []byte("eff"))
	return m
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return string(data)
}

func TestSyncDown_Folder(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	dir := t.TempDir()
	s := New(repo, "", nil)

	root, _ := repo.GetEntity(ctx, "syn2")
	synced, err := s.SyncDown(ctx, root, dir)
	if err != nil {
		t.Fatalf("SyncDown() error = %v", err)
	}

	var got []string
	for _, f := range synced {
		got = append(got, f.ID)
	}
	if !slices.Equal(got, []string{"syn4", "syn5"}) {
		t.Errorf("synced ids = %v, want [syn4 syn5]", got)
	}
	if c := readFile(t, filepath.Join(dir, "g.txt")); c != "gee" {
		t.Errorf("g.txt = %q", c)
	}
	if c := readFile(t, filepath.Join(dir, "B", "f.txt")); c != "eff" {
		t.Errorf("B/f.txt = %q", c)
	}

	entries, err := ReadManifest(s.ManifestPath(dir))
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	want := []ManifestEntry{
		{Path: "g.txt", ParentID: "syn2", Name: "g.txt", ID: "syn4"},
		{Path: filepath.Join("B", "f.txt"), ParentID: "syn3", Name: "f.txt", ID: "syn5"},
	}
	if !slices.Equal(entries, want) {
		t.Errorf("manifest = %+v, want %+v", entries, want)
	}
}

func TestSyncDown_File(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	dir := t.TempDir()

	root, _ := repo.GetEntity(ctx, "syn5")
	synced, err := New(repo, "", nil).SyncDown(ctx, root, dir)
	if err != nil {
		t.Fatalf("SyncDown() error = %v", err)
	}
	if len(synced) != 1 || synced[0].Path != filepath.Join(dir, "f.txt") {
		t.Errorf("synced = %+v", synced)
	}
}

func TestSyncUp(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	dir := t.TempDir()
	s := New(repo, "", nil)

	root, _ := repo.GetEntity(ctx, "syn2")
	if _, err := s.SyncDown(ctx, root, dir); err != nil {
		t.Fatalf("SyncDown() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "g.txt"), []byte("changed"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("fresh"), 0644); err != nil {
		t.Fatal(err)
	}

	entries, _ := ReadManifest(s.ManifestPath(dir))
	entries = append(entries, ManifestEntry{Path: "new.txt", ParentID: "syn2", Name: "new.txt"})
	if err := WriteManifest(s.ManifestPath(dir), entries); err != nil {
		t.Fatalf("WriteManifest() error = %v", err)
	}

	synced, err := s.SyncUp(ctx, s.ManifestPath(dir))
	if err != nil {
		t.Fatalf("SyncUp() error = %v", err)
	}
	if len(synced) != 3 {
		t.Fatalf("SyncUp() uploaded %d files, want 3", len(synced))
	}
	data, _ := repo.Download(ctx, "syn4")
	if string(data) != "changed" {
		t.Errorf("syn4 content = %q, want changed", data)
	}
	created := synced[2].ID
	data, err = repo.Download(ctx, created)
	if err != nil || string(data) != "fresh" {
		t.Errorf("new file %s content = %q, %v", created, data, err)
	}
}

func TestSyncUp_MissingManifest(t *testing.T) {
	s := New(newRepo(t), "", nil)
	_, err := s.SyncUp(context.Background(), s.ManifestPath(t.TempDir()))
	var nf *syterrors.NotFoundError
	if !syterrors.As(err, &nf) {
		t.Fatalf("SyncUp() error = %v, want NotFoundError", err)
	}
}

func TestReadManifest(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []ManifestEntry
		wantErr bool
	}{
		{
			name:    "header only",
			content: "path\tparent\tname\tid\n",
			want:    nil,
		},
		{
			name:    "extra columns and missing name",
			content: "id\tpath\tparent\tcontentType\nsyn9\tdata/x.csv\tsyn2\ttext/csv\n",
			want:    []ManifestEntry{{Path: filepath.Join("data", "x.csv"), ParentID: "syn2", Name: "x.csv", ID: "syn9"}},
		},
		{
			name:    "missing parent column",
			content: "path\tname\nx\tx\n",
			wantErr: true,
		},
		{
			name:    "empty file",
			content: "",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultManifestFile)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			got, err := ReadManifest(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadManifest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("ReadManifest() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSyncDown_RejectsUnsafeNames(t *testing.T) {
	tests := []struct {
		name   string
		kind   entity.Kind
		entity string
	}{
		{"file climbing out", entity.KindFile, "../escaped.txt"},
		{"folder climbing out", entity.KindFolder, ".."},
		{"file with separator", entity.KindFile, "sub/x.txt"},
		{"dot folder", entity.KindFolder, "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)
			repo.Put(&entity.Entity{ID: "syn9", ParentID: "syn2", Kind: tt.kind, Name: tt.entity})
			repo.SetContent("syn9", []byte("out"))

			parent := t.TempDir()
			dir := filepath.Join(parent, "checkout")
			root, _ := repo.GetEntity(ctx, "syn2")
			_, err := New(repo, "", nil).SyncDown(ctx, root, dir)

			var ve *syterrors.ValidationError
			if !syterrors.As(err, &ve) {
				t.Fatalf("SyncDown() error = %v, want ValidationError", err)
			}
			if ve.EntityID != "syn9" {
				t.Errorf("ValidationError entity = %q, want syn9", ve.EntityID)
			}
			if _, err := os.Stat(filepath.Join(parent, "escaped.txt")); !os.IsNotExist(err) {
				t.Errorf("file written outside the checkout directory")
			}
		})
	}
}

func TestSyncUp_RejectsPathsOutsideCheckout(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	parent := t.TempDir()
	dir := filepath.Join(parent, "checkout")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(parent, "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"../secret.txt", outside} {
		t.Run(path, func(t *testing.T) {
			s := New(repo, "", nil)
			entries := []ManifestEntry{{Path: path, ParentID: "syn2", Name: "secret.txt"}}
			if err := WriteManifest(s.ManifestPath(dir), entries); err != nil {
				t.Fatalf("WriteManifest() error = %v", err)
			}
			synced, err := s.SyncUp(ctx, s.ManifestPath(dir))
			var ve *syterrors.ValidationError
			if !syterrors.As(err, &ve) {
				t.Fatalf("SyncUp() error = %v, want ValidationError", err)
			}
			if len(synced) != 0 {
				t.Errorf("SyncUp() uploaded %d files, want 0", len(synced))
			}
		})
	}
}

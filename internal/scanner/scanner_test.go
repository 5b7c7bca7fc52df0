package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/foldsync/foldsync/internal/model"
)

// newTestFs builds an in-memory filesystem with the given files.
func newTestFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	return fs
}

// collect drains the change sequence into a map keyed by path.
func collect(s *Scanner, root string, baseline map[string]model.FileMetadata) map[string]model.DetectedChange {
	out := make(map[string]model.DetectedChange)
	for c := range s.Changes(root, baseline) {
		out[c.Path] = c
	}
	return out
}

func TestChecksum(t *testing.T) {
	fs := newTestFs(t, map[string]string{"/data/a.txt": "hello"})
	s := NewWithFs(fs)

	sum, err := s.Checksum("/data/a.txt")
	if err != nil {
		t.Fatalf("Checksum() failed: %v", err)
	}

	want := sha256.Sum256([]byte("hello"))
	if sum != hex.EncodeToString(want[:]) {
		t.Errorf("Checksum() = %q, want hex sha256 of content", sum)
	}
}

// TestChanges_EmptyBaseline verifies that with no baseline every file is
// reported as created.
func TestChanges_EmptyBaseline(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"/data/a.txt":     "aaa",
		"/data/sub/b.txt": "bbb",
	})
	s := NewWithFs(fs)

	changes := collect(s, "/data", nil)

	for _, path := range []string{"/data/a.txt", "/data/sub/b.txt"} {
		c, ok := changes[path]
		if !ok {
			t.Fatalf("expected a change for %s", path)
		}
		if c.Kind != model.ChangeCreated {
			t.Errorf("%s Kind = %v, want created", path, c.Kind)
		}
		if c.Checksum == "" {
			t.Errorf("%s has empty checksum", path)
		}
	}

	dir, ok := changes["/data/sub"]
	if !ok {
		t.Fatal("expected a change for the subdirectory")
	}
	if !dir.IsDirectory {
		t.Error("subdirectory not flagged IsDirectory")
	}
	if dir.Checksum != "" {
		t.Error("directories must never be hashed")
	}
}

// TestChanges_UnchangedFilesSkipped verifies that a matching baseline
// produces no changes.
func TestChanges_UnchangedFilesSkipped(t *testing.T) {
	fs := newTestFs(t, map[string]string{"/data/a.txt": "aaa"})
	s := NewWithFs(fs)

	info, err := fs.Stat("/data/a.txt")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	sum, _ := s.Checksum("/data/a.txt")

	baseline := map[string]model.FileMetadata{
		"/data/a.txt": {
			Path:       "/data/a.txt",
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
			Checksum:   sum,
		},
	}

	changes := collect(s, "/data", baseline)
	if _, ok := changes["/data/a.txt"]; ok {
		t.Error("unchanged file was reported")
	}
}

// TestChanges_ModifiedFile verifies that a diverging fingerprint is reported.
func TestChanges_ModifiedFile(t *testing.T) {
	fs := newTestFs(t, map[string]string{"/data/a.txt": "new content"})
	s := NewWithFs(fs)

	baseline := map[string]model.FileMetadata{
		"/data/a.txt": {
			Path:       "/data/a.txt",
			Size:       3,
			ModifiedAt: time.Now().Add(-time.Hour),
			Checksum:   "stale",
		},
	}

	changes := collect(s, "/data", baseline)
	c, ok := changes["/data/a.txt"]
	if !ok {
		t.Fatal("modified file was not reported")
	}
	if c.Kind != model.ChangeModified {
		t.Errorf("Kind = %v, want modified", c.Kind)
	}
}

// TestChanges_DeletedFile verifies that baseline paths missing on disk are
// reported as deleted.
func TestChanges_DeletedFile(t *testing.T) {
	fs := newTestFs(t, map[string]string{"/data/keep.txt": "x"})
	s := NewWithFs(fs)

	baseline := map[string]model.FileMetadata{
		"/data/gone.txt": {Path: "/data/gone.txt", Size: 5, Checksum: "abc"},
	}

	changes := collect(s, "/data", baseline)
	c, ok := changes["/data/gone.txt"]
	if !ok {
		t.Fatal("deleted file was not reported")
	}
	if c.Kind != model.ChangeDeleted {
		t.Errorf("Kind = %v, want deleted", c.Kind)
	}
}

// TestChanges_Restartable verifies that ranging the sequence twice re-walks
// the tree and yields the same results.
func TestChanges_Restartable(t *testing.T) {
	fs := newTestFs(t, map[string]string{"/data/a.txt": "aaa"})
	s := NewWithFs(fs)

	seq := s.Changes("/data", nil)

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}

	if first == 0 || first != second {
		t.Errorf("sequence not restartable: first=%d second=%d", first, second)
	}
}

// TestChanges_EarlyStop verifies that breaking out of the range does not
// panic or keep walking.
func TestChanges_EarlyStop(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"/data/a.txt": "a",
		"/data/b.txt": "b",
		"/data/c.txt": "c",
	})
	s := NewWithFs(fs)

	n := 0
	for range s.Changes("/data", nil) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("consumed %d changes after break, want 1", n)
	}
}

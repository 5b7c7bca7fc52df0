package store

import (
	"errors"
	"testing"
	"time"

	"github.com/foldsync/foldsync/internal/model"
)

func addTestFolder(t *testing.T, s *Store) *model.SyncFolder {
	t.Helper()
	folder, err := s.AddFolder("/home/user/docs", "backup/docs")
	if err != nil {
		t.Fatalf("AddFolder() failed: %v", err)
	}
	return folder
}

func TestUpsertFileMetadata(t *testing.T) {
	s := newTestStore(t)
	folder := addTestFolder(t, s)

	modified := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	meta := &model.FileMetadata{
		Path:       "/home/user/docs/report.pdf",
		FolderID:   folder.ID,
		Size:       2048,
		ModifiedAt: modified,
		Checksum:   "abc123",
		SyncStatus: "synced",
	}

	if err := s.UpsertFileMetadata(meta); err != nil {
		t.Fatalf("UpsertFileMetadata() failed: %v", err)
	}

	got, err := s.GetFileMetadata(meta.Path)
	if err != nil {
		t.Fatalf("GetFileMetadata() failed: %v", err)
	}
	if got.Size != 2048 || got.Checksum != "abc123" {
		t.Errorf("got size=%d checksum=%q, want 2048/abc123", got.Size, got.Checksum)
	}
	if !got.ModifiedAt.Equal(modified) {
		t.Errorf("modified = %v, want %v", got.ModifiedAt, modified)
	}

	// Second upsert for the same path replaces, never duplicates.
	meta.Size = 4096
	meta.Checksum = "def456"
	if err := s.UpsertFileMetadata(meta); err != nil {
		t.Fatalf("second UpsertFileMetadata() failed: %v", err)
	}

	got, err = s.GetFileMetadata(meta.Path)
	if err != nil {
		t.Fatalf("GetFileMetadata() after update failed: %v", err)
	}
	if got.Size != 4096 || got.Checksum != "def456" {
		t.Errorf("got size=%d checksum=%q after update, want 4096/def456", got.Size, got.Checksum)
	}

	baseline, err := s.ListFileMetadata(folder.ID)
	if err != nil {
		t.Fatalf("ListFileMetadata() failed: %v", err)
	}
	if len(baseline) != 1 {
		t.Errorf("baseline has %d rows, want 1", len(baseline))
	}
}

func TestUpsertFileMetadataValidation(t *testing.T) {
	s := newTestStore(t)
	folder := addTestFolder(t, s)

	if err := s.UpsertFileMetadata(&model.FileMetadata{FolderID: folder.ID}); err == nil {
		t.Error("UpsertFileMetadata() with empty path should fail")
	}
	if err := s.UpsertFileMetadata(&model.FileMetadata{Path: "/x"}); err == nil {
		t.Error("UpsertFileMetadata() with empty folder id should fail")
	}
}

func TestGetFileMetadataMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetFileMetadata("/never/observed")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFileMetadata() = %v, want ErrNotFound", err)
	}
}

func TestListFileMetadataScopedToFolder(t *testing.T) {
	s := newTestStore(t)
	docs := addTestFolder(t, s)
	photos, err := s.AddFolder("/home/user/photos", "backup/photos")
	if err != nil {
		t.Fatalf("AddFolder() failed: %v", err)
	}

	now := time.Now()
	for path, id := range map[string]string{
		"/home/user/docs/a.txt":   docs.ID,
		"/home/user/docs/b.txt":   docs.ID,
		"/home/user/photos/c.jpg": photos.ID,
	} {
		err := s.UpsertFileMetadata(&model.FileMetadata{Path: path, FolderID: id, ModifiedAt: now})
		if err != nil {
			t.Fatalf("UpsertFileMetadata(%s) failed: %v", path, err)
		}
	}

	baseline, err := s.ListFileMetadata(docs.ID)
	if err != nil {
		t.Fatalf("ListFileMetadata() failed: %v", err)
	}
	if len(baseline) != 2 {
		t.Fatalf("docs baseline has %d rows, want 2", len(baseline))
	}
	if _, ok := baseline["/home/user/docs/a.txt"]; !ok {
		t.Error("baseline missing /home/user/docs/a.txt")
	}
	if _, ok := baseline["/home/user/photos/c.jpg"]; ok {
		t.Error("baseline leaked a row from another folder")
	}
}

func TestDeleteFileMetadataIdempotent(t *testing.T) {
	s := newTestStore(t)
	folder := addTestFolder(t, s)

	meta := &model.FileMetadata{
		Path:       "/home/user/docs/gone.txt",
		FolderID:   folder.ID,
		ModifiedAt: time.Now(),
	}
	if err := s.UpsertFileMetadata(meta); err != nil {
		t.Fatalf("UpsertFileMetadata() failed: %v", err)
	}

	if err := s.DeleteFileMetadata(meta.Path); err != nil {
		t.Fatalf("DeleteFileMetadata() failed: %v", err)
	}
	if err := s.DeleteFileMetadata(meta.Path); err != nil {
		t.Fatalf("second DeleteFileMetadata() failed: %v", err)
	}
	if _, err := s.GetFileMetadata(meta.Path); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFileMetadata() after delete = %v, want ErrNotFound", err)
	}
}

func TestFileMetadataCascadesOnFolderRemove(t *testing.T) {
	s := newTestStore(t)
	folder := addTestFolder(t, s)

	meta := &model.FileMetadata{
		Path:       "/home/user/docs/report.pdf",
		FolderID:   folder.ID,
		ModifiedAt: time.Now(),
	}
	if err := s.UpsertFileMetadata(meta); err != nil {
		t.Fatalf("UpsertFileMetadata() failed: %v", err)
	}

	if err := s.RemoveFolder(folder.ID); err != nil {
		t.Fatalf("RemoveFolder() failed: %v", err)
	}
	if _, err := s.GetFileMetadata(meta.Path); !errors.Is(err, ErrNotFound) {
		t.Errorf("metadata survived folder removal: %v", err)
	}
}

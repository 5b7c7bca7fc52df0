package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/foldsync/foldsync/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "foldsync.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return s
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "foldsync.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
}

func TestInitSchemaIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.InitSchema(); err != nil {
		t.Fatalf("second InitSchema() failed: %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "foldsync.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}
}

func TestFolderLifecycle(t *testing.T) {
	s := newTestStore(t)

	folder, err := s.AddFolder("/home/user/docs", "backup/docs")
	if err != nil {
		t.Fatalf("AddFolder() failed: %v", err)
	}
	if folder.ID == "" {
		t.Fatal("AddFolder() returned empty id")
	}
	if folder.Status != model.FolderIdle {
		t.Errorf("new folder status = %v, want idle", folder.Status)
	}
	if !folder.Enabled {
		t.Error("new folder should be enabled")
	}

	got, err := s.GetFolder(folder.ID)
	if err != nil {
		t.Fatalf("GetFolder() failed: %v", err)
	}
	if got.LocalPath != "/home/user/docs" || got.RemotePath != "backup/docs" {
		t.Errorf("GetFolder() = %q <-> %q, want /home/user/docs <-> backup/docs",
			got.LocalPath, got.RemotePath)
	}

	if err := s.UpdateFolderStatus(folder.ID, model.FolderSyncing); err != nil {
		t.Fatalf("UpdateFolderStatus() failed: %v", err)
	}
	if err := s.UpdateFolderSize(folder.ID, 4096); err != nil {
		t.Fatalf("UpdateFolderSize() failed: %v", err)
	}
	if err := s.SetFolderEnabled(folder.ID, false); err != nil {
		t.Fatalf("SetFolderEnabled() failed: %v", err)
	}

	got, err = s.GetFolder(folder.ID)
	if err != nil {
		t.Fatalf("GetFolder() after updates failed: %v", err)
	}
	if got.Status != model.FolderSyncing {
		t.Errorf("status = %v, want syncing", got.Status)
	}
	if got.Size != 4096 {
		t.Errorf("size = %d, want 4096", got.Size)
	}
	if got.Enabled {
		t.Error("folder should be disabled")
	}

	if err := s.RemoveFolder(folder.ID); err != nil {
		t.Fatalf("RemoveFolder() failed: %v", err)
	}
	if _, err := s.GetFolder(folder.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFolder() after remove = %v, want ErrNotFound", err)
	}
}

func TestFolderValidation(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.AddFolder("", "backup/docs"); err == nil {
		t.Error("AddFolder() with empty local path should fail")
	}
	if _, err := s.AddFolder("/home/user/docs", ""); err == nil {
		t.Error("AddFolder() with empty remote path should fail")
	}
}

func TestFolderOperationsOnMissingID(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpdateFolderStatus("nope", model.FolderIdle); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateFolderStatus() = %v, want ErrNotFound", err)
	}
	if err := s.UpdateFolderSize("nope", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateFolderSize() = %v, want ErrNotFound", err)
	}
	if err := s.SetFolderEnabled("nope", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetFolderEnabled() = %v, want ErrNotFound", err)
	}
	if err := s.RemoveFolder("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveFolder() = %v, want ErrNotFound", err)
	}
}

func TestFoldersPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foldsync.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	folder, err := s.AddFolder("/home/user/docs", "backup/docs")
	if err != nil {
		t.Fatalf("AddFolder() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	if err := s2.InitSchema(); err != nil {
		t.Fatalf("InitSchema() on reopen failed: %v", err)
	}

	folders, err := s2.ListFolders()
	if err != nil {
		t.Fatalf("ListFolders() failed: %v", err)
	}
	if len(folders) != 1 {
		t.Fatalf("got %d folders after reopen, want 1", len(folders))
	}
	if folders[0].ID != folder.ID {
		t.Errorf("folder id = %q, want %q", folders[0].ID, folder.ID)
	}
}

func TestListFoldersOrderedByCreation(t *testing.T) {
	s := newTestStore(t)

	first, err := s.AddFolder("/home/user/a", "backup/a")
	if err != nil {
		t.Fatalf("AddFolder() failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond) // distinct created_at timestamps
	second, err := s.AddFolder("/home/user/b", "backup/b")
	if err != nil {
		t.Fatalf("AddFolder() failed: %v", err)
	}

	folders, err := s.ListFolders()
	if err != nil {
		t.Fatalf("ListFolders() failed: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("got %d folders, want 2", len(folders))
	}
	if folders[0].ID != first.ID || folders[1].ID != second.ID {
		t.Error("ListFolders() not ordered oldest first")
	}
}

package store

import (
	"errors"
	"testing"
	"time"
)

func TestConflictLifecycle(t *testing.T) {
	s := newTestStore(t)
	folder := addTestFolder(t, s)

	local := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	remote := local.Add(-time.Hour)

	conflict, err := s.AddConflict(folder.ID, "/home/user/docs/report.pdf", local, remote)
	if err != nil {
		t.Fatalf("AddConflict() failed: %v", err)
	}
	if conflict.ID == "" {
		t.Fatal("AddConflict() returned empty id")
	}
	if !conflict.Pending() {
		t.Error("new conflict should be pending")
	}

	pending, err := s.PendingConflicts()
	if err != nil {
		t.Fatalf("PendingConflicts() failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending conflicts, want 1", len(pending))
	}
	if !pending[0].LocalModified.Equal(local) || !pending[0].RemoteModified.Equal(remote) {
		t.Errorf("timestamps = %v/%v, want %v/%v",
			pending[0].LocalModified, pending[0].RemoteModified, local, remote)
	}

	if err := s.ResolveConflict(conflict.ID, "uploaded"); err != nil {
		t.Fatalf("ResolveConflict() failed: %v", err)
	}

	pending, err = s.PendingConflicts()
	if err != nil {
		t.Fatalf("PendingConflicts() after resolve failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending conflicts after resolve, want 0", len(pending))
	}

	all, err := s.ListConflicts(folder.ID)
	if err != nil {
		t.Fatalf("ListConflicts() failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(all))
	}
	if all[0].Resolution != "uploaded" {
		t.Errorf("resolution = %q, want uploaded", all[0].Resolution)
	}
	if all[0].ResolvedAt == nil {
		t.Error("resolved conflict has no resolved_at timestamp")
	}
}

func TestResolveConflictExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	folder := addTestFolder(t, s)

	conflict, err := s.AddConflict(folder.ID, "/home/user/docs/report.pdf", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("AddConflict() failed: %v", err)
	}

	if err := s.ResolveConflict(conflict.ID, "downloaded"); err != nil {
		t.Fatalf("ResolveConflict() failed: %v", err)
	}
	if err := s.ResolveConflict(conflict.ID, "uploaded"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second ResolveConflict() = %v, want ErrNotFound", err)
	}

	// Original resolution is untouched.
	all, err := s.ListConflicts(folder.ID)
	if err != nil {
		t.Fatalf("ListConflicts() failed: %v", err)
	}
	if all[0].Resolution != "downloaded" {
		t.Errorf("resolution = %q, want downloaded", all[0].Resolution)
	}
}

func TestResolveConflictValidation(t *testing.T) {
	s := newTestStore(t)

	if err := s.ResolveConflict("some-id", ""); err == nil {
		t.Error("ResolveConflict() with empty resolution should fail")
	}
	if err := s.ResolveConflict("missing", "uploaded"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ResolveConflict() on missing id = %v, want ErrNotFound", err)
	}
}

func TestAddConflictValidation(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.AddConflict("", "/x", time.Now(), time.Now()); err == nil {
		t.Error("AddConflict() with empty folder id should fail")
	}
	if _, err := s.AddConflict("fid", "", time.Now(), time.Now()); err == nil {
		t.Error("AddConflict() with empty path should fail")
	}
}

func TestConflictsCascadeOnFolderRemove(t *testing.T) {
	s := newTestStore(t)
	folder := addTestFolder(t, s)

	if _, err := s.AddConflict(folder.ID, "/home/user/docs/report.pdf", time.Now(), time.Now()); err != nil {
		t.Fatalf("AddConflict() failed: %v", err)
	}
	if err := s.RemoveFolder(folder.ID); err != nil {
		t.Fatalf("RemoveFolder() failed: %v", err)
	}

	all, err := s.ListConflicts(folder.ID)
	if err != nil {
		t.Fatalf("ListConflicts() failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("got %d conflicts after folder removal, want 0", len(all))
	}
}

// Package scanner implements local change detection for foldsync.
//
// The scanner fingerprints regular files with SHA-256 and classifies a
// folder tree against the stored metadata baseline. It is read-only with
// respect to the filesystem; the only output is the change sequence.
package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/spf13/afero"

	"github.com/foldsync/foldsync/internal/model"
)

// Scanner detects local changes under a folder root.
type Scanner struct {
	fs afero.Fs
}

// New returns a Scanner reading from the real filesystem.
func New() *Scanner {
	return NewWithFs(afero.NewOsFs())
}

// NewWithFs returns a Scanner over an arbitrary filesystem.
// Tests pass an in-memory afero.Fs.
func NewWithFs(fs afero.Fs) *Scanner {
	return &Scanner{fs: fs}
}

// Checksum computes the hex SHA-256 fingerprint of a regular file.
func (s *Scanner) Checksum(path string) (string, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Changes returns a lazy, finite sequence of detected changes under root,
// classified against the baseline metadata keyed by path.
//
// The sequence is restartable: each range re-walks the tree. With an empty
// or nil baseline (first scan, or the database was unavailable) every
// discovered file is reported as created - that is the documented behavior,
// not an error. Directories carry IsDirectory and are never hashed.
// Baseline paths with no entry on disk are reported as deleted.
// Unreadable entries are skipped.
func (s *Scanner) Changes(root string, baseline map[string]model.FileMetadata) iter.Seq[model.DetectedChange] {
	return func(yield func(model.DetectedChange) bool) {
		seen := make(map[string]bool, len(baseline))
		stopped := false

		_ = afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
			if stopped {
				return errWalkStopped
			}
			if err != nil {
				return nil // unreadable entry, skip
			}
			if path == root {
				return nil
			}

			seen[path] = true

			change, report := s.classify(path, info, baseline)
			if !report {
				return nil
			}
			if !yield(change) {
				stopped = true
				return errWalkStopped
			}
			return nil
		})

		if stopped {
			return
		}

		// Baseline entries with nothing left on disk are deletions.
		for path, meta := range baseline {
			if seen[path] {
				continue
			}
			if !yield(model.DetectedChange{
				Path:        path,
				IsDirectory: meta.IsDirectory,
				Kind:        model.ChangeDeleted,
			}) {
				return
			}
		}
	}
}

// errWalkStopped aborts the walk once the consumer stops ranging.
var errWalkStopped = fmt.Errorf("scan stopped")

// classify compares one directory entry against the baseline.
func (s *Scanner) classify(path string, info os.FileInfo, baseline map[string]model.FileMetadata) (model.DetectedChange, bool) {
	change := model.DetectedChange{
		Path:        path,
		Size:        info.Size(),
		ModifiedAt:  info.ModTime(),
		IsDirectory: info.IsDir(),
	}

	prev, known := baseline[path]
	if !known {
		change.Kind = model.ChangeCreated
		if !info.IsDir() {
			sum, err := s.Checksum(path)
			if err != nil {
				return change, false
			}
			change.Checksum = sum
		}
		return change, true
	}

	if info.IsDir() {
		// Directories have no content to diff.
		return change, false
	}

	// Size and mtime agree with the baseline: unchanged, skip the hash.
	if info.Size() == prev.Size && info.ModTime().Equal(prev.ModifiedAt) {
		return change, false
	}

	sum, err := s.Checksum(path)
	if err != nil {
		return change, false
	}
	change.Checksum = sum

	// A touched file with identical content is not a change.
	if info.Size() == prev.Size && sum == prev.Checksum {
		return change, false
	}

	change.Kind = model.ChangeModified
	return change, true
}

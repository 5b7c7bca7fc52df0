// Package model provides the shared data structures for foldsync.
package model

import "time"

// FolderStatus represents the sync lifecycle state of a folder.
type FolderStatus int

const (
	// FolderIdle indicates the folder is configured and waiting for work.
	FolderIdle FolderStatus = iota
	// FolderSyncing indicates a sync pass is currently running.
	FolderSyncing
	// FolderPaused indicates the user paused synchronization.
	FolderPaused
	// FolderSyncError indicates the last pass failed after exhausting retries.
	FolderSyncError
)

// String returns a human-readable representation of the status.
func (s FolderStatus) String() string {
	switch s {
	case FolderIdle:
		return "idle"
	case FolderSyncing:
		return "syncing"
	case FolderPaused:
		return "paused"
	case FolderSyncError:
		return "sync_error"
	default:
		return "unknown"
	}
}

// ParseFolderStatus converts a stored status string back to a FolderStatus.
// Unrecognized values map to FolderIdle so a corrupted row never wedges a folder.
func ParseFolderStatus(s string) FolderStatus {
	switch s {
	case "syncing":
		return FolderSyncing
	case "paused":
		return FolderPaused
	case "sync_error":
		return FolderSyncError
	default:
		return FolderIdle
	}
}

// SyncFolder is a configured local-to-remote directory pairing under sync.
//
// The row in the metadata database is authoritative; the engine only holds
// transient in-memory copies.
type SyncFolder struct {
	// ID is a generated, stable identifier for the pairing.
	ID string
	// LocalPath is the absolute path of the local directory.
	LocalPath string
	// RemotePath is the remote prefix the local tree mirrors.
	RemotePath string
	// Status is the current lifecycle state.
	Status FolderStatus
	// Enabled gates whether the scheduler considers this folder at all.
	Enabled bool
	// Size is the sum of regular-file sizes under LocalPath, recomputed
	// whenever status is queried.
	Size int64
}

// FileMetadata is the last-known state of one file, used as the diff
// baseline by the change detector. Unique per path.
type FileMetadata struct {
	Path        string
	FolderID    string
	Size        int64
	ModifiedAt  time.Time
	Checksum    string
	IsDirectory bool
	SyncStatus  string
}

// Conflict is a logged instance of divergent concurrent edits to one path.
// Resolution stays empty until the divergence is resolved.
type Conflict struct {
	ID             string
	Path           string
	FolderID       string
	LocalModified  time.Time
	RemoteModified time.Time
	Resolution     string
	ResolvedAt     *time.Time
}

// Pending reports whether the conflict still awaits a resolution.
func (c *Conflict) Pending() bool {
	return c.Resolution == ""
}

// ChangeKind classifies a detected local change.
type ChangeKind int

const (
	// ChangeCreated indicates a file not present in the baseline.
	ChangeCreated ChangeKind = iota
	// ChangeModified indicates a file whose fingerprint diverged from the baseline.
	ChangeModified
	// ChangeDeleted indicates a baseline entry with no file on disk.
	ChangeDeleted
)

// String returns a human-readable representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "created"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// DetectedChange is the transient, per-scan output of the change detector.
type DetectedChange struct {
	// Path is the absolute path of the changed entry.
	Path string
	// Checksum is the hex SHA-256 of the content. Empty for directories
	// and for deleted entries.
	Checksum string
	// Size is the file size in bytes at scan time.
	Size int64
	// ModifiedAt is the modification time at scan time.
	ModifiedAt time.Time
	// IsDirectory marks directory entries, which are never hashed.
	IsDirectory bool
	// Kind classifies the change against the baseline.
	Kind ChangeKind
}

// RemoteChange is one entry of the transport's "changes since" answer.
type RemoteChange struct {
	// Path is the remote object path, relative to the folder's remote root.
	Path string
	// ModifiedAt is the remote modification time.
	ModifiedAt time.Time
}

// SyncStats is a transient status snapshot pushed through the status callback.
type SyncStats struct {
	Status           FolderStatus
	UploadSpeed      float64
	DownloadSpeed    float64
	PendingUploads   int
	PendingDownloads int
}

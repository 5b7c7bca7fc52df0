// Package transport defines the contract foldsync consumes to move bytes
// to and from the remote storage service, plus an S3-compatible
// implementation. The wire encoding between the transport and the remote
// service is out of scope for the sync core.
package transport

import (
	"context"
	"time"

	"github.com/foldsync/foldsync/internal/model"
)

// Progress reports incremental download state to a progress callback.
type Progress struct {
	TotalBytes       int64
	BytesDownloaded  int64
	PercentComplete  float64
	SpeedBytesPerSec float64
}

// Transport authenticates against the remote service and transfers files.
//
// Implementations must be safe for concurrent use: the engine calls into
// the transport from multiple folder-scoped sync passes at once.
type Transport interface {
	// Login establishes a session and returns its token. The caller hands
	// the token to the credential store.
	Login(ctx context.Context, username, password string) (string, error)

	// Logout tears down the current session.
	Logout(ctx context.Context) error

	// UploadFile copies a local file to the remote path.
	UploadFile(ctx context.Context, localPath, remotePath string) error

	// DownloadFile copies a remote object to the local path.
	DownloadFile(ctx context.Context, remotePath, localPath string) error

	// DownloadFileWithProgress is DownloadFile with per-chunk progress
	// reporting. fn may be nil.
	DownloadFileWithProgress(ctx context.Context, remotePath, localPath string, fn func(Progress)) error

	// DeleteFile removes a remote object.
	DeleteFile(ctx context.Context, remotePath string) error

	// GetChangesSince returns remote change records newer than the given
	// checkpoint, ordered by modification time. An empty slice means no
	// remote changes.
	GetChangesSince(ctx context.Context, since time.Time) ([]model.RemoteChange, error)
}

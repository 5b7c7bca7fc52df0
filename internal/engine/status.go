package engine

import (
	"sync"
	"time"

	"github.com/foldsync/foldsync/internal/model"
)

// transferCounters aggregates transfer activity for status snapshots.
// Written from sync-pass goroutines, read from the status tick.
type transferCounters struct {
	mu               sync.Mutex
	uploadedBytes    int64
	downloadedBytes  int64
	pendingUploads   int
	pendingDownloads int

	lastSample time.Time
	lastUp     int64
	lastDown   int64
}

func (c *transferCounters) addPending(uploads, downloads int) {
	c.mu.Lock()
	c.pendingUploads += uploads
	c.pendingDownloads += downloads
	c.mu.Unlock()
}

func (c *transferCounters) uploaded(bytes int64) {
	c.mu.Lock()
	c.uploadedBytes += bytes
	if c.pendingUploads > 0 {
		c.pendingUploads--
	}
	c.mu.Unlock()
}

func (c *transferCounters) downloaded(bytes int64) {
	c.mu.Lock()
	c.downloadedBytes += bytes
	if c.pendingDownloads > 0 {
		c.pendingDownloads--
	}
	c.mu.Unlock()
}

// sample computes transfer speeds over the interval since the previous
// sample and returns the current pending counts.
func (c *transferCounters) sample(now time.Time) (upSpeed, downSpeed float64, pendingUp, pendingDown int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastSample.IsZero() {
		elapsed := now.Sub(c.lastSample).Seconds()
		if elapsed > 0 {
			upSpeed = float64(c.uploadedBytes-c.lastUp) / elapsed
			downSpeed = float64(c.downloadedBytes-c.lastDown) / elapsed
		}
	}

	c.lastSample = now
	c.lastUp = c.uploadedBytes
	c.lastDown = c.downloadedBytes

	return upSpeed, downSpeed, c.pendingUploads, c.pendingDownloads
}

// pushStatus delivers a stats snapshot to the status callback, if any.
func (e *Engine) pushStatus() {
	e.mu.Lock()
	fn := e.statusCb
	db := e.db
	e.mu.Unlock()

	if fn == nil || db == nil {
		return
	}

	status := model.FolderIdle
	if folders, err := db.ListFolders(); err == nil {
		for _, folder := range folders {
			switch folder.Status {
			case model.FolderSyncing:
				status = model.FolderSyncing
			case model.FolderSyncError:
				if status != model.FolderSyncing {
					status = model.FolderSyncError
				}
			}
		}
	}

	up, down, pendingUp, pendingDown := e.stats.sample(e.clock.Now())

	fn(model.SyncStats{
		Status:           status,
		UploadSpeed:      up,
		DownloadSpeed:    down,
		PendingUploads:   pendingUp,
		PendingDownloads: pendingDown,
	})
}

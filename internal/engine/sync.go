package engine

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/foldsync/foldsync/internal/model"
	"github.com/foldsync/foldsync/internal/resolver"
	"github.com/foldsync/foldsync/internal/store"
	"github.com/foldsync/foldsync/internal/transport"
)

// UploadFile performs a single upload with the engine's retry policy.
func (e *Engine) UploadFile(ctx context.Context, localPath, remotePath string) error {
	err := e.withRetry(ctx, fmt.Sprintf("upload %s", localPath), func(ctx context.Context) error {
		return e.trans.UploadFile(ctx, localPath, remotePath)
	})
	if err != nil {
		e.reportError(err.Error())
	}
	return err
}

// DownloadFile performs a single download with the engine's retry policy.
func (e *Engine) DownloadFile(ctx context.Context, remotePath, localPath string) error {
	err := e.withRetry(ctx, fmt.Sprintf("download %s", remotePath), func(ctx context.Context) error {
		return e.trans.DownloadFile(ctx, remotePath, localPath)
	})
	if err != nil {
		e.reportError(err.Error())
	}
	return err
}

// DownloadFileWithProgress is DownloadFile with per-chunk progress
// updates delivered to fn.
func (e *Engine) DownloadFileWithProgress(ctx context.Context, remotePath, localPath string, fn func(transport.Progress)) error {
	err := e.withRetry(ctx, fmt.Sprintf("download %s", remotePath), func(ctx context.Context) error {
		return e.trans.DownloadFileWithProgress(ctx, remotePath, localPath, fn)
	})
	if err != nil {
		e.reportError(err.Error())
	}
	return err
}

// TriggerBidirectionalSync runs one full pass over a folder: local changes
// from the detector, remote changes from the transport, divergences
// through the resolver, and everything else uploaded or downloaded.
//
// The pass holds the folder's keyed lock for its duration, serializing it
// against pause/resume/remove on the same id. A failed transfer leaves the
// folder in SYNC_ERROR; the item is not requeued and is picked up by the
// next triggered pass.
func (e *Engine) TriggerBidirectionalSync(ctx context.Context, folderID string) error {
	db, err := e.requireDB()
	if err != nil {
		return err
	}

	st := e.state(folderID)
	if st == nil {
		return fmt.Errorf("sync folder %s: %w", folderID, store.ErrNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	folder, err := db.GetFolder(folderID)
	if err != nil {
		return err
	}
	if folder.Status == model.FolderPaused {
		return fmt.Errorf("sync folder %s is paused", folderID)
	}
	if !folder.Enabled {
		return fmt.Errorf("sync folder %s is disabled", folderID)
	}

	if err := db.UpdateFolderStatus(folderID, model.FolderSyncing); err != nil {
		return err
	}
	e.pushStatus()

	passErr := e.runPass(ctx, folder, st)

	status := model.FolderIdle
	if passErr != nil {
		status = model.FolderSyncError
		e.reportError(fmt.Sprintf("sync pass failed for %s: %v", folder.LocalPath, passErr))
	}
	if err := db.UpdateFolderStatus(folderID, status); err != nil {
		e.logger.Printf("Failed to record folder status: %v", err)
	}
	e.pushStatus()

	return passErr
}

// runPass executes the diff/resolve/transfer cycle for one folder.
func (e *Engine) runPass(ctx context.Context, folder *model.SyncFolder, st *folderState) error {
	db, err := e.requireDB()
	if err != nil {
		return err
	}

	baseline, err := db.ListFileMetadata(folder.ID)
	if err != nil {
		// Documented detector behavior: no baseline means everything is
		// reported as a creation. The pass still runs.
		e.logger.Printf("Baseline unavailable for %s, treating as first scan: %v", folder.ID, err)
		baseline = nil
	}

	local := make(map[string]model.DetectedChange)
	for change := range e.scanner.Changes(folder.LocalPath, baseline) {
		rel, err := filepath.Rel(folder.LocalPath, change.Path)
		if err != nil {
			continue
		}
		local[filepath.ToSlash(rel)] = change
	}

	remoteChanges, err := e.trans.GetChangesSince(ctx, st.checkpoint)
	if err != nil {
		return fmt.Errorf("failed to query remote changes: %w", err)
	}

	remote := make(map[string]model.RemoteChange)
	var watermark time.Time
	for _, rc := range remoteChanges {
		rel, ok := relFromRemote(folder, rc.Path)
		if !ok {
			continue
		}
		remote[rel] = rc
		if rc.ModifiedAt.After(watermark) {
			watermark = rc.ModifiedAt
		}
	}

	e.stats.addPending(countUploads(local, remote), countDownloads(local, remote))

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Divergences first: a path changed on both sides goes through the
	// conflict resolver and is logged either way.
	for _, rel := range sortedKeys(local) {
		change := local[rel]
		rc, diverged := remote[rel]
		if !diverged {
			continue
		}
		delete(remote, rel)
		delete(local, rel)

		if change.Kind == model.ChangeDeleted {
			// Deleted here, changed there: the remote copy wins by
			// default, treat it as a plain download.
			remote[rel] = rc
			continue
		}

		record(e.resolveDivergence(ctx, folder, rel, change, rc))
	}

	// Local-only changes move up.
	for _, rel := range sortedKeys(local) {
		change := local[rel]
		if ctx.Err() != nil {
			record(ctx.Err())
			break
		}
		record(e.applyLocalChange(ctx, folder, rel, change))
	}

	// Remote-only changes move down.
	for _, rel := range sortedKeys(remote) {
		if ctx.Err() != nil {
			record(ctx.Err())
			break
		}
		record(e.applyRemoteChange(ctx, folder, rel))
	}

	// Only advance the checkpoint on a clean pass so failed items are
	// seen again next time.
	if firstErr == nil && watermark.After(st.checkpoint) {
		st.checkpoint = watermark
	}

	return firstErr
}

// resolveDivergence logs a conflict row and runs it through the resolver
// with the default strategy. Resolution failures are reported immediately
// and never retried; the pending row stays queryable.
func (e *Engine) resolveDivergence(ctx context.Context, folder *model.SyncFolder, rel string, change model.DetectedChange, rc model.RemoteChange) error {
	db, err := e.requireDB()
	if err != nil {
		return err
	}

	localPath := localFor(folder, rel)
	remotePath := remoteFor(folder, rel)

	conflict, err := db.AddConflict(folder.ID, localPath, change.ModifiedAt, rc.ModifiedAt)
	if err != nil {
		return err
	}

	result, err := e.resolver.ResolveAuto(ctx, resolver.ConflictInfo{
		LocalPath:      localPath,
		RemotePath:     remotePath,
		LocalModified:  change.ModifiedAt,
		RemoteModified: rc.ModifiedAt,
	})
	if err != nil {
		e.reportError(fmt.Sprintf("conflict resolution failed for %s: %v", localPath, err))
		return nil // pending conflict row remains, pass continues
	}

	if err := db.ResolveConflict(conflict.ID, string(result.Outcome)); err != nil {
		e.logger.Printf("Failed to record resolution for %s: %v", conflict.ID, err)
	}

	return e.refreshMetadata(folder, rel)
}

// applyLocalChange pushes one local-only change to the remote side.
func (e *Engine) applyLocalChange(ctx context.Context, folder *model.SyncFolder, rel string, change model.DetectedChange) error {
	db, err := e.requireDB()
	if err != nil {
		return err
	}

	localPath := localFor(folder, rel)
	remotePath := remoteFor(folder, rel)

	if change.Kind == model.ChangeDeleted {
		if !change.IsDirectory {
			if err := e.withRetry(ctx, fmt.Sprintf("delete %s", remotePath), func(ctx context.Context) error {
				return e.trans.DeleteFile(ctx, remotePath)
			}); err != nil {
				return err
			}
		}
		return db.DeleteFileMetadata(localPath)
	}

	if change.IsDirectory {
		// Directories carry no content; record them for the baseline only.
		return db.UpsertFileMetadata(&model.FileMetadata{
			Path:        localPath,
			FolderID:    folder.ID,
			ModifiedAt:  change.ModifiedAt,
			IsDirectory: true,
			SyncStatus:  "synced",
		})
	}

	if err := e.withRetry(ctx, fmt.Sprintf("upload %s", localPath), func(ctx context.Context) error {
		return e.trans.UploadFile(ctx, localPath, remotePath)
	}); err != nil {
		return err
	}
	e.stats.uploaded(change.Size)

	return db.UpsertFileMetadata(&model.FileMetadata{
		Path:       localPath,
		FolderID:   folder.ID,
		Size:       change.Size,
		ModifiedAt: change.ModifiedAt,
		Checksum:   change.Checksum,
		SyncStatus: "synced",
	})
}

// applyRemoteChange pulls one remote-only change down.
func (e *Engine) applyRemoteChange(ctx context.Context, folder *model.SyncFolder, rel string) error {
	localPath := localFor(folder, rel)
	remotePath := remoteFor(folder, rel)

	if err := e.withRetry(ctx, fmt.Sprintf("download %s", remotePath), func(ctx context.Context) error {
		return e.trans.DownloadFile(ctx, remotePath, localPath)
	}); err != nil {
		return err
	}

	// The pending count drops even when the byte count is unknown.
	var size int64
	if info, err := e.fs.Stat(localPath); err == nil {
		size = info.Size()
	}
	e.stats.downloaded(size)

	return e.refreshMetadata(folder, rel)
}

// refreshMetadata re-observes a file on disk and upserts its baseline row.
func (e *Engine) refreshMetadata(folder *model.SyncFolder, rel string) error {
	db, err := e.requireDB()
	if err != nil {
		return err
	}

	localPath := localFor(folder, rel)
	info, err := e.fs.Stat(localPath)
	if err != nil {
		// Resolution may have legitimately removed the local copy.
		return db.DeleteFileMetadata(localPath)
	}

	meta := &model.FileMetadata{
		Path:        localPath,
		FolderID:    folder.ID,
		Size:        info.Size(),
		ModifiedAt:  info.ModTime(),
		IsDirectory: info.IsDir(),
		SyncStatus:  "synced",
	}
	if !info.IsDir() {
		if sum, err := e.scanner.Checksum(localPath); err == nil {
			meta.Checksum = sum
		}
	}

	return db.UpsertFileMetadata(meta)
}

// localFor maps a slash-separated relative path into the local tree.
func localFor(folder *model.SyncFolder, rel string) string {
	return filepath.Join(folder.LocalPath, filepath.FromSlash(rel))
}

// remoteFor maps a slash-separated relative path onto the remote prefix.
func remoteFor(folder *model.SyncFolder, rel string) string {
	return path.Join(folder.RemotePath, rel)
}

// relFromRemote strips the folder's remote prefix from a remote change
// path. Returns false for changes outside this folder. Both sides are
// normalized first: transports emit bare object keys while configured
// remote paths may carry leading or trailing slashes.
func relFromRemote(folder *model.SyncFolder, remotePath string) (string, bool) {
	prefix := strings.Trim(folder.RemotePath, "/")
	p := strings.TrimPrefix(remotePath, "/")
	if !strings.HasPrefix(p, prefix+"/") {
		return "", false
	}
	return strings.TrimPrefix(p, prefix+"/"), true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func countUploads(local map[string]model.DetectedChange, remote map[string]model.RemoteChange) int {
	n := 0
	for rel, change := range local {
		if _, diverged := remote[rel]; diverged {
			continue
		}
		if change.Kind != model.ChangeDeleted && !change.IsDirectory {
			n++
		}
	}
	return n
}

func countDownloads(local map[string]model.DetectedChange, remote map[string]model.RemoteChange) int {
	n := 0
	for rel := range remote {
		if _, diverged := local[rel]; diverged {
			continue
		}
		n++
	}
	return n
}

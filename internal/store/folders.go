package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foldsync/foldsync/internal/model"
)

// AddFolder persists a new sync folder and returns it with a generated id.
func (s *Store) AddFolder(localPath, remotePath string) (*model.SyncFolder, error) {
	return s.AddFolderContext(context.Background(), localPath, remotePath)
}

// AddFolderContext persists a new sync folder with context support.
//
// The id is a random UUID, so folders created by independent installs never
// collide when their databases are merged by support tooling.
func (s *Store) AddFolderContext(ctx context.Context, localPath, remotePath string) (*model.SyncFolder, error) {
	if localPath == "" {
		return nil, fmt.Errorf("local path is required")
	}
	if remotePath == "" {
		return nil, fmt.Errorf("remote path is required")
	}

	folder := &model.SyncFolder{
		ID:         uuid.NewString(),
		LocalPath:  localPath,
		RemotePath: remotePath,
		Status:     model.FolderIdle,
		Enabled:    true,
	}

	query := `
	INSERT INTO sync_folders (id, local_path, remote_path, status, enabled, size, created_at)
	VALUES (?, ?, ?, ?, ?, 0, ?)
	`

	_, err := s.conn.ExecContext(ctx, query,
		folder.ID,
		folder.LocalPath,
		folder.RemotePath,
		folder.Status.String(),
		boolToInt(folder.Enabled),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sync folder: %w", err)
	}

	return folder, nil
}

// GetFolder retrieves a single sync folder by id.
// Returns ErrNotFound if no such folder exists.
func (s *Store) GetFolder(id string) (*model.SyncFolder, error) {
	return s.GetFolderContext(context.Background(), id)
}

// GetFolderContext retrieves a single sync folder with context support.
func (s *Store) GetFolderContext(ctx context.Context, id string) (*model.SyncFolder, error) {
	query := `
	SELECT id, local_path, remote_path, status, enabled, size
	FROM sync_folders
	WHERE id = ?
	`

	folder, err := scanFolder(s.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync folder %s: %w", id, err)
	}
	return folder, nil
}

// ListFolders returns all configured sync folders, oldest first.
func (s *Store) ListFolders() ([]*model.SyncFolder, error) {
	return s.ListFoldersContext(context.Background())
}

// ListFoldersContext returns all sync folders with context support.
func (s *Store) ListFoldersContext(ctx context.Context) ([]*model.SyncFolder, error) {
	query := `
	SELECT id, local_path, remote_path, status, enabled, size
	FROM sync_folders
	ORDER BY created_at ASC
	`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync folders: %w", err)
	}
	defer rows.Close()

	var folders []*model.SyncFolder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync folder: %w", err)
		}
		folders = append(folders, folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync folders: %w", err)
	}

	return folders, nil
}

// UpdateFolderStatus records a folder's lifecycle transition.
// Returns ErrNotFound if the folder does not exist.
func (s *Store) UpdateFolderStatus(id string, status model.FolderStatus) error {
	return s.UpdateFolderStatusContext(context.Background(), id, status)
}

// UpdateFolderStatusContext records a status transition with context support.
func (s *Store) UpdateFolderStatusContext(ctx context.Context, id string, status model.FolderStatus) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE sync_folders SET status = ? WHERE id = ?`, status.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update folder status: %w", err)
	}
	return requireRow(res, id)
}

// UpdateFolderSize records the recomputed local-tree size for a folder.
func (s *Store) UpdateFolderSize(id string, size int64) error {
	return s.UpdateFolderSizeContext(context.Background(), id, size)
}

// UpdateFolderSizeContext records the folder size with context support.
func (s *Store) UpdateFolderSizeContext(ctx context.Context, id string, size int64) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE sync_folders SET size = ? WHERE id = ?`, size, id)
	if err != nil {
		return fmt.Errorf("failed to update folder size: %w", err)
	}
	return requireRow(res, id)
}

// SetFolderEnabled toggles whether the scheduler considers the folder.
func (s *Store) SetFolderEnabled(id string, enabled bool) error {
	return s.SetFolderEnabledContext(context.Background(), id, enabled)
}

// SetFolderEnabledContext toggles the enabled flag with context support.
func (s *Store) SetFolderEnabledContext(ctx context.Context, id string, enabled bool) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE sync_folders SET enabled = ? WHERE id = ?`, boolToInt(enabled), id)
	if err != nil {
		return fmt.Errorf("failed to update folder enabled flag: %w", err)
	}
	return requireRow(res, id)
}

// RemoveFolder deletes a sync folder.
//
// File metadata and conflict rows cascade. Returns ErrNotFound if the
// folder does not exist, so a double remove surfaces as a usage error.
func (s *Store) RemoveFolder(id string) error {
	return s.RemoveFolderContext(context.Background(), id)
}

// RemoveFolderContext deletes a sync folder with context support.
func (s *Store) RemoveFolderContext(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM sync_folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sync folder %s: %w", id, err)
	}
	return requireRow(res, id)
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFolder(row rowScanner) (*model.SyncFolder, error) {
	var folder model.SyncFolder
	var status string
	var enabled int

	err := row.Scan(
		&folder.ID,
		&folder.LocalPath,
		&folder.RemotePath,
		&status,
		&enabled,
		&folder.Size,
	)
	if err != nil {
		return nil, err
	}

	folder.Status = model.ParseFolderStatus(status)
	folder.Enabled = enabled != 0
	return &folder, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sync folder %s: %w", id, ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/foldsync/foldsync/internal/model"
)

// UpsertFileMetadata inserts or updates the metadata row for a path.
//
// Called after every successful observation of a file, it keeps the diff
// baseline current. The path is unique across all folders.
func (s *Store) UpsertFileMetadata(meta *model.FileMetadata) error {
	return s.UpsertFileMetadataContext(context.Background(), meta)
}

// UpsertFileMetadataContext upserts file metadata with context support.
func (s *Store) UpsertFileMetadataContext(ctx context.Context, meta *model.FileMetadata) error {
	if meta.Path == "" {
		return fmt.Errorf("file metadata path is required")
	}
	if meta.FolderID == "" {
		return fmt.Errorf("file metadata folder id is required")
	}

	query := `
	INSERT INTO file_metadata (path, folder_id, size, modified_at, checksum, is_directory, sync_status)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		folder_id = excluded.folder_id,
		size = excluded.size,
		modified_at = excluded.modified_at,
		checksum = excluded.checksum,
		is_directory = excluded.is_directory,
		sync_status = excluded.sync_status
	`

	_, err := s.conn.ExecContext(ctx, query,
		meta.Path,
		meta.FolderID,
		meta.Size,
		meta.ModifiedAt.UTC().Format(time.RFC3339Nano),
		meta.Checksum,
		boolToInt(meta.IsDirectory),
		meta.SyncStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert file metadata for %s: %w", meta.Path, err)
	}

	return nil
}

// GetFileMetadata retrieves the metadata row for a path.
// Returns ErrNotFound if the path has never been observed.
func (s *Store) GetFileMetadata(path string) (*model.FileMetadata, error) {
	return s.GetFileMetadataContext(context.Background(), path)
}

// GetFileMetadataContext retrieves file metadata with context support.
func (s *Store) GetFileMetadataContext(ctx context.Context, path string) (*model.FileMetadata, error) {
	query := `
	SELECT path, folder_id, size, modified_at, checksum, is_directory, sync_status
	FROM file_metadata
	WHERE path = ?
	`

	meta, err := scanFileMetadata(s.conn.QueryRowContext(ctx, query, path))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file metadata for %s: %w", path, err)
	}
	return meta, nil
}

// ListFileMetadata returns all metadata rows belonging to a folder,
// keyed by path. This is the baseline handed to the change detector.
func (s *Store) ListFileMetadata(folderID string) (map[string]model.FileMetadata, error) {
	return s.ListFileMetadataContext(context.Background(), folderID)
}

// ListFileMetadataContext returns a folder's baseline with context support.
func (s *Store) ListFileMetadataContext(ctx context.Context, folderID string) (map[string]model.FileMetadata, error) {
	query := `
	SELECT path, folder_id, size, modified_at, checksum, is_directory, sync_status
	FROM file_metadata
	WHERE folder_id = ?
	`

	rows, err := s.conn.QueryContext(ctx, query, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list file metadata: %w", err)
	}
	defer rows.Close()

	baseline := make(map[string]model.FileMetadata)
	for rows.Next() {
		meta, err := scanFileMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file metadata: %w", err)
		}
		baseline[meta.Path] = *meta
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file metadata: %w", err)
	}

	return baseline, nil
}

// DeleteFileMetadata removes the metadata row for a path.
// Returns nil if the row doesn't exist (idempotent).
func (s *Store) DeleteFileMetadata(path string) error {
	return s.DeleteFileMetadataContext(context.Background(), path)
}

// DeleteFileMetadataContext removes file metadata with context support.
func (s *Store) DeleteFileMetadataContext(ctx context.Context, path string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM file_metadata WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to delete file metadata for %s: %w", path, err)
	}
	return nil
}

func scanFileMetadata(row rowScanner) (*model.FileMetadata, error) {
	var meta model.FileMetadata
	var modifiedAt string
	var isDirectory int

	err := row.Scan(
		&meta.Path,
		&meta.FolderID,
		&meta.Size,
		&modifiedAt,
		&meta.Checksum,
		&isDirectory,
		&meta.SyncStatus,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339Nano, modifiedAt); err == nil {
		meta.ModifiedAt = t
	}
	meta.IsDirectory = isDirectory != 0

	return &meta, nil
}

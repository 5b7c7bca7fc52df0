package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foldsync/foldsync/internal/model"
)

// AddConflict appends a conflict row for a detected divergence and returns
// it with a generated id. The resolution stays empty until resolved.
func (s *Store) AddConflict(folderID, path string, localModified, remoteModified time.Time) (*model.Conflict, error) {
	return s.AddConflictContext(context.Background(), folderID, path, localModified, remoteModified)
}

// AddConflictContext appends a conflict row with context support.
func (s *Store) AddConflictContext(ctx context.Context, folderID, path string, localModified, remoteModified time.Time) (*model.Conflict, error) {
	if folderID == "" {
		return nil, fmt.Errorf("conflict folder id is required")
	}
	if path == "" {
		return nil, fmt.Errorf("conflict path is required")
	}

	conflict := &model.Conflict{
		ID:             uuid.NewString(),
		Path:           path,
		FolderID:       folderID,
		LocalModified:  localModified,
		RemoteModified: remoteModified,
	}

	query := `
	INSERT INTO conflicts (id, path, folder_id, local_modified, remote_modified, resolution, resolved_at, detected_at)
	VALUES (?, ?, ?, ?, ?, '', NULL, ?)
	`

	_, err := s.conn.ExecContext(ctx, query,
		conflict.ID,
		conflict.Path,
		conflict.FolderID,
		localModified.UTC().Format(time.RFC3339Nano),
		remoteModified.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conflict for %s: %w", path, err)
	}

	return conflict, nil
}

// ResolveConflict records the terminal resolution for a conflict.
//
// A conflict resolves exactly once; resolving an already-resolved or
// missing conflict returns ErrNotFound.
func (s *Store) ResolveConflict(id, resolution string) error {
	return s.ResolveConflictContext(context.Background(), id, resolution)
}

// ResolveConflictContext records a resolution with context support.
func (s *Store) ResolveConflictContext(ctx context.Context, id, resolution string) error {
	if resolution == "" {
		return fmt.Errorf("resolution is required")
	}

	now := time.Now().UTC()
	res, err := s.conn.ExecContext(ctx,
		`UPDATE conflicts SET resolution = ?, resolved_at = ? WHERE id = ? AND resolution = ''`,
		resolution,
		timeToNullString(&now),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("conflict %s: %w", id, ErrNotFound)
	}
	return nil
}

// PendingConflicts returns all conflicts that still await a resolution.
func (s *Store) PendingConflicts() ([]*model.Conflict, error) {
	return s.queryConflicts(context.Background(),
		`SELECT id, path, folder_id, local_modified, remote_modified, resolution, resolved_at
		 FROM conflicts WHERE resolution = '' ORDER BY detected_at ASC`)
}

// ListConflicts returns every logged conflict for a folder, oldest first.
func (s *Store) ListConflicts(folderID string) ([]*model.Conflict, error) {
	return s.queryConflicts(context.Background(),
		`SELECT id, path, folder_id, local_modified, remote_modified, resolution, resolved_at
		 FROM conflicts WHERE folder_id = ? ORDER BY detected_at ASC`, folderID)
}

func (s *Store) queryConflicts(ctx context.Context, query string, args ...interface{}) ([]*model.Conflict, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []*model.Conflict
	for rows.Next() {
		var c model.Conflict
		var localModified, remoteModified string
		var resolvedAt sql.NullString

		err := rows.Scan(
			&c.ID,
			&c.Path,
			&c.FolderID,
			&localModified,
			&remoteModified,
			&c.Resolution,
			&resolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}

		if t, err := time.Parse(time.RFC3339Nano, localModified); err == nil {
			c.LocalModified = t
		}
		if t, err := time.Parse(time.RFC3339Nano, remoteModified); err == nil {
			c.RemoteModified = t
		}
		c.ResolvedAt = nullStringToTime(resolvedAt)

		conflicts = append(conflicts, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conflicts: %w", err)
	}

	return conflicts, nil
}

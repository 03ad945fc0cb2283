package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lzjever/mbos-devbox/internal/core"
)

// ProjectStore keeps workspace files in devbox.files, one row per file keyed
// by its storage key.
type ProjectStore struct {
	pool *pgxpool.Pool
}

func NewProjectStore(pool *pgxpool.Pool) *ProjectStore {
	return &ProjectStore{pool: pool}
}

func (s *ProjectStore) LoadWorkspace(ctx context.Context, workspaceID string) ([]core.FileRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT file_key, content FROM devbox.files WHERE workspace_id = $1 ORDER BY file_key`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var records []core.FileRecord
	for rows.Next() {
		var (
			key     string
			content []byte
		)
		if err := rows.Scan(&key, &content); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		id, ok := core.IDFromStorageKey(workspaceID, key)
		if !ok {
			continue
		}
		records = append(records, core.FileRecord{ID: id, Content: content})
	}
	return records, rows.Err()
}

func (s *ProjectStore) CreateFile(ctx context.Context, workspaceID, id string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO devbox.files (workspace_id, file_key) VALUES ($1, $2)
		 ON CONFLICT (workspace_id, file_key) DO NOTHING`,
		workspaceID, core.StorageKey(workspaceID, id))
	if err != nil {
		return fmt.Errorf("create file %s: %w", id, err)
	}
	return nil
}

func (s *ProjectStore) DeleteFile(ctx context.Context, workspaceID, id string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM devbox.files WHERE workspace_id = $1 AND file_key = $2`,
		workspaceID, core.StorageKey(workspaceID, id))
	if err != nil {
		return fmt.Errorf("delete file %s: %w", id, err)
	}
	return nil
}

func (s *ProjectStore) RenameFile(ctx context.Context, workspaceID, oldID, newID string, content []byte) error {
	if content == nil {
		content = []byte{}
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM devbox.files WHERE workspace_id = $1 AND file_key = $2`,
			workspaceID, core.StorageKey(workspaceID, oldID)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, upsertFile, workspaceID, core.StorageKey(workspaceID, newID), content)
		return err
	})
	if err != nil {
		return fmt.Errorf("rename file %s -> %s: %w", oldID, newID, err)
	}
	return nil
}

func (s *ProjectStore) SaveFile(ctx context.Context, workspaceID, id string, content []byte) error {
	if content == nil {
		content = []byte{}
	}
	if _, err := s.pool.Exec(ctx, upsertFile, workspaceID, core.StorageKey(workspaceID, id), content); err != nil {
		return fmt.Errorf("save file %s: %w", id, err)
	}
	return nil
}

const upsertFile = `INSERT INTO devbox.files (workspace_id, file_key, content, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (workspace_id, file_key) DO UPDATE SET content = EXCLUDED.content, updated_at = now()`

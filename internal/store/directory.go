package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lzjever/mbos-devbox/internal/auth"
	"github.com/lzjever/mbos-devbox/internal/core"
)

// Directory resolves memberships from devbox.workspaces and
// devbox.workspace_shares.
type Directory struct {
	pool *pgxpool.Pool
}

var _ auth.Directory = (*Directory)(nil)

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) ResolveUser(ctx context.Context, userID string) (auth.Membership, error) {
	var id string
	err := d.pool.QueryRow(ctx, `SELECT id FROM devbox.users WHERE id = $1`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Membership{}, auth.ErrUnknownUser
	}
	if err != nil {
		return auth.Membership{}, fmt.Errorf("get user: %w", err)
	}

	owned, err := d.ids(ctx, `SELECT id FROM devbox.workspaces WHERE owner_id = $1 ORDER BY id`, userID)
	if err != nil {
		return auth.Membership{}, fmt.Errorf("list owned workspaces: %w", err)
	}
	shared, err := d.ids(ctx, `SELECT workspace_id FROM devbox.workspace_shares WHERE user_id = $1 ORDER BY workspace_id`, userID)
	if err != nil {
		return auth.Membership{}, fmt.Errorf("list shared workspaces: %w", err)
	}
	return auth.Membership{OwnedWorkspaces: owned, SharedWorkspaces: shared}, nil
}

func (d *Directory) ids(ctx context.Context, query, userID string) ([]string, error) {
	rows, err := d.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (d *Directory) CreateUser(ctx context.Context, userID string) error {
	_, err := d.pool.Exec(ctx, `INSERT INTO devbox.users (id) VALUES ($1) ON CONFLICT DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (d *Directory) CreateWorkspace(ctx context.Context, workspaceID, ownerID string, visibility core.Visibility) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO devbox.workspaces (id, owner_id, visibility) VALUES ($1, $2, $3)`,
		workspaceID, ownerID, string(visibility))
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	return nil
}

func (d *Directory) ShareWorkspace(ctx context.Context, workspaceID, userID string) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO devbox.workspace_shares (workspace_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		workspaceID, userID)
	if err != nil {
		return fmt.Errorf("share workspace: %w", err)
	}
	return nil
}

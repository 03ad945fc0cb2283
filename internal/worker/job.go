package worker

import (
	"context"
	"fmt"
)

// Store is the write side of the persistent project store.
type Store interface {
	CreateFile(ctx context.Context, workspaceID, id string) error
	DeleteFile(ctx context.Context, workspaceID, id string) error
	RenameFile(ctx context.Context, workspaceID, oldID, newID string, content []byte) error
	SaveFile(ctx context.Context, workspaceID, id string, content []byte) error
}

type JobKind string

const (
	JobCreate JobKind = "create"
	JobDelete JobKind = "delete"
	JobRename JobKind = "rename"
	JobSave   JobKind = "save"
)

// Job is one store write. Content is owned by the job once enqueued.
type Job struct {
	Kind        JobKind
	WorkspaceID string
	ID          string
	NewID       string
	Content     []byte

	// flush barrier; never sent to the store
	barrier chan struct{}
}

func (j Job) apply(ctx context.Context, s Store) error {
	switch j.Kind {
	case JobCreate:
		return s.CreateFile(ctx, j.WorkspaceID, j.ID)
	case JobDelete:
		return s.DeleteFile(ctx, j.WorkspaceID, j.ID)
	case JobRename:
		return s.RenameFile(ctx, j.WorkspaceID, j.ID, j.NewID, j.Content)
	case JobSave:
		return s.SaveFile(ctx, j.WorkspaceID, j.ID, j.Content)
	default:
		return fmt.Errorf("unknown job kind: %s", j.Kind)
	}
}

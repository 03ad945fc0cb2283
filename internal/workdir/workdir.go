// Package workdir maintains the on-disk mirror of each workspace: every file
// id maps to a relative path under <root>/projects/<workspaceID>.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/core"
)

// Dir is the mirrored filesystem root shared by all workspaces of a process.
type Dir struct {
	root string
	log  *zap.Logger
}

func New(root string, log *zap.Logger) (*Dir, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, fmt.Errorf("work root is empty")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve work root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	return &Dir{root: abs, log: log}, nil
}

// Root returns the absolute root directory.
func (d *Dir) Root() string {
	return d.root
}

// WorkspacePath returns the directory holding workspaceID's files. Terminals
// start here.
func (d *Dir) WorkspacePath(workspaceID string) string {
	return filepath.Join(d.root, "projects", workspaceID)
}

// Path returns the absolute location of file id.
func (d *Dir) Path(workspaceID, id string) string {
	return filepath.Join(d.WorkspacePath(workspaceID), filepath.FromSlash(core.NormalizeID(id)))
}

// Init creates the workspace directory if needed.
func (d *Dir) Init(workspaceID string) (string, error) {
	wsRoot := d.WorkspacePath(workspaceID)
	if err := os.MkdirAll(wsRoot, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", wsRoot, err)
	}
	return wsRoot, nil
}

// Materialize writes every record to disk and returns how many were written.
func (d *Dir) Materialize(workspaceID string, files []core.FileRecord) (int, error) {
	start := time.Now()
	if _, err := d.Init(workspaceID); err != nil {
		return 0, err
	}
	for i, f := range files {
		if err := d.WriteFile(workspaceID, f.ID, f.Content); err != nil {
			return i, err
		}
	}
	d.log.Info("workdir: materialized",
		zap.String("workspace_id", workspaceID),
		zap.Int("files", len(files)),
		zap.Duration("duration", time.Since(start)),
	)
	return len(files), nil
}

// WriteFile replaces the content of id. The write goes to a temp file that
// is renamed over the target so readers never observe a partial file.
func (d *Dir) WriteFile(workspaceID, id string, content []byte) error {
	target := d.Path(workspaceID, id)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("mkdir parent of %s: %w", id, err)
	}

	tmp := target + ".devbox-tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", id, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", id, err)
	}
	return nil
}

// Mkdir creates folder id and any missing parents.
func (d *Dir) Mkdir(workspaceID, id string) error {
	if err := os.MkdirAll(d.Path(workspaceID, id), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", id, err)
	}
	return nil
}

// Rename moves oldID to newID, creating the destination folder on demand.
func (d *Dir) Rename(workspaceID, oldID, newID string) error {
	src := d.Path(workspaceID, oldID)
	dst := d.Path(workspaceID, newID)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir parent of %s: %w", newID, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", oldID, newID, err)
	}
	return nil
}

// Remove deletes id, recursively for folders. Removing a missing path is not
// an error.
func (d *Dir) Remove(workspaceID, id string) error {
	target := d.Path(workspaceID, id)
	if target == d.WorkspacePath(workspaceID) {
		return fmt.Errorf("refusing to remove workspace root")
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	return nil
}

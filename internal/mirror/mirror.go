// Package mirror holds the authoritative in-memory copy of one workspace.
// A single goroutine owns the tree and file contents; every operation is a
// request to that goroutine, so operations on one workspace never interleave.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/core"
	"github.com/lzjever/mbos-devbox/internal/observability"
	"github.com/lzjever/mbos-devbox/internal/workdir"
	"github.com/lzjever/mbos-devbox/internal/worker"
)

var (
	// ErrPayloadTooLarge is returned when a save exceeds the per-file limit.
	ErrPayloadTooLarge = core.NewAppError(core.ErrCapacityExceeded, "payload too large")
	// ErrWorkspaceFull is returned when a file is created past the workspace ceiling.
	ErrWorkspaceFull = core.NewAppError(core.ErrCapacityExceeded, "workspace size limit reached")
	// ErrClosed is returned by operations on a stopped mirror.
	ErrClosed = errors.New("mirror closed")
)

const (
	DefaultMaxFileBytes      = 5 << 20
	DefaultMaxWorkspaceBytes = 200 << 20
)

// Store is the persistent project store.
type Store interface {
	LoadWorkspace(ctx context.Context, workspaceID string) ([]core.FileRecord, error)
	worker.Store
}

type Config struct {
	MaxFileBytes      int   `envconfig:"DEVBOX_MAX_FILE_BYTES" default:"5242880"`
	MaxWorkspaceBytes int64 `envconfig:"DEVBOX_MAX_WORKSPACE_BYTES" default:"209715200"`
	Persist           worker.Config
}

// FileLimit is the effective per-file byte limit.
func (c Config) FileLimit() int {
	return c.withDefaults().MaxFileBytes
}

func (c Config) withDefaults() Config {
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = DefaultMaxFileBytes
	}
	if c.MaxWorkspaceBytes <= 0 {
		c.MaxWorkspaceBytes = DefaultMaxWorkspaceBytes
	}
	return c
}

type request struct {
	fn   func()
	done chan struct{}
}

type Mirror struct {
	workspaceID string
	cfg         Config
	dir         *workdir.Dir
	persist     *worker.Persister
	log         *zap.Logger

	reqs    chan request
	quit    chan struct{}
	stopped chan struct{}
	cancel  context.CancelFunc
	once    sync.Once

	// owned by the run goroutine
	files   map[string][]byte
	folders map[string]struct{}
	size    int64
}

// Open loads workspaceID from store, materialises it under dir and starts
// the mirror goroutine together with its store writer.
func Open(ctx context.Context, workspaceID string, store Store, dir *workdir.Dir, cfg Config, log *zap.Logger) (*Mirror, error) {
	start := time.Now()
	cfg = cfg.withDefaults()
	log = observability.WorkspaceLogger(log, workspaceID)

	records, err := store.LoadWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("load workspace %s: %w", workspaceID, err)
	}

	m := &Mirror{
		workspaceID: workspaceID,
		cfg:         cfg,
		dir:         dir,
		log:         log,
		reqs:        make(chan request),
		quit:        make(chan struct{}),
		stopped:     make(chan struct{}),
		files:       make(map[string][]byte, len(records)),
		folders:     make(map[string]struct{}),
	}
	for i := range records {
		records[i].ID = core.NormalizeID(records[i].ID)
	}
	// ancestors sort before their descendants
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	kept := records[:0]
	for _, r := range records {
		if !m.placeable(r.ID) {
			log.Warn("mirror: skipping stored file with unusable id", zap.String("id", r.ID))
			continue
		}
		m.addParents(r.ID)
		m.size += int64(len(r.Content))
		m.files[r.ID] = r.Content
		kept = append(kept, r)
	}

	if _, err := dir.Materialize(workspaceID, kept); err != nil {
		return nil, fmt.Errorf("materialize workspace %s: %w", workspaceID, err)
	}
	for folder := range m.folders {
		if err := dir.Mkdir(workspaceID, folder); err != nil {
			return nil, err
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.persist = worker.NewPersister(store, cfg.Persist, log)
	go m.persist.Run(runCtx)
	go m.run()

	observability.LoadedWorkspaces.Inc()
	observability.WorkspaceLoadDuration.Observe(time.Since(start).Seconds())
	log.Info("mirror: loaded",
		zap.Int("files", len(m.files)),
		zap.Int64("bytes", m.size),
		zap.Duration("duration", time.Since(start)),
	)
	return m, nil
}

func (m *Mirror) run() {
	defer close(m.stopped)
	for {
		select {
		case req := <-m.reqs:
			req.fn()
			close(req.done)
		case <-m.quit:
			return
		}
	}
}

func (m *Mirror) exec(ctx context.Context, fn func()) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case m.reqs <- req:
	case <-m.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.done
	return nil
}

// Flush waits until every store write issued so far has been applied.
func (m *Mirror) Flush(ctx context.Context) error {
	return m.persist.Flush(ctx)
}

// Close stops the mirror and waits for queued store writes to drain. If ctx
// expires first the remaining writes are abandoned.
func (m *Mirror) Close(ctx context.Context) error {
	m.once.Do(func() {
		close(m.quit)
		<-m.stopped
		observability.LoadedWorkspaces.Dec()
		m.persist.Close()
	})
	defer m.cancel()
	select {
	case <-m.persist.Done():
		return nil
	case <-ctx.Done():
		m.log.Warn("mirror: closed before store writes drained", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

func (m *Mirror) GetFile(ctx context.Context, id string) ([]byte, bool, error) {
	var (
		content []byte
		ok      bool
	)
	err := m.exec(ctx, func() {
		var c []byte
		c, ok = m.files[core.NormalizeID(id)]
		if ok {
			content = append([]byte{}, c...)
		}
	})
	return content, ok, err
}

// ListFolder returns the ids of every file below folder, sorted.
func (m *Mirror) ListFolder(ctx context.Context, folder string) ([]string, error) {
	var ids []string
	err := m.exec(ctx, func() {
		ids = m.filesWithin(core.NormalizeID(folder))
	})
	return ids, err
}

// CreateFile creates an empty file /<name>. It reports false when the id is
// already taken and ErrWorkspaceFull when the workspace is over its ceiling.
func (m *Mirror) CreateFile(ctx context.Context, name string) (bool, error) {
	var (
		created bool
		opErr   error
	)
	err := m.exec(ctx, func() {
		id := core.NormalizeID(name)
		if m.size > m.cfg.MaxWorkspaceBytes {
			opErr = fmt.Errorf("create %s (%d bytes used): %w", id, m.size, ErrWorkspaceFull)
			return
		}
		if !m.placeable(id) {
			return
		}
		m.addParents(id)
		m.files[id] = []byte{}
		m.diskErr("write", id, m.dir.WriteFile(m.workspaceID, id, nil))
		m.persist.Enqueue(worker.Job{Kind: worker.JobCreate, WorkspaceID: m.workspaceID, ID: id})
		created = true
	})
	if err != nil {
		return false, err
	}
	return created, opErr
}

// CreateFolder creates folder /<name>. Folders exist only in the tree and on
// disk; the store infers them from file ids.
func (m *Mirror) CreateFolder(ctx context.Context, name string) (bool, error) {
	var created bool
	err := m.exec(ctx, func() {
		id := core.NormalizeID(name)
		if !m.placeable(id) {
			return
		}
		m.addParents(id)
		m.folders[id] = struct{}{}
		m.diskErr("mkdir", id, m.dir.Mkdir(m.workspaceID, id))
		created = true
	})
	return created, err
}

// RenameFile gives file id a new name inside the same folder.
func (m *Mirror) RenameFile(ctx context.Context, id, newName string) (bool, error) {
	var renamed bool
	err := m.exec(ctx, func() {
		id = core.NormalizeID(id)
		if !validName(newName) {
			return
		}
		renamed = m.move(id, core.JoinID(core.ParentID(id), newName))
	})
	return renamed, err
}

// MoveFile moves file id into folder and returns the resulting tree. Unknown
// ids, unknown folders and name clashes leave the tree unchanged.
func (m *Mirror) MoveFile(ctx context.Context, id, folder string) ([]*core.FileNode, error) {
	var tree []*core.FileNode
	err := m.exec(ctx, func() {
		id, folder = core.NormalizeID(id), core.NormalizeID(folder)
		if _, ok := m.folders[folder]; ok || folder == "/" {
			m.move(id, core.JoinID(folder, core.BaseName(id)))
		}
		tree = m.tree()
	})
	return tree, err
}

func (m *Mirror) move(oldID, newID string) bool {
	content, ok := m.files[oldID]
	if !ok || oldID == newID || !m.placeable(newID) {
		return false
	}
	delete(m.files, oldID)
	m.files[newID] = content
	m.diskErr("rename", oldID, m.dir.Rename(m.workspaceID, oldID, newID))
	m.persist.Enqueue(worker.Job{
		Kind:        worker.JobRename,
		WorkspaceID: m.workspaceID,
		ID:          oldID,
		NewID:       newID,
		Content:     content,
	})
	return true
}

// DeleteFile removes file id and returns the resulting tree.
func (m *Mirror) DeleteFile(ctx context.Context, id string) ([]*core.FileNode, error) {
	var tree []*core.FileNode
	err := m.exec(ctx, func() {
		id = core.NormalizeID(id)
		if _, ok := m.files[id]; ok {
			m.removeFile(id)
			m.diskErr("remove", id, m.dir.Remove(m.workspaceID, id))
		}
		tree = m.tree()
	})
	return tree, err
}

// DeleteFolder removes folder id with everything below it and returns the
// resulting tree. The workspace root cannot be deleted.
func (m *Mirror) DeleteFolder(ctx context.Context, id string) ([]*core.FileNode, error) {
	var tree []*core.FileNode
	err := m.exec(ctx, func() {
		id = core.NormalizeID(id)
		if _, ok := m.folders[id]; ok {
			for _, fileID := range m.filesWithin(id) {
				m.removeFile(fileID)
			}
			for folder := range m.folders {
				if core.IsWithin(folder, id) {
					delete(m.folders, folder)
				}
			}
			m.diskErr("remove", id, m.dir.Remove(m.workspaceID, id))
		}
		tree = m.tree()
	})
	return tree, err
}

func (m *Mirror) removeFile(id string) {
	m.size -= int64(len(m.files[id]))
	delete(m.files, id)
	m.persist.Enqueue(worker.Job{Kind: worker.JobDelete, WorkspaceID: m.workspaceID, ID: id})
}

// SaveFile replaces the content of id. Saving an unknown id does nothing and
// reports false.
func (m *Mirror) SaveFile(ctx context.Context, id string, content []byte) (bool, error) {
	if len(content) > m.cfg.MaxFileBytes {
		return false, fmt.Errorf("save %s (%d bytes, max %d): %w", id, len(content), m.cfg.MaxFileBytes, ErrPayloadTooLarge)
	}
	content = append([]byte{}, content...)

	var saved bool
	err := m.exec(ctx, func() {
		id = core.NormalizeID(id)
		prev, ok := m.files[id]
		if !ok {
			return
		}
		m.files[id] = content
		m.size += int64(len(content)) - int64(len(prev))
		m.diskErr("write", id, m.dir.WriteFile(m.workspaceID, id, content))
		m.persist.Enqueue(worker.Job{Kind: worker.JobSave, WorkspaceID: m.workspaceID, ID: id, Content: content})
		saved = true
	})
	return saved, err
}

// Tree returns a snapshot of the file tree.
func (m *Mirror) Tree(ctx context.Context) ([]*core.FileNode, error) {
	var tree []*core.FileNode
	err := m.exec(ctx, func() {
		tree = m.tree()
	})
	return tree, err
}

// Size returns the total content bytes and file count.
func (m *Mirror) Size(ctx context.Context) (int64, int, error) {
	var (
		size  int64
		count int
	)
	err := m.exec(ctx, func() {
		size, count = m.size, len(m.files)
	})
	return size, count, err
}

func (m *Mirror) exists(id string) bool {
	if _, ok := m.files[id]; ok {
		return true
	}
	_, ok := m.folders[id]
	return ok
}

// placeable reports whether id can become a new file or folder: it is not
// the root, not taken, and no ancestor of it is a file.
func (m *Mirror) placeable(id string) bool {
	if id == "/" || m.exists(id) {
		return false
	}
	for p := core.ParentID(id); p != "/"; p = core.ParentID(p) {
		if _, ok := m.files[p]; ok {
			return false
		}
	}
	return true
}

func validName(name string) bool {
	switch name {
	case "", ".", "..":
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}

func (m *Mirror) addParents(id string) {
	for p := core.ParentID(id); p != "/"; p = core.ParentID(p) {
		m.folders[p] = struct{}{}
	}
}

func (m *Mirror) filesWithin(folder string) []string {
	ids := []string{}
	for id := range m.files {
		if id != folder && core.IsWithin(id, folder) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (m *Mirror) diskErr(op, id string, err error) {
	if err != nil {
		m.log.Error("mirror: working directory out of sync", zap.String("op", op), zap.String("id", id), zap.Error(err))
	}
}

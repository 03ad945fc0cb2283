package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/core"
	"github.com/lzjever/mbos-devbox/internal/mirror"
	"github.com/lzjever/mbos-devbox/internal/observability"
	"github.com/lzjever/mbos-devbox/internal/quota"
)

const auditTimeout = 2 * time.Second

// Actor identifies who issues an operation. Member, when set, receives
// notices that are not broadcast to the room.
type Actor struct {
	UserID    string
	SessionID string
	Member    Member
}

// AuditSink records audit events. Failures are logged and otherwise ignored.
type AuditSink interface {
	Record(ctx context.Context, ev core.AuditEvent) error
}

// mutate runs fn behind the quota gate. An exhausted bucket aborts before fn
// runs and publishes a rateLimit notice: to the room for saves, creations
// and deletions, to the requester otherwise.
func (i *Instance) mutate(ctx context.Context, a Actor, op core.OperationKind, action string, payload any, fn func(m *mirror.Mirror) (bool, error)) error {
	m, err := i.files()
	if err != nil {
		return err
	}

	if err := i.deps.Quota.Allow(ctx, a.UserID, op); err != nil {
		if errors.Is(err, quota.ErrExhausted) {
			observability.QuotaRejectedTotal.WithLabelValues(string(op)).Inc()
			observability.MutationsTotal.WithLabelValues(string(op), "rate_limited").Inc()
			i.notify(a, op, Event{Name: EventRateLimit, Data: quota.Notice(op)})
			return err
		}
		observability.MutationsTotal.WithLabelValues(string(op), "error").Inc()
		i.log.Error("quota check failed", zap.String("op", string(op)), zap.Error(err))
		return err
	}

	applied, err := fn(m)
	switch {
	case err != nil:
		observability.MutationsTotal.WithLabelValues(string(op), "refused").Inc()
		return err
	case !applied:
		observability.MutationsTotal.WithLabelValues(string(op), "noop").Inc()
		return nil
	}
	observability.MutationsTotal.WithLabelValues(string(op), "accepted").Inc()
	i.audit(ctx, a, action, payload)
	return nil
}

func (i *Instance) notify(a Actor, op core.OperationKind, ev Event) {
	switch op {
	case core.OpSaveFile, core.OpCreateFile, core.OpDeleteFile:
		i.room.Broadcast(ev)
	default:
		if a.Member != nil {
			a.Member.Deliver(ev)
		}
	}
}

// Audit records ev for a on a best-effort basis.
func (i *Instance) Audit(ctx context.Context, a Actor, action string, payload any) {
	i.audit(ctx, a, action, payload)
}

func (i *Instance) audit(ctx context.Context, a Actor, action string, payload any) {
	if i.deps.Audit == nil {
		return
	}
	ev := core.AuditEvent{
		Ts:          time.Now().UTC(),
		WorkspaceID: i.id,
		UserID:      a.UserID,
		SessionID:   a.SessionID,
		Action:      action,
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			i.log.Warn("audit: encode payload", zap.String("action", action), zap.Error(err))
		}
		ev.Payload = b
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := i.deps.Audit.Record(ctx, ev); err != nil {
		i.log.Warn("audit: record failed", zap.String("action", action), zap.Error(err))
	}
}

func (i *Instance) GetFile(ctx context.Context, id string) ([]byte, bool, error) {
	m, err := i.files()
	if err != nil {
		return nil, false, err
	}
	return m.GetFile(ctx, id)
}

func (i *Instance) ListFolder(ctx context.Context, folder string) ([]string, error) {
	m, err := i.files()
	if err != nil {
		return nil, err
	}
	return m.ListFolder(ctx, folder)
}

func (i *Instance) Tree(ctx context.Context) ([]*core.FileNode, error) {
	m, err := i.files()
	if err != nil {
		return nil, err
	}
	return m.Tree(ctx)
}

func (i *Instance) CreateFile(ctx context.Context, a Actor, name string) (bool, error) {
	var created bool
	err := i.mutate(ctx, a, core.OpCreateFile, core.AuditFileCreate, map[string]string{"id": core.NormalizeID(name)},
		func(m *mirror.Mirror) (bool, error) {
			var err error
			created, err = m.CreateFile(ctx, name)
			return created, err
		})
	return created, err
}

func (i *Instance) CreateFolder(ctx context.Context, a Actor, name string) (bool, error) {
	var created bool
	err := i.mutate(ctx, a, core.OpCreateFolder, core.AuditFolderCreate, map[string]string{"id": core.NormalizeID(name)},
		func(m *mirror.Mirror) (bool, error) {
			var err error
			created, err = m.CreateFolder(ctx, name)
			return created, err
		})
	return created, err
}

func (i *Instance) RenameFile(ctx context.Context, a Actor, id, newName string) (bool, error) {
	var renamed bool
	payload := map[string]string{"id": core.NormalizeID(id), "name": newName}
	err := i.mutate(ctx, a, core.OpRenameFile, core.AuditFileRename, payload,
		func(m *mirror.Mirror) (bool, error) {
			var err error
			renamed, err = m.RenameFile(ctx, id, newName)
			return renamed, err
		})
	return renamed, err
}

// MoveFile shares the renameFile quota.
func (i *Instance) MoveFile(ctx context.Context, a Actor, id, folder string) ([]*core.FileNode, error) {
	var tree []*core.FileNode
	payload := map[string]string{"id": core.NormalizeID(id), "folder": core.NormalizeID(folder)}
	err := i.mutate(ctx, a, core.OpRenameFile, core.AuditFileRename, payload,
		func(m *mirror.Mirror) (bool, error) {
			var err error
			tree, err = m.MoveFile(ctx, id, folder)
			return err == nil, err
		})
	return tree, err
}

func (i *Instance) DeleteFile(ctx context.Context, a Actor, id string) ([]*core.FileNode, error) {
	var tree []*core.FileNode
	err := i.mutate(ctx, a, core.OpDeleteFile, core.AuditFileDelete, map[string]string{"id": core.NormalizeID(id)},
		func(m *mirror.Mirror) (bool, error) {
			var err error
			tree, err = m.DeleteFile(ctx, id)
			return err == nil, err
		})
	return tree, err
}

// DeleteFolder shares the deleteFile quota.
func (i *Instance) DeleteFolder(ctx context.Context, a Actor, id string) ([]*core.FileNode, error) {
	var tree []*core.FileNode
	err := i.mutate(ctx, a, core.OpDeleteFile, core.AuditFolderDelete, map[string]string{"id": core.NormalizeID(id)},
		func(m *mirror.Mirror) (bool, error) {
			var err error
			tree, err = m.DeleteFolder(ctx, id)
			return err == nil, err
		})
	return tree, err
}

func (i *Instance) SaveFile(ctx context.Context, a Actor, id string, content []byte) (bool, error) {
	var saved bool
	payload := map[string]any{"id": core.NormalizeID(id), "bytes": len(content), "sha256": core.ContentDigest(content)}
	err := i.mutate(ctx, a, core.OpSaveFile, core.AuditFileSave, payload,
		func(m *mirror.Mirror) (bool, error) {
			var err error
			saved, err = m.SaveFile(ctx, id, content)
			return saved, err
		})
	return saved, err
}

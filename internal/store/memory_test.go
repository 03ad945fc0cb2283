package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lzjever/mbos-devbox/internal/core"
)

func TestMemoryStore_FileLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Seed("w1", core.FileRecord{ID: "a.txt", Content: []byte("a")})
	s.Seed("w2", core.FileRecord{ID: "/other.txt"})

	require.NoError(t, s.CreateFile(ctx, "w1", "/b.txt"))
	require.NoError(t, s.SaveFile(ctx, "w1", "/b.txt", []byte("hi")))
	require.NoError(t, s.RenameFile(ctx, "w1", "/a.txt", "/src/a.txt", []byte("a")))
	require.NoError(t, s.CreateFile(ctx, "w1", "/b.txt"))

	records, err := s.LoadWorkspace(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, []core.FileRecord{
		{ID: "/b.txt", Content: []byte("hi")},
		{ID: "/src/a.txt", Content: []byte("a")},
	}, records)

	require.NoError(t, s.DeleteFile(ctx, "w1", "/b.txt"))
	records, err = s.LoadWorkspace(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	records, err = s.LoadWorkspace(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestMemoryStore_Audit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, action := range []string{core.AuditSessionAdmit, core.AuditFileSave, core.AuditFileDelete} {
		require.NoError(t, s.Record(ctx, core.AuditEvent{WorkspaceID: "w1", Action: action}))
	}
	require.NoError(t, s.Record(ctx, core.AuditEvent{WorkspaceID: "w2", Action: core.AuditSessionAdmit}))

	events, err := s.ListAudit(ctx, "w1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, core.AuditFileDelete, events[0].Action)
	require.Equal(t, int64(3), events[0].EventID)
}

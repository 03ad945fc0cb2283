package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type call struct {
	kind    JobKind
	id      string
	newID   string
	content string
}

type recordingStore struct {
	mu       sync.Mutex
	calls    []call
	failures map[string]int
}

func (s *recordingStore) record(c call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[c.id] > 0 {
		s.failures[c.id]--
		return errors.New("store unavailable")
	}
	s.calls = append(s.calls, c)
	return nil
}

func (s *recordingStore) CreateFile(_ context.Context, _, id string) error {
	return s.record(call{kind: JobCreate, id: id})
}

func (s *recordingStore) DeleteFile(_ context.Context, _, id string) error {
	return s.record(call{kind: JobDelete, id: id})
}

func (s *recordingStore) RenameFile(_ context.Context, _, oldID, newID string, content []byte) error {
	return s.record(call{kind: JobRename, id: oldID, newID: newID, content: string(content)})
}

func (s *recordingStore) SaveFile(_ context.Context, _, id string, content []byte) error {
	return s.record(call{kind: JobSave, id: id, content: string(content)})
}

func (s *recordingStore) snapshot() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

func startPersister(t *testing.T, store Store, cfg Config) *Persister {
	t.Helper()
	p := NewPersister(store, cfg, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-p.Done()
	})
	return p
}

func TestPersister_AppliesInOrder(t *testing.T) {
	store := &recordingStore{}
	p := startPersister(t, store, Config{MaxAttempts: 1})

	p.Enqueue(Job{Kind: JobCreate, WorkspaceID: "w1", ID: "/a.txt"})
	p.Enqueue(Job{Kind: JobSave, WorkspaceID: "w1", ID: "/a.txt", Content: []byte("one")})
	p.Enqueue(Job{Kind: JobSave, WorkspaceID: "w1", ID: "/a.txt", Content: []byte("two")})
	p.Enqueue(Job{Kind: JobRename, WorkspaceID: "w1", ID: "/a.txt", NewID: "/b.txt", Content: []byte("two")})
	p.Enqueue(Job{Kind: JobDelete, WorkspaceID: "w1", ID: "/b.txt"})

	require.NoError(t, p.Flush(context.Background()))
	require.Equal(t, []call{
		{kind: JobCreate, id: "/a.txt"},
		{kind: JobSave, id: "/a.txt", content: "one"},
		{kind: JobSave, id: "/a.txt", content: "two"},
		{kind: JobRename, id: "/a.txt", newID: "/b.txt", content: "two"},
		{kind: JobDelete, id: "/b.txt"},
	}, store.snapshot())
}

func TestPersister_RetriesTransientFailures(t *testing.T) {
	store := &recordingStore{failures: map[string]int{"/a.txt": 2}}
	p := startPersister(t, store, Config{MaxAttempts: 3, RetryDelay: time.Millisecond})

	p.Enqueue(Job{Kind: JobSave, WorkspaceID: "w1", ID: "/a.txt", Content: []byte("x")})
	require.NoError(t, p.Flush(context.Background()))
	require.Len(t, store.snapshot(), 1)
}

func TestPersister_GivesUpAfterMaxAttempts(t *testing.T) {
	store := &recordingStore{failures: map[string]int{"/a.txt": 10}}
	p := startPersister(t, store, Config{MaxAttempts: 2, RetryDelay: time.Millisecond})

	p.Enqueue(Job{Kind: JobSave, WorkspaceID: "w1", ID: "/a.txt", Content: []byte("x")})
	p.Enqueue(Job{Kind: JobSave, WorkspaceID: "w1", ID: "/b.txt", Content: []byte("y")})
	require.NoError(t, p.Flush(context.Background()))

	calls := store.snapshot()
	require.Len(t, calls, 1, "a dead job must not block later jobs")
	require.Equal(t, "/b.txt", calls[0].id)
}

func TestPersister_CloseDrainsQueue(t *testing.T) {
	store := &recordingStore{}
	p := NewPersister(store, Config{MaxAttempts: 1}, zap.NewNop())

	p.Enqueue(Job{Kind: JobCreate, WorkspaceID: "w1", ID: "/a.txt"})
	p.Enqueue(Job{Kind: JobCreate, WorkspaceID: "w1", ID: "/b.txt"})
	p.Close()
	p.Enqueue(Job{Kind: JobCreate, WorkspaceID: "w1", ID: "/late.txt"})

	go p.Run(context.Background())
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("persister did not stop after Close")
	}
	require.Len(t, store.snapshot(), 2)
}

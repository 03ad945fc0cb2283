package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lzjever/mbos-devbox/internal/core"
)

// MemoryStore is a process-local project store used when no database is
// configured. Contents are keyed by storage key, like the Postgres store.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]map[string][]byte
	audit []core.AuditEvent
	seq   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]map[string][]byte)}
}

// Seed stores records for workspaceID, replacing existing files with the
// same id.
func (s *MemoryStore) Seed(workspaceID string, records ...core.FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.put(workspaceID, r.ID, r.Content)
	}
}

func (s *MemoryStore) put(workspaceID, id string, content []byte) {
	ws, ok := s.files[workspaceID]
	if !ok {
		ws = make(map[string][]byte)
		s.files[workspaceID] = ws
	}
	ws[core.StorageKey(workspaceID, id)] = append([]byte{}, content...)
}

func (s *MemoryStore) LoadWorkspace(ctx context.Context, workspaceID string) ([]core.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]core.FileRecord, 0, len(s.files[workspaceID]))
	for key, content := range s.files[workspaceID] {
		id, ok := core.IDFromStorageKey(workspaceID, key)
		if !ok {
			continue
		}
		records = append(records, core.FileRecord{ID: id, Content: append([]byte{}, content...)})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (s *MemoryStore) CreateFile(ctx context.Context, workspaceID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[workspaceID][core.StorageKey(workspaceID, id)]; !ok {
		s.put(workspaceID, id, nil)
	}
	return nil
}

func (s *MemoryStore) DeleteFile(ctx context.Context, workspaceID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files[workspaceID], core.StorageKey(workspaceID, id))
	return nil
}

func (s *MemoryStore) RenameFile(ctx context.Context, workspaceID, oldID, newID string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files[workspaceID], core.StorageKey(workspaceID, oldID))
	s.put(workspaceID, newID, content)
	return nil
}

func (s *MemoryStore) SaveFile(ctx context.Context, workspaceID, id string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(workspaceID, id, content)
	return nil
}

func (s *MemoryStore) Record(ctx context.Context, ev core.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ev.EventID = s.seq
	s.audit = append(s.audit, ev)
	return nil
}

func (s *MemoryStore) ListAudit(ctx context.Context, workspaceID string, limit int) ([]core.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []core.AuditEvent
	for i := len(s.audit) - 1; i >= 0 && len(events) < limit; i-- {
		if s.audit[i].WorkspaceID == workspaceID {
			events = append(events, s.audit[i])
		}
	}
	return events, nil
}

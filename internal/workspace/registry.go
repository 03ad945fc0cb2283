package workspace

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/auth"
	"github.com/lzjever/mbos-devbox/internal/mirror"
	"github.com/lzjever/mbos-devbox/internal/quota"
	"github.com/lzjever/mbos-devbox/internal/terminal"
	"github.com/lzjever/mbos-devbox/internal/workdir"
)

// Deps are the collaborators shared by every instance.
type Deps struct {
	Store   mirror.Store
	Dir     *workdir.Dir
	Quota   quota.Gate
	Audit   AuditSink
	Spawner terminal.Spawner
	Log     *zap.Logger
}

// Registry maps workspace ids to their live instance.
type Registry struct {
	cfg  Config
	deps Deps

	mu        sync.Mutex
	instances map[string]*Instance
}

func NewRegistry(cfg Config, deps Deps) *Registry {
	return &Registry{
		cfg:       cfg.withDefaults(),
		deps:      deps,
		instances: make(map[string]*Instance),
	}
}

// MaxFileBytes is the largest file body a save may carry.
func (r *Registry) MaxFileBytes() int {
	return r.cfg.Mirror.FileLimit()
}

func (r *Registry) instance(workspaceID string) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[workspaceID]
	if !ok {
		inst = newInstance(workspaceID, r.cfg, r.deps, r.evict)
		r.instances[workspaceID] = inst
	}
	return inst
}

// Admit registers m with the instance of grant.WorkspaceID, creating the
// instance if needed. It returns ErrOwnerAbsent for a non-owner arriving
// before the owner.
func (r *Registry) Admit(ctx context.Context, grant auth.Grant, m Member) (*Instance, error) {
	for {
		inst := r.instance(grant.WorkspaceID)
		err := inst.admit(grant, m)
		if errors.Is(err, ErrOwnerAbsent) {
			r.dropIfUnused(inst)
			return nil, err
		}
		if !errors.Is(err, errEvicted) {
			if err != nil {
				return nil, err
			}
			return inst, nil
		}
		select {
		case <-inst.released:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// dropIfUnused forgets an instance that never admitted anyone.
func (r *Registry) dropIfUnused(inst *Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.evicted || inst.sessions > 0 || inst.mirror != nil || inst.timer != nil || inst.presence != NoOwner {
		return
	}
	if r.instances[inst.id] == inst {
		delete(r.instances, inst.id)
		inst.evicted = true
		inst.markReleased()
	}
}

func (r *Registry) evict(inst *Instance) {
	inst.release()
	r.mu.Lock()
	if r.instances[inst.id] == inst {
		delete(r.instances, inst.id)
	}
	r.mu.Unlock()
	inst.markReleased()
	inst.log.Info("evict: instance released")
}

func (r *Registry) Get(workspaceID string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[workspaceID]
	return inst, ok
}

// List returns live instances sorted by workspace id.
func (r *Registry) List() []*Instance {
	r.mu.Lock()
	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	r.mu.Unlock()
	sort.Slice(out, func(a, b int) bool { return out[a].id < out[b].id })
	return out
}

// Shutdown kills every terminal and drains every mirror's store writes.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	instances := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		instances = append(instances, inst)
	}
	r.instances = make(map[string]*Instance)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, inst := range instances {
		inst := inst
		wg.Add(1)
		go func() {
			defer wg.Done()
			inst.mu.Lock()
			if inst.timer != nil {
				inst.timer.Stop()
				inst.timer = nil
			}
			inst.gen++
			inst.evicted = true
			m := inst.mirror
			inst.mirror = nil
			inst.mu.Unlock()

			inst.terms.KillAll()
			if m != nil {
				if err := m.Close(ctx); err != nil {
					inst.log.Warn("shutdown: mirror closed with pending writes", zap.Error(err))
				}
			}
			inst.markReleased()
		}()
	}
	wg.Wait()
}

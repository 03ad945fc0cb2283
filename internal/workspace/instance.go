// Package workspace holds the live state of each workspace: who is
// connected, whether its owner has arrived, its mirror, its terminals and
// the teardown timer that reclaims them.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/auth"
	"github.com/lzjever/mbos-devbox/internal/core"
	"github.com/lzjever/mbos-devbox/internal/mirror"
	"github.com/lzjever/mbos-devbox/internal/observability"
	"github.com/lzjever/mbos-devbox/internal/terminal"
)

// OwnerAbsentMessage is sent with disableAccess to viewers refused because
// the owner has not connected.
const OwnerAbsentMessage = "The sandbox owner is not connected."

var (
	// ErrOwnerAbsent refuses a non-owner while the workspace has no owner.
	ErrOwnerAbsent = core.NewAppError(core.ErrAccessDenied, "owner not present")
	// ErrNotLoaded is returned by file operations before the mirror is loaded.
	ErrNotLoaded = errors.New("workspace not loaded")

	errEvicted = errors.New("instance evicted")
)

type Presence string

const (
	NoOwner      Presence = "NoOwner"
	OwnerPresent Presence = "OwnerPresent"
)

// Instance is the live state of one workspace.
type Instance struct {
	id     string
	cfg    Config
	deps   Deps
	log    *zap.Logger
	room   *Room
	terms  *terminal.Pool
	onIdle func(*Instance)

	loadMu sync.Mutex

	mu       sync.Mutex
	presence Presence
	sessions int
	timer    *time.Timer
	gen      uint64
	evicted  bool
	mirror   *mirror.Mirror

	released    chan struct{}
	releaseOnce sync.Once
}

func newInstance(id string, cfg Config, deps Deps, onIdle func(*Instance)) *Instance {
	log := observability.WorkspaceLogger(deps.Log, id)
	inst := &Instance{
		id:       id,
		cfg:      cfg,
		deps:     deps,
		log:      log,
		room:     NewRoom(log),
		onIdle:   onIdle,
		presence: NoOwner,
		released: make(chan struct{}),
	}
	inst.terms = terminal.NewPool(deps.Spawner, deps.Dir.WorkspacePath(id), cfg.MaxTerminals, inst.terminalOutput, log)
	return inst
}

func (i *Instance) ID() string {
	return i.id
}

func (i *Instance) Room() *Room {
	return i.room
}

func (i *Instance) Terminals() *terminal.Pool {
	return i.terms
}

func (i *Instance) terminalOutput(id string, data []byte) {
	i.room.Broadcast(Event{Name: EventTerminalResponse, Data: TerminalOutput{ID: id, Data: string(data)}})
}

func (i *Instance) Presence() Presence {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.presence
}

// admit registers a session for grant. Owners flip presence to
// OwnerPresent; non-owners are refused with ErrOwnerAbsent until then. Any
// admission disarms a pending teardown.
func (i *Instance) admit(grant auth.Grant, m Member) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.evicted {
		return errEvicted
	}
	if !grant.IsOwner && i.presence == NoOwner {
		return ErrOwnerAbsent
	}
	if grant.IsOwner && i.presence == NoOwner {
		i.setPresence(OwnerPresent)
	}

	i.sessions++
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
		i.gen++
		observability.TeardownsTotal.WithLabelValues("disarmed").Inc()
		i.log.Info("teardown: disarmed")
	}
	i.room.Join(m)
	return nil
}

// Leave unregisters a session. The last one out arms the teardown timer.
func (i *Instance) Leave(m Member) {
	i.room.Leave(m)

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.sessions > 0 {
		i.sessions--
	}
	if i.sessions > 0 || i.timer != nil {
		return
	}
	i.gen++
	gen := i.gen
	i.timer = time.AfterFunc(i.cfg.GracePeriod, func() { i.expire(gen) })
	i.log.Info("teardown: armed", zap.Duration("grace", i.cfg.GracePeriod))
}

func (i *Instance) setPresence(p Presence) {
	if i.presence == p {
		return
	}
	observability.PresenceTransitions.WithLabelValues(string(i.presence), string(p)).Inc()
	i.log.Info("presence changed", zap.String("from", string(i.presence)), zap.String("to", string(p)))
	i.presence = p
}

func (i *Instance) expire(gen uint64) {
	i.mu.Lock()
	if gen != i.gen || i.sessions > 0 {
		i.mu.Unlock()
		observability.TeardownsTotal.WithLabelValues("stale").Inc()
		return
	}
	i.timer = nil
	killed := i.teardownLocked("expired")
	evict := i.cfg.EvictOnTeardown
	if evict {
		i.evicted = true
	}
	i.mu.Unlock()
	i.auditTeardown("expired", killed)

	if evict && i.onIdle != nil {
		i.onIdle(i)
	}
}

// teardownLocked kills every terminal and resets presence. New admissions
// wait on i.mu until it returns. The caller records the audit event once
// i.mu is released.
func (i *Instance) teardownLocked(outcome string) int {
	killed := i.terms.KillAll()
	i.setPresence(NoOwner)
	observability.TeardownsTotal.WithLabelValues(outcome).Inc()
	i.log.Info("teardown: fired", zap.Int("terminals_killed", killed))
	return killed
}

func (i *Instance) auditTeardown(outcome string, killed int) {
	i.audit(context.Background(), Actor{}, core.AuditTeardown, map[string]any{"terminals_killed": killed, "outcome": outcome})
}

// Teardown runs the teardown immediately. It refuses while sessions are
// connected.
func (i *Instance) Teardown() error {
	i.mu.Lock()
	if i.sessions > 0 {
		i.mu.Unlock()
		return core.NewAppError(core.ErrValidation, fmt.Sprintf("workspace %s has %d connected sessions", i.id, i.sessions))
	}
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	i.gen++
	killed := i.teardownLocked("forced")
	evict := i.cfg.EvictOnTeardown
	if evict {
		i.evicted = true
	}
	i.mu.Unlock()
	i.auditTeardown("forced", killed)

	if evict && i.onIdle != nil {
		i.onIdle(i)
	}
	return nil
}

// Load attaches the mirror, loading it from the store on first use.
func (i *Instance) Load(ctx context.Context) (*mirror.Mirror, error) {
	i.loadMu.Lock()
	defer i.loadMu.Unlock()

	i.mu.Lock()
	m := i.mirror
	i.mu.Unlock()
	if m != nil {
		return m, nil
	}

	m, err := mirror.Open(ctx, i.id, i.deps.Store, i.deps.Dir, i.cfg.Mirror, i.deps.Log)
	if err != nil {
		return nil, err
	}
	i.mu.Lock()
	i.mirror = m
	i.mu.Unlock()
	return m, nil
}

func (i *Instance) files() (*mirror.Mirror, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.mirror == nil {
		return nil, ErrNotLoaded
	}
	return i.mirror, nil
}

// release stops the mirror, waiting for its store writes to drain.
func (i *Instance) release() {
	i.terms.KillAll()

	i.mu.Lock()
	m := i.mirror
	i.mirror = nil
	i.mu.Unlock()
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), i.cfg.EvictTimeout)
	defer cancel()
	if err := m.Close(ctx); err != nil {
		i.log.Warn("evict: mirror closed with pending writes", zap.Error(err))
	}
}

func (i *Instance) markReleased() {
	i.releaseOnce.Do(func() { close(i.released) })
}

// Status is a point-in-time view of an instance.
type Status struct {
	WorkspaceID   string   `json:"workspace_id"`
	Presence      Presence `json:"presence"`
	Sessions      int      `json:"sessions"`
	TeardownArmed bool     `json:"teardown_armed"`
	Loaded        bool     `json:"loaded"`
	Files         int      `json:"files"`
	Bytes         int64    `json:"bytes"`
	Terminals     []string `json:"terminals"`
}

func (i *Instance) Status(ctx context.Context) (Status, error) {
	i.mu.Lock()
	st := Status{
		WorkspaceID:   i.id,
		Presence:      i.presence,
		Sessions:      i.sessions,
		TeardownArmed: i.timer != nil,
		Loaded:        i.mirror != nil,
	}
	m := i.mirror
	i.mu.Unlock()

	st.Terminals = i.terms.IDs()
	if m != nil {
		size, count, err := m.Size(ctx)
		if err != nil && !errors.Is(err, mirror.ErrClosed) {
			return Status{}, err
		}
		st.Bytes, st.Files = size, count
	}
	return st, nil
}

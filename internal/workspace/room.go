package workspace

import (
	"sync"

	"go.uber.org/zap"
)

// Server event names delivered through a room or directly to one member.
const (
	EventLoaded           = "loaded"
	EventTerminalResponse = "terminalResponse"
	EventRateLimit        = "rateLimit"
	EventDisableAccess    = "disableAccess"
	EventError            = "error"
)

// Event is a server-originated message. Data must be JSON encodable.
type Event struct {
	Name string
	Data any
}

// TerminalOutput is the payload of terminalResponse.
type TerminalOutput struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// Member receives room events. Deliver must not block; it reports false
// when the event could not be queued.
type Member interface {
	Deliver(ev Event) bool
}

// Room is the broadcast topic of one workspace.
type Room struct {
	mu      sync.RWMutex
	members map[Member]struct{}
	log     *zap.Logger
}

func NewRoom(log *zap.Logger) *Room {
	return &Room{members: make(map[Member]struct{}), log: log}
}

func (r *Room) Join(m Member) {
	r.mu.Lock()
	r.members[m] = struct{}{}
	r.mu.Unlock()
}

func (r *Room) Leave(m Member) {
	r.mu.Lock()
	delete(r.members, m)
	r.mu.Unlock()
}

// Broadcast delivers ev to every member and returns how many accepted it.
func (r *Room) Broadcast(ev Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for m := range r.members {
		if m.Deliver(ev) {
			n++
			continue
		}
		r.log.Debug("room: member queue full, event dropped", zap.String("event", ev.Name))
	}
	return n
}

func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Package terminal multiplexes a bounded set of shells per workspace.
package terminal

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/core"
	"github.com/lzjever/mbos-devbox/internal/observability"
)

const (
	DefaultCapacity = 4
	DefaultCols     = 80
	DefaultRows     = 24

	readBufferSize = 4096
)

// OutputFunc receives terminal output. It is called from the terminal's
// reader goroutine and must not call back into the pool.
type OutputFunc func(id string, data []byte)

type terminal struct {
	id     string
	proc   Process
	done   chan struct{}
	killed bool
}

// Pool owns the shells of one workspace. Every shell has one reader
// goroutine; it removes the entry and releases the process when the shell
// ends, whatever the reason.
type Pool struct {
	spawner  Spawner
	dir      string
	capacity int
	output   OutputFunc
	log      *zap.Logger

	mu    sync.Mutex
	terms map[string]*terminal
}

func NewPool(spawner Spawner, dir string, capacity int, output OutputFunc, log *zap.Logger) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		spawner:  spawner,
		dir:      dir,
		capacity: capacity,
		output:   output,
		log:      log,
		terms:    make(map[string]*terminal),
	}
}

// Create starts a shell under id. It returns false without side effects if
// id is in use or the pool is full.
func (p *Pool) Create(id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.terms[id]; ok {
		return false, nil
	}
	if len(p.terms) >= p.capacity {
		return false, nil
	}

	proc, err := p.spawner.Spawn(p.dir, DefaultCols, DefaultRows)
	if err != nil {
		observability.TerminalExitsTotal.WithLabelValues("spawn_failed").Inc()
		return false, fmt.Errorf("terminal %s: %w", id, core.NewAppError(core.ErrProcessFailure, err.Error()))
	}

	t := &terminal{id: id, proc: proc, done: make(chan struct{})}
	p.terms[id] = t
	observability.LiveTerminals.Inc()
	p.log.Info("terminal: started", zap.String("terminal_id", id), zap.Int("live", len(p.terms)))

	go p.pump(t)
	return true, nil
}

func (p *Pool) pump(t *terminal) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := t.proc.Read(buf)
		if n > 0 && p.output != nil {
			p.output(t.id, append([]byte{}, buf[:n]...))
		}
		if err != nil {
			break
		}
	}

	// a broken device can leave the shell running; make sure Wait returns
	if err := t.proc.Kill(); err != nil {
		p.log.Warn("terminal: kill failed", zap.String("terminal_id", t.id), zap.Error(err))
	}
	if err := t.proc.Wait(); err != nil {
		p.log.Warn("terminal: wait failed", zap.String("terminal_id", t.id), zap.Error(err))
	}
	t.proc.Close()

	p.mu.Lock()
	if p.terms[t.id] == t {
		delete(p.terms, t.id)
	}
	reason := "exited"
	if t.killed {
		reason = "killed"
	}
	p.mu.Unlock()

	observability.LiveTerminals.Dec()
	observability.TerminalExitsTotal.WithLabelValues(reason).Inc()
	p.log.Info("terminal: ended", zap.String("terminal_id", t.id), zap.String("reason", reason))
	close(t.done)
}

// Write forwards input to terminal id. Unknown ids are ignored.
func (p *Pool) Write(id string, data []byte) bool {
	p.mu.Lock()
	t, ok := p.terms[id]
	p.mu.Unlock()
	if !ok {
		return false
	}
	if _, err := t.proc.Write(data); err != nil {
		p.log.Debug("terminal: write failed", zap.String("terminal_id", id), zap.Error(err))
		return false
	}
	return true
}

// ResizeAll applies the size to every live terminal.
func (p *Pool) ResizeAll(cols, rows int) {
	if cols <= 0 || rows <= 0 || cols > 0xffff || rows > 0xffff {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, t := range p.terms {
		if err := t.proc.Resize(cols, rows); err != nil {
			p.log.Debug("terminal: resize failed", zap.String("terminal_id", id), zap.Error(err))
		}
	}
}

// Close kills terminal id and waits for it to be released.
func (p *Pool) Close(id string) bool {
	p.mu.Lock()
	t, ok := p.terms[id]
	if ok {
		p.kill(t)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	<-t.done
	return true
}

// KillAll kills every terminal and returns once all of them are released.
func (p *Pool) KillAll() int {
	p.mu.Lock()
	terms := make([]*terminal, 0, len(p.terms))
	for _, t := range p.terms {
		p.kill(t)
		terms = append(terms, t)
	}
	p.mu.Unlock()

	for _, t := range terms {
		<-t.done
	}
	return len(terms)
}

func (p *Pool) kill(t *terminal) {
	t.killed = true
	if err := t.proc.Kill(); err != nil {
		p.log.Warn("terminal: kill failed", zap.String("terminal_id", t.id), zap.Error(err))
	}
	// unblocks the reader on platforms where killing the shell leaves the device open
	t.proc.Close()
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.terms)
}

// IDs lists live terminal ids, sorted.
func (p *Pool) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.terms))
	for id := range p.terms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/observability"
)

// Persister applies store writes for one workspace in submission order.
// Enqueue never blocks: mutations are acknowledged before their write lands.
type Persister struct {
	store Store
	cfg   Config
	log   *zap.Logger

	mu      sync.Mutex
	pending []Job
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func NewPersister(store Store, cfg Config, log *zap.Logger) *Persister {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	return &Persister{
		store: store,
		cfg:   cfg,
		log:   log,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Enqueue schedules job. Jobs submitted after Close are dropped.
func (p *Persister) Enqueue(job Job) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.log.Warn("persist: enqueue after close, dropping", zap.String("kind", string(job.Kind)), zap.String("id", job.ID))
		return
	}
	p.pending = append(p.pending, job)
	p.mu.Unlock()
	observability.PersistQueueDepth.Inc()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Flush waits until every job enqueued before the call has been applied.
func (p *Persister) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.pending = append(p.pending, Job{barrier: barrier})
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}

	select {
	case <-barrier:
		return nil
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs. Run drains what is queued and returns.
func (p *Persister) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run has returned.
func (p *Persister) Done() <-chan struct{} {
	return p.done
}

func (p *Persister) Run(ctx context.Context) {
	defer close(p.done)
	for {
		job, ok, closed := p.next()
		if ok {
			if job.barrier != nil {
				close(job.barrier)
				continue
			}
			observability.PersistQueueDepth.Dec()
			p.process(ctx, job)
			continue
		}
		if closed {
			return
		}

		select {
		case <-ctx.Done():
			p.log.Info("persister stopping", zap.Int("abandoned", p.abandon()))
			return
		case <-p.wake:
		}
	}
}

func (p *Persister) next() (Job, bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return Job{}, false, p.closed
	}
	job := p.pending[0]
	p.pending[0] = Job{}
	p.pending = p.pending[1:]
	return job, true, p.closed
}

func (p *Persister) abandon() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, job := range p.pending {
		if job.barrier != nil {
			close(job.barrier)
			continue
		}
		n++
	}
	observability.PersistQueueDepth.Sub(float64(n))
	p.pending = nil
	p.closed = true
	return n
}

func (p *Persister) process(ctx context.Context, job Job) {
	log := p.log.With(
		zap.String("workspace_id", job.WorkspaceID),
		zap.String("kind", string(job.Kind)),
		zap.String("id", job.ID),
	)
	kind := string(job.Kind)

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.JobTimeout)
		err := job.apply(jobCtx, p.store)
		cancel()
		observability.PersistDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

		if err == nil {
			observability.PersistTotal.WithLabelValues(kind, "succeeded").Inc()
			log.Debug("persist: applied", zap.Int("attempt", attempt))
			return
		}

		if attempt == p.cfg.MaxAttempts {
			observability.PersistTotal.WithLabelValues(kind, "dead").Inc()
			log.Error("persist: giving up", zap.Error(err), zap.Int("attempt", attempt))
			return
		}

		observability.PersistTotal.WithLabelValues(kind, "failed").Inc()
		observability.PersistRetryTotal.WithLabelValues(kind).Inc()
		log.Warn("persist: failed, will retry", zap.Error(err), zap.Int("attempt", attempt))

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.RetryDelay << (attempt - 1)):
		}
	}
}

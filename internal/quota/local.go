package quota

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lzjever/mbos-devbox/internal/core"
)

type bucketKey struct {
	userID string
	op     core.OperationKind
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalGate keeps buckets in process memory. It is correct for a single
// engine instance.
type LocalGate struct {
	limits Limits
	now    func() time.Time

	mu      sync.Mutex
	buckets map[bucketKey]*bucket
}

var _ Gate = (*LocalGate)(nil)

func NewLocal(limits Limits) *LocalGate {
	return &LocalGate{
		limits:  limits,
		now:     time.Now,
		buckets: make(map[bucketKey]*bucket),
	}
}

func (g *LocalGate) Allow(ctx context.Context, userID string, op core.OperationKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	limit, err := g.limits.lookup(op)
	if err != nil {
		return err
	}

	now := g.now()
	g.mu.Lock()
	key := bucketKey{userID: userID, op: op}
	b, ok := g.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(limit.Interval), limit.Burst)}
		g.buckets[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	g.mu.Unlock()

	if !allowed {
		return exhausted(userID, op)
	}
	return nil
}

// Prune drops buckets untouched for longer than idle and returns how many
// were removed. An idle bucket is full again, so dropping it is invisible
// to callers.
func (g *LocalGate) Prune(idle time.Duration) int {
	cutoff := g.now().Add(-idle)
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for key, b := range g.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(g.buckets, key)
			removed++
		}
	}
	return removed
}

// RunPruner calls Prune every interval until ctx is done.
func (g *LocalGate) RunPruner(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Prune(idle)
		}
	}
}

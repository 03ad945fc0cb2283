package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lzjever/mbos-devbox/internal/core"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLocalWithClock(limits Limits) (*LocalGate, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	g := NewLocal(limits)
	g.now = clock.now
	return g, clock
}

func TestLocalGate_BurstThenExhausted(t *testing.T) {
	const burst = 3
	g, _ := newLocalWithClock(UniformLimits(time.Minute, burst))
	ctx := context.Background()

	for i := 0; i < burst; i++ {
		require.NoError(t, g.Allow(ctx, "u1", core.OpSaveFile), "token %d", i+1)
	}
	err := g.Allow(ctx, "u1", core.OpSaveFile)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrExhausted))
	require.True(t, core.IsCode(err, core.ErrQuotaExceeded))
}

func TestLocalGate_Replenishes(t *testing.T) {
	g, clock := newLocalWithClock(DefaultLimits())
	ctx := context.Background()

	require.NoError(t, g.Allow(ctx, "u1", core.OpSaveFile))
	require.ErrorIs(t, g.Allow(ctx, "u1", core.OpSaveFile), ErrExhausted)

	clock.advance(2 * time.Second)
	require.NoError(t, g.Allow(ctx, "u1", core.OpSaveFile))
}

func TestLocalGate_BucketsAreIndependent(t *testing.T) {
	g, _ := newLocalWithClock(DefaultLimits())
	ctx := context.Background()

	require.NoError(t, g.Allow(ctx, "u1", core.OpSaveFile))
	require.NoError(t, g.Allow(ctx, "u1", core.OpCreateFile), "other operation has its own bucket")
	require.NoError(t, g.Allow(ctx, "u2", core.OpSaveFile), "other user has its own bucket")
	require.ErrorIs(t, g.Allow(ctx, "u1", core.OpSaveFile), ErrExhausted)
}

func TestLocalGate_UnknownOperation(t *testing.T) {
	g := NewLocal(Limits{core.OpSaveFile: {Interval: time.Second, Burst: 1}})
	err := g.Allow(context.Background(), "u1", core.OpDeleteFile)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrExhausted))
}

func TestLocalGate_Prune(t *testing.T) {
	g, clock := newLocalWithClock(DefaultLimits())
	ctx := context.Background()
	require.NoError(t, g.Allow(ctx, "u1", core.OpSaveFile))
	require.NoError(t, g.Allow(ctx, "u2", core.OpSaveFile))

	clock.advance(time.Minute)
	require.NoError(t, g.Allow(ctx, "u2", core.OpCreateFile))

	require.Equal(t, 2, g.Prune(30*time.Second))
	require.Len(t, g.buckets, 1)
}

func TestNotice(t *testing.T) {
	require.Equal(t, "Rate limited: file saving. Please slow down.", Notice(core.OpSaveFile))
	require.Equal(t, "Rate limited. Please slow down.", Notice("unknown"))
}

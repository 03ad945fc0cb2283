package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lzjever/mbos-devbox/internal/core"
)

// gcra is a token bucket in its GCRA form: the key holds the theoretical
// arrival time (TAT) of the next token in milliseconds. A request is allowed
// when it arrives no earlier than TAT - interval*burst.
//
// KEYS[1] bucket, ARGV[1] now, ARGV[2] interval, ARGV[3] burst (all ms / count).
var gcra = redis.NewScript(`
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local tat = tonumber(redis.call("GET", KEYS[1]))
if tat == nil or tat < now then
  tat = now
end
local next_tat = tat + interval
if now < next_tat - interval * burst then
  return 0
end
redis.call("SET", KEYS[1], next_tat, "PX", next_tat - now)
return 1
`)

// RedisGate shares buckets between engine instances through redis. Buckets
// behave like LocalGate's: Burst tokens, one refilled per Interval.
type RedisGate struct {
	client redis.Scripter
	limits Limits
	prefix string
	now    func() time.Time
}

var _ Gate = (*RedisGate)(nil)

func NewRedis(client redis.Scripter, limits Limits) *RedisGate {
	return &RedisGate{client: client, limits: limits, prefix: "devbox:quota", now: time.Now}
}

func (g *RedisGate) key(userID string, op core.OperationKind) string {
	return fmt.Sprintf("%s:%s:%s", g.prefix, op, userID)
}

func (g *RedisGate) Allow(ctx context.Context, userID string, op core.OperationKind) error {
	limit, err := g.limits.lookup(op)
	if err != nil {
		return err
	}
	interval := limit.Interval.Milliseconds()
	if interval < 1 {
		interval = 1
	}

	ok, err := gcra.Run(ctx, g.client, []string{g.key(userID, op)},
		g.now().UnixMilli(), interval, limit.Burst).Int64()
	if err != nil {
		return fmt.Errorf("quota backend: %w", err)
	}
	if ok == 0 {
		return exhausted(userID, op)
	}
	return nil
}

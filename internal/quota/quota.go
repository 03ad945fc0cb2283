// Package quota implements the per-user, per-operation token buckets that
// every file mutation is checked against.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/lzjever/mbos-devbox/internal/core"
)

// ErrExhausted is returned (wrapped) when a bucket has no token left.
var ErrExhausted = core.NewAppError(core.ErrQuotaExceeded, "quota exhausted")

// Gate consumes one token of the (userID, op) bucket. It returns an error
// wrapping ErrExhausted when the bucket is empty; any other error comes from
// the backend.
type Gate interface {
	Allow(ctx context.Context, userID string, op core.OperationKind) error
}

// Limit is a token bucket: Burst tokens, one token replenished per Interval.
type Limit struct {
	Interval time.Duration
	Burst    int
}

type Limits map[core.OperationKind]Limit

// UniformLimits applies the same limit to every operation kind.
func UniformLimits(interval time.Duration, burst int) Limits {
	limits := make(Limits, len(core.AllOperations))
	for _, op := range core.AllOperations {
		limits[op] = Limit{Interval: interval, Burst: burst}
	}
	return limits
}

// DefaultLimits allows one operation of each kind every two seconds.
func DefaultLimits() Limits {
	return UniformLimits(2*time.Second, 1)
}

func (l Limits) lookup(op core.OperationKind) (Limit, error) {
	limit, ok := l[op]
	if !ok {
		return Limit{}, fmt.Errorf("no quota configured for %q", op)
	}
	if limit.Burst < 1 {
		limit.Burst = 1
	}
	return limit, nil
}

var notices = map[core.OperationKind]string{
	core.OpCreateFile:   "Rate limited: file creation. Please slow down.",
	core.OpCreateFolder: "Rate limited: folder creation. Please slow down.",
	core.OpRenameFile:   "Rate limited: file renaming. Please slow down.",
	core.OpDeleteFile:   "Rate limited: file deletion. Please slow down.",
	core.OpSaveFile:     "Rate limited: file saving. Please slow down.",
}

// Notice is the user-facing rateLimit message for op.
func Notice(op core.OperationKind) string {
	if msg, ok := notices[op]; ok {
		return msg
	}
	return "Rate limited. Please slow down."
}

func exhausted(userID string, op core.OperationKind) error {
	return fmt.Errorf("%s for user %s: %w", op, userID, ErrExhausted)
}

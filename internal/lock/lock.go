// Package lock provides the mutual-exclusion primitive that serializes
// batch exports. Backing stores are injectable: Redis for multi-process
// deployments, in-memory for single-process ones.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyLocked is a recoverable, user-facing condition: a batch run is
// already in progress somewhere.
var ErrAlreadyLocked = errors.New("a batch operation is already running")

// Token represents a held lock. Release must be called in a deferred block
// so partial failures never leave the system wedged; the TTL covers a
// crashed holder.
type Token interface {
	Release(ctx context.Context) error
}

// Locker acquires scoped locks with a time-to-live.
type Locker interface {
	Acquire(ctx context.Context, scope string, ttl time.Duration) (Token, error)
}

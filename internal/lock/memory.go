package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker is the single-process backing store for the batch lock.
// Holds the same TTL-based safety property as the Redis locker.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]memoryEntry),
		clock: time.Now,
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, scope string, ttl time.Duration) (Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if entry, ok := l.held[scope]; ok && now.Before(entry.expiresAt) {
		return nil, ErrAlreadyLocked
	}
	value := uuid.NewString()
	l.held[scope] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return &memoryToken{locker: l, scope: scope, value: value}, nil
}

func (l *MemoryLocker) release(scope, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.held[scope]; ok && entry.value == value {
		delete(l.held, scope)
	}
}

type memoryToken struct {
	locker *MemoryLocker
	scope  string
	value  string
}

func (t *memoryToken) Release(ctx context.Context) error {
	t.locker.release(t.scope, t.value)
	return nil
}

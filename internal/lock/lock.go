package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrHeld is returned by TryLock when another holder owns the key.
var ErrHeld = errors.New("lock: held by another holder")

// UnlockFunc releases a lock obtained from TryLock.
type UnlockFunc func(ctx context.Context) error

// Locker grants exclusive, non-blocking ownership of a key. The ttl bounds
// how long a crashed holder can keep the key; local implementations may
// ignore it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// Local is an in-process Locker.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local { return &Local{held: map[string]struct{}{}} }

func (l *Local) TryLock(_ context.Context, key string, _ time.Duration) (UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, ErrHeld
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

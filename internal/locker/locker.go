package locker

import (
	"context"
	"errors"
	"sync"
)

var ErrLockHeld = errors.New("lock is held by another invocation")

type Lock interface {
	// Lock takes the lock without waiting; a held lock returns ErrLockHeld.
	Lock(ctx context.Context) error
	Unlock() error
}

type Locker interface {
	NewLock(id string) (Lock, error)
}

// MemoryLocker serializes invocations inside a single process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held: make(map[string]struct{}),
	}
}

func (ml *MemoryLocker) NewLock(id string) (Lock, error) {
	return &memoryLock{
		id:     id,
		locker: ml,
	}, nil
}

type memoryLock struct {
	id     string
	locker *MemoryLocker
	locked bool
}

func (l *memoryLock) Lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if _, ok := l.locker.held[l.id]; ok {
		return ErrLockHeld
	}
	l.locker.held[l.id] = struct{}{}
	l.locked = true
	return nil
}

func (l *memoryLock) Unlock() error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if !l.locked {
		return errors.New("unlock of unlocked lock " + l.id)
	}
	delete(l.locker.held, l.id)
	l.locked = false
	return nil
}

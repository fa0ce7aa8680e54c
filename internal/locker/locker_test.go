package locker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
	"github.com/redis/go-redis/v9"
)

func lockers(t *testing.T) map[string]Locker {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	return map[string]Locker{
		"memory": NewMemoryLocker(),
		"redis":  NewRedisLocker(rdb, WithExpiry(10*time.Second)),
	}
}

func TestLockUnlock(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()
			l, err := locker.NewLock("dropzone/invoice.pdf")
			if err != nil {
				t.Fatal(err)
			}
			if err := l.Lock(ctx); err != nil {
				t.Error(err)
			}
			if err := l.Unlock(); err != nil {
				t.Error(err)
			}
			if err := l.Lock(ctx); err != nil {
				t.Error(err)
			}
			if err := l.Unlock(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestHeldLock(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()
			l, _ := locker.NewLock("dropzone/invoice.pdf")
			if err := l.Lock(ctx); err != nil {
				t.Fatal(err)
			}
			defer l.Unlock()

			other, _ := locker.NewLock("dropzone/invoice.pdf")
			if err := other.Lock(ctx); !errors.Is(err, ErrLockHeld) {
				t.Errorf("expected ErrLockHeld, got %v", err)
			}

			different, _ := locker.NewLock("dropzone/other.pdf")
			if err := different.Lock(ctx); err != nil {
				t.Errorf("unrelated lock should be free, got %v", err)
			}
			different.Unlock()
		})
	}
}

func TestUnlockWithoutLock(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			l, _ := locker.NewLock("never-locked")
			if err := l.Unlock(); err == nil {
				t.Error("expected error unlocking a lock that was never taken")
			}
		})
	}
}

func TestRedisLockerHealth(t *testing.T) {
	s := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+s.Addr())
	if err != nil {
		t.Fatal(err)
	}
	h := &RedisLockerHealth{Client: client}
	if rsp := h.Health(context.Background()); rsp.Status != models.STATUS_UP {
		t.Errorf("expected UP, got %+v", rsp)
	}

	s.Close()
	if rsp := h.Health(context.Background()); rsp.Status != models.STATUS_DOWN {
		t.Errorf("expected DOWN after redis went away, got %+v", rsp)
	}
}

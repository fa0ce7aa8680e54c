package locker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "blob_relay_lock_"
	defaultExpiry = 30 * time.Minute
)

type RedisOption func(l *RedisLocker)

func WithLogger(logger *slog.Logger) RedisOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

func WithExpiry(expiry time.Duration) RedisOption {
	return func(l *RedisLocker) {
		l.expiry = expiry
	}
}

// RedisLocker shares locks between relay replicas.
type RedisLocker struct {
	rs     *redsync.Redsync
	redis  *redis.Client
	expiry time.Duration
	logger *slog.Logger
}

func NewRedisLocker(client *redis.Client, lockerOptions ...RedisOption) *RedisLocker {
	locker := &RedisLocker{
		rs:    redsync.New(goredis.NewPool(client)),
		redis: client,
	}
	for _, option := range lockerOptions {
		option(locker)
	}
	//defaults
	if locker.logger == nil {
		locker.logger = slog.Default()
	}
	if locker.expiry <= 0 {
		locker.expiry = defaultExpiry
	}
	return locker
}

func (locker *RedisLocker) NewLock(id string) (Lock, error) {
	mutex := locker.rs.NewMutex(keyPrefix+id,
		redsync.WithExpiry(locker.expiry),
		redsync.WithTries(1),
	)
	return &redisLock{
		id:     id,
		mutex:  mutex,
		expiry: locker.expiry,
		logger: locker.logger.With("lock_id", id),
	}, nil
}

type redisLock struct {
	id     string
	mutex  *redsync.Mutex
	expiry time.Duration
	cancel func()
	logger *slog.Logger
}

func (l *redisLock) Lock(ctx context.Context) error {
	if err := l.mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return fmt.Errorf("%w: %w", ErrLockHeld, err)
		}
		return err
	}

	var keepAliveCtx context.Context
	keepAliveCtx, l.cancel = context.WithCancel(context.Background())
	go func() {
		if err := l.keepAlive(keepAliveCtx); err != nil {
			l.logger.Error("lock lost", "error", err)
		}
	}()
	return nil
}

func (l *redisLock) keepAlive(ctx context.Context) error {
	//insures that an extend will be canceled if it's unlocked in the middle of an attempt
	for {
		select {
		case <-time.After(time.Until(l.mutex.Until()) - l.expiry/4):
			l.logger.Debug("extend lock attempt started")
			if _, err := l.mutex.ExtendContext(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				l.logger.Error("failed to extend lock", "error", err)
				return err
			}
			l.logger.Debug("lock extended", "until", l.mutex.Until())
		case <-ctx.Done():
			return nil
		}
	}
}

func (l *redisLock) Unlock() error {
	if l.cancel == nil {
		return errors.New("unlock of unlocked lock " + l.id)
	}
	l.cancel()
	l.cancel = nil
	_, err := l.mutex.Unlock()
	return err
}

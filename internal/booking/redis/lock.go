package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"terrace-booking/internal/logger"
)

var ErrLockTimeout = errors.New("timed out waiting for state lock")

// unlockScript deletes the key only while it still holds our token, so an
// expired lock taken over by another writer is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a SETNX lease shared by every process writing the same state key.
type Lock struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
	// Wait bounds how long Acquire polls before giving up.
	Wait   time.Duration
	Retry  time.Duration
	Logger *logger.Logger
}

func NewLock(client *redis.Client, key string, ttl time.Duration, log *logger.Logger) *Lock {
	if log == nil {
		log = logger.Discard()
	}
	return &Lock{
		Client: client,
		Key:    key,
		TTL:    ttl,
		Wait:   5 * time.Second,
		Retry:  25 * time.Millisecond,
		Logger: log,
	}
}

func (l *Lock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, l.Wait)
	defer cancel()

	for {
		ok, err := l.Client.SetNX(ctx, l.Key, token, l.TTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("lock %s: %w", l.Key, err)
		}
		if ok {
			return func() { l.release(token) }, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, l.Key)
			}
			return nil, ctx.Err()
		case <-time.After(l.Retry):
		}
	}
}

func (l *Lock) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := unlockScript.Run(ctx, l.Client, []string{l.Key}, token).Err(); err != nil && err != redis.Nil {
		l.Logger.Warn("REDIS", fmt.Sprintf("release lock %s: %v", l.Key, err))
	}
}

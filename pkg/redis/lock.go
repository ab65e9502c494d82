package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

// compare-and-delete: a holder whose ttl ran out must not free a lock someone else now owns
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
return redis.call("DEL", KEYS[1])
`)

// Locker hands out single-holder locks backed by SET NX with a ttl
type Locker struct {
	client    *Client
	keyPrefix string
}

func NewLocker(client *Client, keyPrefix string) *Locker {
	if keyPrefix == "" {
		keyPrefix = "fern:lock:"
	}
	return &Locker{client: client, keyPrefix: keyPrefix}
}

// Lock is one acquisition. Its token identifies the holder.
type Lock struct {
	client *Client
	key    string
	token  string
}

// Acquire takes key for ttl. A key held by anyone, including this process, fails with
// ErrLockNotAcquired.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{
		client: l.client,
		key:    l.keyPrefix + key,
		token:  uuid.NewString(),
	}

	acquired, err := l.client.SetNX(ctx, lock.key, lock.token, ttl)
	switch {
	case err != nil:
		return nil, err
	case !acquired:
		return nil, ErrLockNotAcquired
	}

	l.client.logger.WithContext(ctx).Debugf("Acquired lock %s for %s", lock.key, ttl)
	return lock, nil
}

// Release frees the lock if this holder still owns it
func (lock *Lock) Release(ctx context.Context) error {
	defer observe("unlock", time.Now())

	deleted, err := unlockScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.token).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockNotHeld
	}
	return nil
}

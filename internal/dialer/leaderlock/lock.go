// Package leaderlock elects a single active scheduler instance through a
// Redis key. Only the holder of the lock runs ticks; standby instances keep
// retrying acquisition so a crashed leader is replaced within one TTL.
package leaderlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another instance holds the lock.
var ErrNotAcquired = errors.New("leader lock held by another instance")

// releaseScript deletes the key only when it still carries our token, so an
// expired-and-reacquired lock is never released out from under the new
// holder. The same compare guards TTL refresh.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lock is a single named leader lock.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func New(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire takes the lock, or extends it when this instance already holds
// it. Callers invoke it once per tick: the holder keeps refreshing its TTL,
// a standby gets ErrNotAcquired until the holder's key expires. It does not
// block.
func (l *Lock) Acquire(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	// The key may be our own from a previous tick.
	return l.Refresh(ctx)
}

// Refresh extends the TTL if we still hold the lock.
func (l *Lock) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotAcquired
	}
	return nil
}

// Release gives up the lock. Losing the race to an expiry is not an error.
func (l *Lock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	return err
}

// Package distributed provides a Redis-backed lock so work that touches
// shared recording storage runs on one relay instance at a time.
package distributed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when this holder still owns it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// extendScript refreshes the TTL only when this holder still owns the key.
const extendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

// Lock is a non-blocking Redis lock. The token identifies this holder so a
// lock that expired and was re-acquired elsewhere is never released or
// extended by the old holder.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// TryAcquire attempts to take the lock without blocking. False means another
// instance holds it.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	return acquired, nil
}

// Extend refreshes the TTL. False means the lock expired and may now be held
// elsewhere; the caller should stop.
func (l *Lock) Extend(ctx context.Context) (bool, error) {
	result, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.token, l.ttl.Milliseconds()).Result()
	if err != nil {
		return false, fmt.Errorf("failed to extend lock %s: %w", l.key, err)
	}
	return result.(int64) == 1, nil
}

// Release gives the lock up. Releasing a lock that already expired is not an
// error.
func (l *Lock) Release(ctx context.Context) error {
	if _, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Result(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}

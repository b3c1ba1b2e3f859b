package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock provides distributed locking via Redis using SET NX with TTL.
// Every Lock carries a random ownership value so release and extend only
// touch a lock this instance actually holds.
type Lock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// NewLock creates a distributed lock. The name is prefixed with "lock:"
// to form the Redis key, so NewLock(r, "ingest", ttl) guards "lock:ingest".
func NewLock(r *Redis, name string, ttl time.Duration) *Lock {
	return &Lock{
		client: r.Client,
		key:    fmt.Sprintf("lock:%s", name),
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

// TryAcquire attempts to take the lock without waiting. Returns true when
// this instance now holds it.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

// Release drops the lock only if this instance still owns it.
func (l *Lock) Release(ctx context.Context) error {
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	_, err := script.Run(ctx, l.client, []string{l.key}, l.value).Result()
	return err
}

// Extend pushes the expiry out for long-running holders. Returns an error
// when Redis fails; a lock that was lost in the meantime is not re-taken.
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
	_, err := script.Run(ctx, l.client, []string{l.key}, l.value, ttl.Milliseconds()).Result()
	return err
}

package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token, so a
// slow game never frees a slot that expired and was taken by another one.
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

// RedisSlots shares the registry between several bot instances connected to
// the same rooms. Keys expire after ttl so a crashed instance does not lock
// a room forever.
type RedisSlots struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSlots(rdb *redis.Client, ttl time.Duration) *RedisSlots {
	return &RedisSlots{rdb: rdb, ttl: ttl}
}

func (s *RedisSlots) key(room string) string {
	return fmt.Sprintf("pendu:slot:%s", room)
}

func (s *RedisSlots) TryAcquire(ctx context.Context, room, token string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.key(room), token, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire slot %s: %w", room, err)
	}
	return ok, nil
}

func (s *RedisSlots) Release(ctx context.Context, room, token string) error {
	if err := releaseScript.Run(ctx, s.rdb, []string{s.key(room)}, token).Err(); err != nil {
		return fmt.Errorf("release slot %s: %w", room, err)
	}
	return nil
}

func (s *RedisSlots) Refresh(ctx context.Context, room, token string) error {
	err := refreshScript.Run(ctx, s.rdb, []string{s.key(room)}, token, s.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("refresh slot %s: %w", room, err)
	}
	return nil
}

func (s *RedisSlots) Close() error { return s.rdb.Close() }

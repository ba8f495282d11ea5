package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
)

// KEYS[1] cooldown hash, ARGV platform, now ms, window ms.
// Returns {1, now} when recorded or {0, last} when inside the window.
const luaClaim = `
local last = redis.call('HGET', KEYS[1], ARGV[1])
local now = tonumber(ARGV[2])
if last then
  last = tonumber(last)
  if now - last < tonumber(ARGV[3]) then
    return {0, last}
  end
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return {1, now}
`

// KEYS[1] cooldown hash, ARGV platform, not-after ms. Deletes the field
// unless it holds a later timestamp.
const luaClear = `
local last = redis.call('HGET', KEYS[1], ARGV[1])
if last and tonumber(last) <= tonumber(ARGV[2]) then
  return redis.call('HDEL', KEYS[1], ARGV[1])
end
return 0
`

// RedisStore keeps cooldowns in one hash per user, field per platform.
// Timestamps are unix milliseconds.
type RedisStore struct {
	rdb      redis.UniversalClient
	scrClaim *redis.Script
	scrClear *redis.Script
}

var _ store.Cooldowns = (*RedisStore)(nil)

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	s := &RedisStore{rdb: rdb, scrClaim: redis.NewScript(luaClaim), scrClear: redis.NewScript(luaClear)}

	// Run falls back to EVAL when the preload has not landed.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.scrClaim.Load(ctx, rdb).Err()
		_ = s.scrClear.Load(ctx, rdb).Err()
	}()
	return s
}

// ConnectRedis parses a redis:// URL and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = time.Second
	opts.ReadTimeout = 400 * time.Millisecond
	opts.WriteTimeout = 400 * time.Millisecond
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func keyCooldown(userID string) string { return fmt.Sprintf("cooldown:{%s}", userID) }

func (s *RedisStore) Claim(ctx context.Context, userID string, platform models.Platform, now time.Time, window time.Duration) (bool, time.Time, error) {
	raw, err := s.scrClaim.Run(ctx, s.rdb, []string{keyCooldown(userID)},
		string(platform), now.UnixMilli(), window.Milliseconds()).Result()
	if err != nil {
		return false, time.Time{}, err
	}
	arr, ok := raw.([]interface{})
	if !ok || len(arr) != 2 {
		return false, time.Time{}, errors.New("unexpected claim script reply")
	}
	code, _ := arr[0].(int64)
	last, _ := arr[1].(int64)
	return code == 1, time.UnixMilli(last).UTC(), nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string, platform models.Platform, notAfter time.Time) error {
	return s.scrClear.Run(ctx, s.rdb, []string{keyCooldown(userID)}, string(platform), notAfter.UnixMilli()).Err()
}

func (s *RedisStore) Last(ctx context.Context, userID string) (map[models.Platform]time.Time, error) {
	fields, err := s.rdb.HGetAll(ctx, keyCooldown(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[models.Platform]time.Time, len(fields))
	for platform, v := range fields {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[models.Platform(platform)] = time.UnixMilli(ms).UTC()
	}
	return out, nil
}

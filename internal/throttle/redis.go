package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tattooz/internal/retry"
)

// reserveScript atomically reserves the next start slot for a key.
// KEYS[1] = throttle key, ARGV[1] = now (ms), ARGV[2] = interval (ms).
// Returns {start, previous} in ms, previous being -1 when the key was unset.
const reserveScript = `
local last = tonumber(redis.call('GET', KEYS[1]))
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local start = now
if last ~= nil and last + interval > now then
  start = last + interval
end
redis.call('SET', KEYS[1], start, 'PX', (start - now) + interval * 2)
if last == nil then
  return {start, -1}
end
return {start, last}
`

// releaseScript restores the previous reservation if KEYS[1] still holds
// ARGV[1]. ARGV[2] = previous (ms, -1 for none), ARGV[3] = ttl (ms).
const releaseScript = `
if tonumber(redis.call('GET', KEYS[1])) ~= tonumber(ARGV[1]) then
  return 0
end
if tonumber(ARGV[2]) < 0 then
  redis.call('DEL', KEYS[1])
else
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
end
return 1
`

// Redis is a Throttle shared by every instance pointing at the same Redis.
type Redis struct {
	rdb      redis.Scripter
	script   *redis.Script
	release  *redis.Script
	prefix   string
	interval time.Duration
	now      func() time.Time
	sleep    retry.SleepFunc
}

// NewRedis returns a throttle keyed under tattooz:throttle: in rdb.
func NewRedis(rdb redis.Scripter, interval time.Duration) *Redis {
	return &Redis{
		rdb:      rdb,
		script:   redis.NewScript(reserveScript),
		release:  redis.NewScript(releaseScript),
		prefix:   "tattooz:throttle:",
		interval: interval,
		now:      time.Now,
		sleep:    retry.Sleep,
	}
}

// Key returns the Redis key used for a throttle key.
func (r *Redis) Key(key string) string {
	return r.prefix + key
}

// Wait reserves the next start for key in Redis and sleeps until it.
func (r *Redis) Wait(ctx context.Context, key string) (time.Duration, error) {
	if r.interval <= 0 {
		return 0, ctx.Err()
	}
	now := r.now().UnixMilli()
	res, err := r.script.Run(ctx, r.rdb, []string{r.Key(key)}, now, r.interval.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("throttle: reserve slot: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("throttle: reserve slot: unexpected reply %v", res)
	}
	start, prev := res[0], res[1]
	wait := time.Duration(start-now) * time.Millisecond
	if wait <= 0 {
		return 0, nil
	}
	if err := r.sleep(ctx, wait); err != nil {
		r.giveBack(ctx, key, start, prev)
		return 0, err
	}
	return wait, nil
}

func (r *Redis) giveBack(ctx context.Context, key string, start, prev int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	ttl := 2 * r.interval.Milliseconds()
	_ = r.release.Run(ctx, r.rdb, []string{r.Key(key)}, start, prev, ttl).Err()
}

var _ Throttle = (*Redis)(nil)

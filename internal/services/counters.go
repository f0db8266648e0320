package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"
)

// MemoryCounters is a process-local CounterStore. The clock is injectable so
// window expiry is testable without sleeping.
type MemoryCounters struct {
	mu      sync.Mutex
	clock   quartz.Clock
	windows map[string]*counterWindow
}

type counterWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemoryCounters(clock quartz.Clock) *MemoryCounters {
	return &MemoryCounters{
		clock:   clock,
		windows: make(map[string]*counterWindow),
	}
}

func (c *MemoryCounters) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &counterWindow{count: 0, resetAt: now.Add(window)}
		c.windows[key] = w
	}
	w.count++

	return w.count, w.resetAt, nil
}

// RedisCounters shares fixed windows across processes with INCR + EXPIRE.
type RedisCounters struct {
	client *redis.Client
}

func NewRedisCounters(client *redis.Client) *RedisCounters {
	return &RedisCounters{client: client}
}

var incrWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local windowMs = tonumber(ARGV[1])

	local count = redis.call("INCR", key)
	if count == 1 then
		redis.call("PEXPIRE", key, windowMs)
	end

	local ttl = redis.call("PTTL", key)
	if ttl < 0 then
		redis.call("PEXPIRE", key, windowMs)
		ttl = windowMs
	end

	return {count, ttl}
`)

func (c *RedisCounters) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	redisKey := fmt.Sprintf(KeyRateLimit, key)

	result, err := incrWindowScript.Run(ctx, c.client, []string{redisKey}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to bump rate counter: %w", err)
	}
	if len(result) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected rate counter result: %v", result)
	}

	count, _ := result[0].(int64)
	ttlMs, _ := result[1].(int64)

	return count, time.Now().Add(time.Duration(ttlMs) * time.Millisecond), nil
}

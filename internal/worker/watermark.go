// Package worker runs the service's periodic background jobs.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/workday-booking/internal/calendar"
)

// Watermark records the last day a job fired.  Claim returns true exactly
// once per day unless the claim is released.
type Watermark interface {
	Claim(ctx context.Context, day time.Time) (bool, error)
	Release(ctx context.Context, day time.Time) error
}

// MemoryWatermark is a monotonic in-process watermark: a day is claimable
// only when it is after the last claimed day.
type MemoryWatermark struct {
	mu   sync.Mutex
	last time.Time
	prev time.Time
}

func (m *MemoryWatermark) Claim(_ context.Context, day time.Time) (bool, error) {
	day = calendar.Day(day)
	m.mu.Lock()
	defer m.mu.Unlock()
	if !day.After(m.last) {
		return false, nil
	}
	m.prev, m.last = m.last, day
	return true, nil
}

// Release gives back the claim on day if it is the latest one.
func (m *MemoryWatermark) Release(_ context.Context, day time.Time) error {
	day = calendar.Day(day)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last.Equal(day) {
		m.last = m.prev
	}
	return nil
}

// RedisWatermark claims a day with SETNX so restarts and replicas share
// one watermark.
type RedisWatermark struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisWatermark(rdb *redis.Client, prefix string) *RedisWatermark {
	if prefix == "" {
		prefix = "reminder:fired"
	}
	return &RedisWatermark{rdb: rdb, prefix: prefix, ttl: 48 * time.Hour}
}

func (r *RedisWatermark) Claim(ctx context.Context, day time.Time) (bool, error) {
	return r.rdb.SetNX(ctx, r.key(day), time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
}

func (r *RedisWatermark) Release(ctx context.Context, day time.Time) error {
	return r.rdb.Del(ctx, r.key(day)).Err()
}

func (r *RedisWatermark) key(day time.Time) string { return r.prefix + ":" + calendar.Key(day) }

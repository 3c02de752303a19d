package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/workday-booking/internal/calendar"
)

// ErrJobNotFound is returned for unknown or expired delivery jobs.
var ErrJobNotFound = errors.New("delivery job not found")

// DeliveryJob tracks a multi-part delivery to one client.  It is created
// with every field it needs; steps only bump the counter.
type DeliveryJob struct {
	ID            string    `json:"id"`
	ReservationID uint64    `json:"reservation_id"`
	ClientID      int64     `json:"client_id"`
	SlotDate      time.Time `json:"slot_date"`
	Delivered     int       `json:"delivered"`
	Total         int       `json:"total"`
	CreatedAt     time.Time `json:"created_at"`
}

// JobStore keeps delivery jobs.  Incr must be atomic.
type JobStore interface {
	Save(ctx context.Context, job DeliveryJob) error
	Get(ctx context.Context, id string) (*DeliveryJob, error)
	Incr(ctx context.Context, id string, delta int) (int, error)
	Delete(ctx context.Context, id string) error
}

// MemoryJobStore is the in-process JobStore.  Jobs expire after ttl.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]*memJob
	ttl  time.Duration
	now  func() time.Time
}

type memJob struct {
	job     DeliveryJob
	expires time.Time
}

func NewMemoryJobStore(ttl time.Duration) *MemoryJobStore {
	return &MemoryJobStore{jobs: map[string]*memJob{}, ttl: ttl, now: time.Now}
}

func (m *MemoryJobStore) Save(_ context.Context, job DeliveryJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = &memJob{job: job, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryJobStore) lookup(id string) (*memJob, bool) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	if m.ttl > 0 && m.now().After(j.expires) {
		delete(m.jobs, id)
		return nil, false
	}
	return j, true
}

func (m *MemoryJobStore) Get(_ context.Context, id string) (*DeliveryJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.lookup(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	c := j.job
	return &c, nil
}

func (m *MemoryJobStore) Incr(_ context.Context, id string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.lookup(id)
	if !ok {
		return 0, ErrJobNotFound
	}
	j.job.Delivered += delta
	return j.job.Delivered, nil
}

func (m *MemoryJobStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

// RedisJobStore keeps each job in a hash "<prefix>:delivery:<id>" with a TTL.
type RedisJobStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisJobStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisJobStore {
	if prefix == "" {
		prefix = "booking"
	}
	return &RedisJobStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisJobStore) key(id string) string { return s.prefix + ":delivery:" + id }

// incrScript bumps the counter only while the job exists.
var incrScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'delivered', ARGV[1])
`)

func (s *RedisJobStore) Save(ctx context.Context, job DeliveryJob) error {
	k := s.key(job.ID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k,
			"reservation_id", strconv.FormatUint(job.ReservationID, 10),
			"client_id", strconv.FormatInt(job.ClientID, 10),
			"slot_date", calendar.Key(job.SlotDate),
			"delivered", job.Delivered,
			"total", job.Total,
			"created_at", job.CreatedAt.UTC().Format(time.RFC3339),
		)
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	return err
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*DeliveryJob, error) {
	m, err := s.rdb.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, ErrJobNotFound
	}
	job := DeliveryJob{ID: id}
	if job.ReservationID, err = strconv.ParseUint(m["reservation_id"], 10, 64); err != nil {
		return nil, fmt.Errorf("decode delivery job %s: %w", id, err)
	}
	if job.ClientID, err = strconv.ParseInt(m["client_id"], 10, 64); err != nil {
		return nil, fmt.Errorf("decode delivery job %s: %w", id, err)
	}
	if job.SlotDate, err = calendar.ParseDate(m["slot_date"]); err != nil {
		return nil, fmt.Errorf("decode delivery job %s: %w", id, err)
	}
	job.Delivered, _ = strconv.Atoi(m["delivered"])
	job.Total, _ = strconv.Atoi(m["total"])
	job.CreatedAt, _ = time.Parse(time.RFC3339, m["created_at"])
	return &job, nil
}

func (s *RedisJobStore) Incr(ctx context.Context, id string, delta int) (int, error) {
	n, err := incrScript.Run(ctx, s.rdb, []string{s.key(id)}, delta).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrJobNotFound
	}
	return n, nil
}

func (s *RedisJobStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.key(id)).Err()
}

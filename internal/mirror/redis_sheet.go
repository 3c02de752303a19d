package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSheet stores mirror rows in a Redis hash, one JSON document per
// client and date.
type RedisSheet struct {
	rdb   *redis.Client
	key   string
	now   func() time.Time
	tries int
}

func NewRedisSheet(rdb *redis.Client, prefix string) *RedisSheet {
	if prefix == "" {
		prefix = "mirror"
	}
	return &RedisSheet{rdb: rdb, key: prefix + ":rows", now: time.Now, tries: 3}
}

func field(clientID int64, dateLabel string) string {
	return strconv.FormatInt(clientID, 10) + ":" + dateLabel
}

func (s *RedisSheet) UpsertRow(ctx context.Context, row Row) error {
	row.UpdatedAt = s.now().UTC()
	b, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.key, field(row.ClientID, row.DateLabel), b).Err()
}

// UpdateStatusLabel rewrites the status of an existing row.  The row is
// read and written under WATCH so concurrent updates do not clobber each
// other.
func (s *RedisSheet) UpdateStatusLabel(ctx context.Context, clientID int64, dateLabel, status string) error {
	f := field(clientID, dateLabel)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, s.key, f).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrRowMissing, f)
		}
		if err != nil {
			return err
		}
		var row Row
		if err := json.Unmarshal(raw, &row); err != nil {
			return fmt.Errorf("decode mirror row %s: %w", f, err)
		}
		row.Status = status
		row.UpdatedAt = s.now().UTC()
		b, err := json.Marshal(row)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, s.key, f, b)
			return nil
		})
		return err
	}
	for i := 0; i < s.tries; i++ {
		err := s.rdb.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

// ListBookedDateLabels returns the distinct dates whose row holds the slot,
// sorted.
func (s *RedisSheet) ListBookedDateLabels(ctx context.Context) ([]string, error) {
	all, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, raw := range all {
		var row Row
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			continue
		}
		if bookedLabel(row.Status) {
			seen[row.DateLabel] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out, nil
}

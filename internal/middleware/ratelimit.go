package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/workday-booking/internal/config"
)

// bucketScript refills a bucket in whole intervals and takes one token.
// KEYS[1] bucket; ARGV now_ms, capacity, refill, interval_ms, ttl_s.
// Returns {allowed, tokens_left, retry_after_ms}.
var bucketScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local cap = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local every = tonumber(ARGV[4])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local stamp = tonumber(redis.call('HGET', KEYS[1], 'stamp'))
if not tokens or not stamp then
  tokens, stamp = cap, now
end

local steps = 0
if every > 0 then
  steps = math.floor(math.max(0, now - stamp) / every)
end
if steps > 0 then
  tokens = math.min(cap, tokens + steps * refill)
  stamp = stamp + steps * every
end

local ok, wait = 0, 0
if tokens >= 1 then
  ok, tokens = 1, tokens - 1
else
  wait = math.max(0, every - (now - stamp))
end

redis.call('HMSET', KEYS[1], 'tokens', tokens, 'stamp', stamp)
redis.call('EXPIRE', KEYS[1], ARGV[5])
return {ok, tokens, wait}
`)

type verdict struct {
	allowed    bool
	remaining  int64
	retryAfter time.Duration
}

type tokenBucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

func (b tokenBucket) take(ctx context.Context, key string) (verdict, error) {
	res, err := bucketScript.Run(ctx, b.rdb, []string{key},
		time.Now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return verdict{}, err
	}
	if len(res) != 3 {
		return verdict{}, fmt.Errorf("rate limiter returned %d values", len(res))
	}
	return verdict{
		allowed:    res[0] == 1,
		remaining:  res[1],
		retryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests with a Redis token bucket keyed by the
// configured strategy.  Without Redis, or when Redis errors, requests pass.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *logrus.Entry) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	b := tokenBucket{cfg: cfg, rdb: rdb}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			v, err := b.take(c.Request().Context(), key)
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("rate limiter unavailable")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(v.remaining, 10))
			if v.allowed {
				return next(c)
			}

			secs := int((v.retryAfter + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			log.WithFields(logrus.Fields{"key": key, "retry_after": v.retryAfter}).Debug("rate limited")
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too many requests",
				"retry_after": secs,
			})
		}
	}
}

// rateKey builds the bucket key.  Strategies: ip, client, client_route
// (default).  Unauthenticated callers share the "anon" client.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "client":
		parts = append(parts, "client", UserID(c))
	default:
		parts = append(parts, "client", UserID(c), c.Request().Method, c.Path())
	}
	return strings.Join(parts, ":")
}

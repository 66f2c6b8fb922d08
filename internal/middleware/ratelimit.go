package middleware

import (
    "log/slog"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/natours-api/internal/apperror"
    "github.com/iliyamo/natours-api/internal/config"
)

// bucketScript refills a bucket for the elapsed intervals and takes one
// token.  It replies {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])
    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    local elapsed = math.max(0, now_ms - last_refill)
    local intervals = math.floor(elapsed / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + intervals * refill_tokens)
        last_refill = last_refill + intervals * interval_ms
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)
    return { allowed, tokens, retry_after_ms }
`)

const tooManyRequests = "Too many requests from this IP, please try again later!"

// NewTokenBucket limits requests per client IP with a token bucket kept in
// Redis, so every API instance draws from the same bucket.  It sits in front
// of authentication, which is why the IP is the only key.  Redis errors let
// the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
    return newTokenBucket(cfg, rdb, logger, time.Now)
}

func newTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger *slog.Logger, now func() time.Time) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if logger == nil {
        logger = slog.Default()
    }
    limit := strconv.Itoa(cfg.Capacity)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg.Prefix, c.RealIP())
            res, err := bucketScript.Run(c.Request().Context(), rdb, []string{key},
                now().UnixMilli(),
                cfg.Capacity,
                cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(),
                int64(cfg.TTL/time.Second),
            ).Int64Slice()
            if err != nil || len(res) != 3 {
                logger.Warn("rate limit skipped", "key", key, "err", err)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", limit)
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
            if res[0] != 1 {
                h.Set("Retry-After", strconv.FormatInt((res[2]+999)/1000, 10))
                return apperror.Wrap(apperror.TooManyRequests, tooManyRequests, nil)
            }
            return next(c)
        }
    }
}

func rateKey(prefix, ip string) string {
    if ip == "" {
        ip = "unknown"
    }
    return prefix + ":ip:" + ip
}

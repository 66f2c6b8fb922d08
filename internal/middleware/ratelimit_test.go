package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/natours-api/internal/apperror"
	"github.com/iliyamo/natours-api/internal/config"
)

type bucketEnv struct {
	now time.Time
	mw  echo.MiddlewareFunc
}

func newBucketEnv(t *testing.T, rdb *redis.Client) *bucketEnv {
	t.Helper()
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            time.Hour,
		Prefix:         "test:rl",
	}
	b := &bucketEnv{now: time.Unix(1_700_000_000, 0)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b.mw = newTokenBucket(cfg, rdb, logger, func() time.Time { return b.now })
	return b
}

func (b *bucketEnv) hit(ip string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
	req.RemoteAddr = ip + ":4321"
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	err := b.mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return rec, err
}

func TestTokenBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	b := newBucketEnv(t, rdb)

	for i := 0; i < 2; i++ {
		if _, err := b.hit("10.0.0.1"); err != nil {
			t.Fatalf("request %d: error = %v", i+1, err)
		}
	}

	rec, err := b.hit("10.0.0.1")
	ae, ok := apperror.As(err)
	if !ok || ae.Kind != apperror.TooManyRequests || ae.Message != tooManyRequests {
		t.Fatalf("third request: error = %v; want TooManyRequests", err)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q; want 60", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q; want 0", got)
	}

	if _, err := b.hit("10.0.0.2"); err != nil {
		t.Errorf("other IP: error = %v", err)
	}

	b.now = b.now.Add(time.Minute)
	if _, err := b.hit("10.0.0.1"); err != nil {
		t.Errorf("after refill: error = %v", err)
	}
	if !mr.Exists("test:rl:ip:10.0.0.1") {
		t.Error("bucket not keyed by IP")
	}
}

func TestTokenBucket_RedisDownPassesThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	b := newBucketEnv(t, rdb)
	mr.Close()

	if rec, err := b.hit("10.0.0.1"); err != nil || rec.Code != http.StatusOK {
		t.Errorf("hit() = %d, %v; want 200, nil", rec.Code, err)
	}
}

func TestRateKey(t *testing.T) {
	if got := rateKey("rl", ""); got != "rl:ip:unknown" {
		t.Errorf("rateKey() = %q", got)
	}
	if got := rateKey("rl", "1.2.3.4"); got != "rl:ip:1.2.3.4" {
		t.Errorf("rateKey() = %q", got)
	}
}

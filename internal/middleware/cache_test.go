package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/natours-api/internal/config"
	"github.com/iliyamo/natours-api/internal/middleware"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "test:cache",
		MaxBodyBytes: 1 << 20,
	}
}

func TestPurgeCache(t *testing.T) {
	mr, rdb := newRedis(t)
	for i := 0; i < 450; i++ {
		mr.Set(fmt.Sprintf("test:cache:%d", i), "x")
	}
	mr.Set("test:other", "keep")

	if err := middleware.PurgeCache(context.Background(), rdb, "test:cache"); err != nil {
		t.Fatalf("PurgeCache() error = %v", err)
	}
	if keys := mr.Keys(); len(keys) != 1 || keys[0] != "test:other" {
		t.Errorf("keys after purge = %v; want [test:other]", keys)
	}
}

func TestInvalidateCache(t *testing.T) {
	tests := []struct {
		name   string
		h      echo.HandlerFunc
		purged bool
	}{
		{"success", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, true},
		{"created", func(c echo.Context) error { return c.JSON(http.StatusCreated, echo.Map{}) }, true},
		{"handler error", func(echo.Context) error { return errors.New("boom") }, false},
		{"client error", func(c echo.Context) error { return c.JSON(http.StatusBadRequest, echo.Map{}) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr, rdb := newRedis(t)
			mr.Set("test:cache:k", "v")

			c := echo.New().NewContext(httptest.NewRequest(http.MethodPatch, "/", nil), httptest.NewRecorder())
			_ = middleware.InvalidateCache(cacheConfig(), rdb)(tt.h)(c)

			if got := !mr.Exists("test:cache:k"); got != tt.purged {
				t.Errorf("purged = %v; want %v", got, tt.purged)
			}
		})
	}
}

func TestRedisCache_HitAndMiss(t *testing.T) {
	_, rdb := newRedis(t)
	e := echo.New()
	calls := 0
	e.GET("/tours/:id", func(c echo.Context) error {
		calls++
		if c.Param("id") == "missing" {
			return c.JSON(http.StatusNotFound, echo.Map{"status": "fail"})
		}
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "call": calls})
	}, middleware.NewRedisCache(cacheConfig(), rdb))

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	first := get("/tours/a")
	second := get("/tours/a")
	if first.Header().Get("X-Cache") != "MISS" || second.Header().Get("X-Cache") != "HIT" {
		t.Errorf("X-Cache = %q, %q; want MISS, HIT", first.Header().Get("X-Cache"), second.Header().Get("X-Cache"))
	}
	if second.Body.String() != first.Body.String() || calls != 1 {
		t.Errorf("hit body = %s (calls %d); want %s from one call", second.Body, calls, first.Body)
	}

	if get("/tours/b").Header().Get("X-Cache") != "MISS" {
		t.Error("different path served from cache")
	}
	if get("/tours/a?fields=name").Header().Get("X-Cache") != "MISS" {
		t.Error("different query served from cache")
	}

	get("/tours/missing")
	if rec := get("/tours/missing"); rec.Code != http.StatusNotFound || rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("error response cached: %d %q", rec.Code, rec.Header().Get("X-Cache"))
	}
}

func TestRedisCache_Disabled(t *testing.T) {
	cfg := cacheConfig()
	cfg.Enabled = false
	calls := 0
	h := middleware.NewRedisCache(cfg, nil)(func(c echo.Context) error {
		calls++
		return c.NoContent(http.StatusOK)
	})
	for i := 0; i < 2; i++ {
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if err := h(c); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d; want 2", calls)
	}
}

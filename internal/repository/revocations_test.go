package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/natours-api/internal/repository"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRedisRevocations(t *testing.T) {
	mr, rdb := newRedis(t)
	store := repository.NewRedisRevocations(rdb, "test:revoked")
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	if ok, err := store.IsRevoked(ctx, "d1"); err != nil || ok {
		t.Fatalf("IsRevoked() before revoke = %v, %v; want false", ok, err)
	}
	if ok, err := store.Revoke(ctx, "d1", exp); err != nil || !ok {
		t.Fatalf("first Revoke() = %v, %v; want true", ok, err)
	}
	if ok, err := store.Revoke(ctx, "d1", exp); err != nil || ok {
		t.Errorf("second Revoke() = %v, %v; want false", ok, err)
	}
	if ok, _ := store.IsRevoked(ctx, "d1"); !ok {
		t.Error("IsRevoked() after revoke = false")
	}
	if ok, _ := store.IsRevoked(ctx, "d2"); ok {
		t.Error("unrelated digest reported revoked")
	}

	if ttl := mr.TTL("test:revoked:d1"); ttl <= 59*time.Minute || ttl > time.Hour {
		t.Errorf("TTL = %v; want about an hour", ttl)
	}
	mr.FastForward(time.Hour + time.Second)
	if ok, _ := store.IsRevoked(ctx, "d1"); ok {
		t.Error("revocation outlived the token")
	}
}

func TestRedisRevocations_PastExpiryKeepsMinimumTTL(t *testing.T) {
	mr, rdb := newRedis(t)
	store := repository.NewRedisRevocations(rdb, "")
	if ok, err := store.Revoke(context.Background(), "d", time.Now().Add(-time.Minute)); err != nil || !ok {
		t.Fatalf("Revoke() = %v, %v", ok, err)
	}
	if ttl := mr.TTL("natours:revoked:d"); ttl != time.Second {
		t.Errorf("TTL = %v; want 1s", ttl)
	}
}

func newMock(t *testing.T) (*repository.TokenRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
		db.Close()
	})
	return repository.NewTokenRepo(db), mock
}

func TestTokenRepo_Revoke(t *testing.T) {
	repo, mock := newMock(t)
	exp := time.Now().Add(time.Hour)

	mock.ExpectExec("DELETE FROM revoked_tokens WHERE token_hash=\\? AND expires_at <= UTC_TIMESTAMP\\(\\)").
		WithArgs("d").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO revoked_tokens").
		WithArgs("d", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Revoke(context.Background(), "d", exp)
	if err != nil || !ok {
		t.Errorf("Revoke() = %v, %v; want true", ok, err)
	}
}

func TestTokenRepo_RevokeTwice(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("DELETE FROM revoked_tokens").WithArgs("d").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO revoked_tokens").WithArgs("d", sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'd' for key 'PRIMARY'"})

	ok, err := repo.Revoke(context.Background(), "d", time.Now().Add(time.Hour))
	if err != nil || ok {
		t.Errorf("Revoke() = %v, %v; want false, nil", ok, err)
	}
}

func TestTokenRepo_IsRevoked(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT 1 FROM revoked_tokens WHERE token_hash=\\? AND expires_at > UTC_TIMESTAMP\\(\\)").
		WithArgs("live").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM revoked_tokens").
		WithArgs("expired").WillReturnRows(sqlmock.NewRows([]string{"1"}))

	if ok, err := repo.IsRevoked(context.Background(), "live"); err != nil || !ok {
		t.Errorf("IsRevoked(live) = %v, %v; want true", ok, err)
	}
	if ok, err := repo.IsRevoked(context.Background(), "expired"); err != nil || ok {
		t.Errorf("IsRevoked(expired) = %v, %v; want false", ok, err)
	}
}

func TestReviewRepo_ToursReviewedBy(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	a, b := uuid.New(), uuid.New()
	mock.ExpectQuery("SELECT DISTINCT tour_id FROM reviews WHERE user_id=\\?").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"tour_id"}).AddRow(a.String()).AddRow(b.String()))

	got, err := repository.NewReviewRepo(db).ToursReviewedBy(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ToursReviewedBy() error = %v", err)
	}
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("ToursReviewedBy() = %v; want [%s %s]", got, a, b)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

// memSet is an in-memory revocation layer that can be made to fail.
type memSet struct {
	mu   sync.Mutex
	keys map[string]time.Time
	err  error
}

func newMemSet() *memSet { return &memSet{keys: map[string]time.Time{}} }

func (m *memSet) IsRevoked(_ context.Context, d string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.keys[d]
	return ok, nil
}

func (m *memSet) Revoke(_ context.Context, d string, exp time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.keys[d]; ok {
		return false, nil
	}
	m.keys[d] = exp
	return true, nil
}

func TestCachedRevocations_SurvivesCacheLoss(t *testing.T) {
	ctx := context.Background()
	durable, cache := newMemSet(), newMemSet()
	store := repository.NewCachedRevocations(durable, cache, nil)

	if ok, err := store.Revoke(ctx, "d", time.Now().Add(time.Hour)); err != nil || !ok {
		t.Fatalf("Revoke() = %v, %v", ok, err)
	}
	if _, ok := durable.keys["d"]; !ok {
		t.Fatal("revocation not written to the durable store")
	}
	if _, ok := cache.keys["d"]; !ok {
		t.Error("revocation not mirrored into the cache")
	}

	cache.keys = map[string]time.Time{}
	if ok, err := store.IsRevoked(ctx, "d"); err != nil || !ok {
		t.Errorf("IsRevoked() after cache flush = %v, %v; want true", ok, err)
	}

	cache.err = errors.New("connection refused")
	if ok, err := store.IsRevoked(ctx, "d"); err != nil || !ok {
		t.Errorf("IsRevoked() with cache down = %v, %v; want true", ok, err)
	}
	if ok, err := store.Revoke(ctx, "e", time.Now().Add(time.Hour)); err != nil || !ok {
		t.Errorf("Revoke() with cache down = %v, %v; want true", ok, err)
	}
}

func TestCachedRevocations_DurableDecides(t *testing.T) {
	ctx := context.Background()
	durable, cache := newMemSet(), newMemSet()
	store := repository.NewCachedRevocations(durable, cache, nil)
	exp := time.Now().Add(time.Hour)

	store.Revoke(ctx, "d", exp)
	cache.keys = map[string]time.Time{}
	if ok, _ := store.Revoke(ctx, "d", exp); ok {
		t.Error("second Revoke() = true after the cache forgot the key")
	}

	durable.err = errors.New("db down")
	if _, err := store.Revoke(ctx, "x", exp); err == nil {
		t.Error("Revoke() ignored a durable store failure")
	}
	if _, ok := cache.keys["x"]; ok {
		t.Error("cache written although the durable write failed")
	}
	if _, err := store.IsRevoked(ctx, "x"); err == nil {
		t.Error("IsRevoked() hid a durable store failure on a cache miss")
	}
}

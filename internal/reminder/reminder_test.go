package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

func setupRedisLog(t *testing.T) (*RedisLog, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	l, err := NewRedisLog(context.Background(), "redis://"+s.Addr())
	if err != nil {
		t.Fatalf("NewRedisLog: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, s
}

func TestRedisLogClaimOnce(t *testing.T) {
	l, s := setupRedisLog(t)
	ctx := context.Background()
	app := uuid.New()
	day := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)

	first, err := l.Claim(ctx, app, day)
	if err != nil || !first {
		t.Fatalf("first claim = %v, %v; want true", first, err)
	}
	second, err := l.Claim(ctx, app, day)
	if err != nil || second {
		t.Fatalf("second claim = %v, %v; want false", second, err)
	}

	k := "reminder:" + app.String() + ":2024-01-07"
	if !s.Exists(k) {
		t.Fatalf("key %s not set", k)
	}
	if ttl := s.TTL(k); ttl <= 0 {
		t.Fatalf("ttl = %v, want positive", ttl)
	}

	next, err := l.Claim(ctx, app, day.AddDate(0, 0, 1))
	if err != nil || !next {
		t.Fatalf("claim on next day = %v, %v; want true", next, err)
	}
}

func TestRedisLogRelease(t *testing.T) {
	l, _ := setupRedisLog(t)
	ctx := context.Background()
	app := uuid.New()
	day := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)

	if _, err := l.Claim(ctx, app, day); err != nil {
		t.Fatal(err)
	}
	if err := l.Release(ctx, app, day); err != nil {
		t.Fatal(err)
	}
	ok, err := l.Claim(ctx, app, day)
	if err != nil || !ok {
		t.Fatalf("claim after release = %v, %v; want true", ok, err)
	}
}

func TestRedisLogUnavailable(t *testing.T) {
	if _, err := NewRedisLog(context.Background(), "redis://127.0.0.1:1"); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestMemoryLog(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()
	app := uuid.New()
	day := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)

	if ok, _ := l.Claim(ctx, app, day); !ok {
		t.Fatal("first claim should succeed")
	}
	if ok, _ := l.Claim(ctx, app, day); ok {
		t.Fatal("second claim should fail")
	}
	_ = l.Release(ctx, app, day)
	if ok, _ := l.Claim(ctx, app, day); !ok {
		t.Fatal("claim after release should succeed")
	}
}

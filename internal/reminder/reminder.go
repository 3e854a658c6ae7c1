// Package reminder records which maturity reminders were already sent so a
// re-run of the sweep on the same day does not send them twice.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Log claims (application, day) pairs.
type Log interface {
	// Claim reports true when the pair was not claimed before.
	Claim(ctx context.Context, applicationID uuid.UUID, day time.Time) (bool, error)
	// Release undoes a claim whose reminder could not be sent.
	Release(ctx context.Context, applicationID uuid.UUID, day time.Time) error
}

func key(applicationID uuid.UUID, day time.Time) string {
	return "reminder:" + applicationID.String() + ":" + day.Format(time.DateOnly)
}

// RedisLog stores claims as expiring Redis keys.
type RedisLog struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLog connects to redisURL and verifies the connection.
func NewRedisLog(ctx context.Context, redisURL string) (*RedisLog, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisLogWithClient(client), nil
}

// NewRedisLogWithClient wraps an existing client.
func NewRedisLogWithClient(client *redis.Client) *RedisLog {
	return &RedisLog{client: client, ttl: 72 * time.Hour}
}

// Claim sets the key if absent.
func (l *RedisLog) Claim(ctx context.Context, applicationID uuid.UUID, day time.Time) (bool, error) {
	ok, err := l.client.SetNX(ctx, key(applicationID, day), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	return ok, nil
}

// Release deletes the key.
func (l *RedisLog) Release(ctx context.Context, applicationID uuid.UUID, day time.Time) error {
	if err := l.client.Del(ctx, key(applicationID, day)).Err(); err != nil {
		return fmt.Errorf("release reminder: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (l *RedisLog) Close() error {
	return l.client.Close()
}

// MemoryLog is a process-local Log. Claims are lost when the process
// exits, so it only suits tests and single long-running processes.
type MemoryLog struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewMemoryLog returns an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{claimed: make(map[string]struct{})}
}

func (l *MemoryLog) Claim(ctx context.Context, applicationID uuid.UUID, day time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key(applicationID, day)
	if _, ok := l.claimed[k]; ok {
		return false, nil
	}
	l.claimed[k] = struct{}{}
	return true, nil
}

func (l *MemoryLog) Release(ctx context.Context, applicationID uuid.UUID, day time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.claimed, key(applicationID, day))
	return nil
}

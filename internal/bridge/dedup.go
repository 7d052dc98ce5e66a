package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupWindow bounds how long a delivered event key is remembered. Source
// redeliveries outside the window are passed through; the at-least-once
// inheritance from the chain layer is narrowed, not eliminated.
const DedupWindow = 24 * time.Hour

// MemoryDeduper is the in-process fallback when no redis is configured.
type MemoryDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{
		seen:   make(map[string]time.Time),
		window: DedupWindow,
		now:    time.Now,
	}
}

func (m *MemoryDeduper) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, at := range m.seen {
		if now.Sub(at) > m.window {
			delete(m.seen, k)
		}
	}
	if _, ok := m.seen[key]; ok {
		return true, nil
	}
	m.seen[key] = now
	return false, nil
}

// RedisDeduper shares the delivery window across restarts and replicas.
type RedisDeduper struct {
	client *redis.Client
	prefix string
}

func NewRedisDeduper(redisURL string) (*RedisDeduper, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisDeduper{client: client, prefix: "donation:"}, nil
}

func NewRedisDeduperWithClient(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client, prefix: "donation:"}
}

// Seen records the key with SETNX; a false result means this is the first
// delivery inside the window.
func (r *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	created, err := r.client.SetNX(ctx, r.prefix+key, 1, DedupWindow).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !created, nil
}

func (r *RedisDeduper) Close() error {
	return r.client.Close()
}

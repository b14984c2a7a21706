// Package dedupe remembers which post addresses have already been handed out
// so repeated searches can skip them.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store reports whether an address is being seen for the first time.
// FirstSeen marks the address as seen in the same step.
type Store interface {
	FirstSeen(ctx context.Context, address string) (bool, error)
	Close() error
}

// Memory is a process-local Store.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

func (m *Memory) FirstSeen(_ context.Context, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[address]; ok {
		return false, nil
	}
	m.seen[address] = struct{}{}
	return true, nil
}

func (m *Memory) Close() error { return nil }

// DefaultKey is the Redis set holding seen addresses.
const DefaultKey = "gleaner:seen"

// RedisConfig configures a Redis-backed Store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// TTL expires the whole set after the last insert. Zero keeps it forever.
	TTL time.Duration
}

// Redis shares seen addresses across processes and runs.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection with a PING.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("dedupe: redis address is required")
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("dedupe: failed to connect to redis: %w", err)
	}

	return &Redis{client: client, key: cfg.Key, ttl: cfg.TTL}, nil
}

func (r *Redis) FirstSeen(ctx context.Context, address string) (bool, error) {
	added, err := r.client.SAdd(ctx, r.key, address).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe: sadd: %w", err)
	}
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, r.key, r.ttl).Err(); err != nil {
			return false, fmt.Errorf("dedupe: expire: %w", err)
		}
	}
	return added == 1, nil
}

// Reset forgets every seen address.
func (r *Redis) Reset(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("dedupe: del: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	// SlugPrefix is the prefix for slug keys in Redis
	SlugPrefix = "short:slug:"
	// DefaultTTL is the default TTL for cached items (24 hours)
	DefaultTTL = 24 * time.Hour
)

// RedisCache is a read-through cache of short links keyed by slug
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(addr, password string, db, poolSize int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached link for a slug, or nil on a miss
func (r *RedisCache) Get(ctx context.Context, slug string) (*model.ShortLink, error) {
	val, err := r.client.Get(ctx, SlugPrefix+slug).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from Redis: %w", err)
	}

	var entry entry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cached link: %w", err)
	}
	return entry.link(), nil
}

// Set stores a link under its slug
func (r *RedisCache) Set(ctx context.Context, link *model.ShortLink) error {
	data, err := json.Marshal(newEntry(link))
	if err != nil {
		return fmt.Errorf("failed to encode link: %w", err)
	}
	if err := r.client.Set(ctx, SlugPrefix+link.Slug, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in Redis: %w", err)
	}
	return nil
}

// Delete removes slugs from the cache
func (r *RedisCache) Delete(ctx context.Context, slugs ...string) error {
	if len(slugs) == 0 {
		return nil
	}
	keys := make([]string, len(slugs))
	for i, s := range slugs {
		keys[i] = SlugPrefix + s
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete from Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// GetClient returns the underlying Redis client
func (r *RedisCache) GetClient() *redis.Client {
	return r.client
}

// entry is the cached form of a link. Counters are left out because they
// change on every click.
type entry struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	LongURL        string `json:"long_url"`
	Slug           string `json:"slug"`
	Protected      bool   `json:"protected"`
	HashedPassword string `json:"hashed_password,omitempty"`
	UID            string `json:"uid"`
}

func newEntry(l *model.ShortLink) entry {
	return entry{
		ID:             l.ID,
		Title:          l.Title,
		LongURL:        l.LongURL,
		Slug:           l.Slug,
		Protected:      l.IsPasswordProtected,
		HashedPassword: l.HashedPassword,
		UID:            l.UID,
	}
}

func (e entry) link() *model.ShortLink {
	return &model.ShortLink{
		ID:                  e.ID,
		Title:               e.Title,
		LongURL:             e.LongURL,
		Slug:                e.Slug,
		IsPasswordProtected: e.Protected,
		HashedPassword:      e.HashedPassword,
		UID:                 e.UID,
	}
}

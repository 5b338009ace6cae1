// Package cache keeps the recent mood feed and per-owner rate limits in Redis.
// A nil *Cache is valid and behaves as an always-missing cache that allows
// every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/moodmap/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	feedVersionKey = "moods:feed:version"
	feedTTL        = 30 * time.Second
)

// ErrUnavailable is returned by a nil cache.
var ErrUnavailable = errors.New("cache not available")

type Cache struct {
	client *redis.Client
}

// NewCache connects to Redis and pings it.
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// New wraps an existing client without pinging it.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) available() bool {
	return c != nil && c.client != nil
}

// FeedVersion returns the invalidation counter. Readers take it once before
// going to the database and store what they read under that version, so a
// page read before an upsert can never land under the post-upsert version.
func (c *Cache) FeedVersion(ctx context.Context) (int64, error) {
	if !c.available() {
		return 0, ErrUnavailable
	}
	version, err := c.client.Get(ctx, feedVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return version, nil
}

func feedKey(version int64, since time.Time) string {
	return fmt.Sprintf("moods:feed:%d:%d", version, since.Unix())
}

// RecentMoods returns the cached feed for since at version. A miss is
// reported with ok == false and a nil error.
func (c *Cache) RecentMoods(ctx context.Context, version int64, since time.Time) (moods []models.Mood, ok bool, err error) {
	if !c.available() {
		return nil, false, ErrUnavailable
	}
	data, err := c.client.Get(ctx, feedKey(version, since)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(data, &moods); err != nil {
		return nil, false, err
	}
	return moods, true, nil
}

// StoreRecentMoods caches the feed for since under version.
func (c *Cache) StoreRecentMoods(ctx context.Context, version int64, since time.Time, moods []models.Mood) error {
	if !c.available() {
		return ErrUnavailable
	}
	data, err := json.Marshal(moods)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, feedKey(version, since), data, feedTTL).Err()
}

// InvalidateRecentMoods drops every cached feed.
func (c *Cache) InvalidateRecentMoods(ctx context.Context) error {
	if !c.available() {
		return ErrUnavailable
	}
	return c.client.Incr(ctx, feedVersionKey).Err()
}

// AllowUpsert counts one upsert for owner and reports whether it stays within
// limit per window. It fails open: without Redis every upsert is allowed.
func (c *Cache) AllowUpsert(ctx context.Context, owner int64, limit int, window time.Duration) (bool, error) {
	if !c.available() || limit <= 0 {
		return true, nil
	}
	key := fmt.Sprintf("ratelimit:upsert:%d", owner)

	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return true, nil
	}

	if count == 1 {
		c.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (c *Cache) Close() error {
	if !c.available() {
		return nil
	}
	return c.client.Close()
}

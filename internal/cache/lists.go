package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MostFollowedKey holds the JSON encoded most-followed ranking
	MostFollowedKey = "lists:most_followed"

	// FollowersCountPrefix is the key prefix for per-list follower counts
	FollowersCountPrefix = "list:followers:"

	// DefaultTTL bounds how stale a cached aggregate can get
	DefaultTTL = 5 * time.Minute
)

// ListCache caches the list aggregates that are expensive to compute.
// Every Get returns found=false on a miss so callers fall back to Postgres.
type ListCache interface {
	GetMostFollowed(ctx context.Context) (ids []int64, found bool, err error)
	SetMostFollowed(ctx context.Context, ids []int64) error

	GetFollowersCount(ctx context.Context, listID int64) (count int64, found bool, err error)
	SetFollowersCount(ctx context.Context, listID, count int64) error

	// InvalidateList drops the follower count of listID and the ranking.
	InvalidateList(ctx context.Context, listID int64) error

	// InvalidateAll drops the ranking and every follower count.
	InvalidateAll(ctx context.Context) error
}

// RedisListCache implements ListCache with plain Redis strings.
type RedisListCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListCache creates a ListCache backed by Redis. A non-positive ttl uses DefaultTTL.
func NewListCache(client *redis.Client, ttl time.Duration) ListCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisListCache{client: client, ttl: ttl}
}

func followersKey(listID int64) string {
	return fmt.Sprintf("%s%d", FollowersCountPrefix, listID)
}

func (c *RedisListCache) GetMostFollowed(ctx context.Context) ([]int64, bool, error) {
	raw, err := c.client.Get(ctx, MostFollowedKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get most followed: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		// A corrupt entry behaves like a miss and is overwritten on the next Set.
		log.Printf("[ListCache] GetMostFollowed: discarding malformed entry: %v", err)
		return nil, false, nil
	}
	return ids, true, nil
}

func (c *RedisListCache) SetMostFollowed(ctx context.Context, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal most followed: %w", err)
	}
	if err := c.client.Set(ctx, MostFollowedKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set most followed: %w", err)
	}
	return nil
}

func (c *RedisListCache) GetFollowersCount(ctx context.Context, listID int64) (int64, bool, error) {
	raw, err := c.client.Get(ctx, followersKey(listID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get followers count: %w", err)
	}

	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("[ListCache] GetFollowersCount: discarding malformed entry list=%d: %v", listID, err)
		return 0, false, nil
	}
	return count, true, nil
}

func (c *RedisListCache) SetFollowersCount(ctx context.Context, listID, count int64) error {
	if err := c.client.Set(ctx, followersKey(listID), count, c.ttl).Err(); err != nil {
		return fmt.Errorf("set followers count: %w", err)
	}
	return nil
}

// InvalidateList removes both affected keys in one round trip.
func (c *RedisListCache) InvalidateList(ctx context.Context, listID int64) error {
	startTime := time.Now()

	if err := c.client.Del(ctx, MostFollowedKey, followersKey(listID)).Err(); err != nil {
		log.Printf("[ListCache] InvalidateList FAILED: list=%d err=%v", listID, err)
		return fmt.Errorf("invalidate list: %w", err)
	}

	log.Printf("[ListCache] InvalidateList OK: list=%d duration=%v", listID, time.Since(startTime))
	return nil
}

// InvalidateAll scans follower count keys in batches instead of using KEYS.
func (c *RedisListCache) InvalidateAll(ctx context.Context) error {
	startTime := time.Now()
	keys := []string{MostFollowedKey}

	iter := c.client.Scan(ctx, 0, FollowersCountPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan follower keys: %w", err)
	}

	pipe := c.client.Pipeline()
	for start := 0; start < len(keys); start += 100 {
		end := min(start+100, len(keys))
		pipe.Del(ctx, keys[start:end]...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[ListCache] InvalidateAll FAILED: keys=%d err=%v", len(keys), err)
		return fmt.Errorf("invalidate all: %w", err)
	}

	log.Printf("[ListCache] InvalidateAll OK: keys=%d duration=%v", len(keys), time.Since(startTime))
	return nil
}

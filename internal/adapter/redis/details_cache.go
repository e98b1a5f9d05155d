// Package redis caches user details in Redis in front of a slower repository.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sugar/internal/domain"
	"sugar/internal/metrics"
)

// Dial parses a redis:// URL and checks the server is reachable.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// ErrStaleEntry reports that details were saved but the cached copy could be
// neither refreshed nor evicted.
var ErrStaleEntry = errors.New("cached user details may be stale")

// DetailsCache is a cache-aside UserDetailsRepository. Cache failures fall
// through to the backing repository.
type DetailsCache struct {
	next    domain.UserDetailsRepository
	client  *redis.Client
	ttl     time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

var _ domain.UserDetailsRepository = (*DetailsCache)(nil)

// NewDetailsCache wraps next with a Redis cache whose entries live for ttl.
func NewDetailsCache(next domain.UserDetailsRepository, client *redis.Client, ttl time.Duration) *DetailsCache {
	return &DetailsCache{next: next, client: client, ttl: ttl, log: zap.NewNop()}
}

// WithLogger sets the logger used to report cache failures.
func (c *DetailsCache) WithLogger(log *zap.Logger) *DetailsCache {
	c.log = log
	return c
}

// WithMetrics records hit, miss and error counts.
func (c *DetailsCache) WithMetrics(m *metrics.Metrics) *DetailsCache {
	c.metrics = m
	return c
}

func detailsKey(userID int64) string {
	return fmt.Sprintf("user:%d:details", userID)
}

// GetUserDetails serves from the cache, loading and storing on a miss.
// Users without details are not cached.
func (c *DetailsCache) GetUserDetails(ctx context.Context, userID int64) (*domain.UserDetails, error) {
	key := detailsKey(userID)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var d domain.UserDetails
		if err := json.Unmarshal(data, &d); err == nil {
			c.count("hit")
			return &d, nil
		}
		c.log.Warn("discarding corrupt cache entry", zap.String("key", key))
		c.count("error")
	case errors.Is(err, redis.Nil):
		c.count("miss")
	default:
		c.log.Warn("details cache get failed", zap.String("key", key), zap.Error(err))
		c.count("error")
	}

	d, err := c.next.GetUserDetails(ctx, userID)
	if err != nil || d == nil {
		return d, err
	}
	if payload, err := json.Marshal(d); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.Warn("details cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return d, nil
}

// SaveUserDetails writes through to the backing repository and then replaces
// the cached entry. If Redis takes neither the new entry nor an eviction the
// save still stands and ErrStaleEntry is returned.
func (c *DetailsCache) SaveUserDetails(ctx context.Context, d domain.UserDetails) error {
	if err := c.next.SaveUserDetails(ctx, d); err != nil {
		return err
	}
	key := detailsKey(d.UserID)
	payload, err := json.Marshal(d)
	if err == nil {
		err = c.client.Set(ctx, key, payload, c.ttl).Err()
	}
	if err == nil {
		return nil
	}
	c.log.Warn("details cache refresh failed", zap.String("key", key), zap.Error(err))
	if delErr := c.client.Del(ctx, key).Err(); delErr != nil {
		c.log.Error("details cache evict failed", zap.String("key", key), zap.Error(delErr))
		return fmt.Errorf("user %d: %w: %w", d.UserID, ErrStaleEntry, delErr)
	}
	return nil
}

func (c *DetailsCache) count(result string) {
	if c.metrics != nil {
		c.metrics.DetailsCacheHits.WithLabelValues(result).Inc()
	}
}

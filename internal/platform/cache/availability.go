// Package cache provides the Redis-backed availability cache. Availability
// queries dominate read traffic around popular dates, so the per-date slot
// listing is cached with a short TTL and invalidated on every slot commit
// and release in this process.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courtside/stringing-api/internal/config"
	"github.com/courtside/stringing-api/internal/domain"
)

// ErrMiss indicates the requested date has no cached entry.
var ErrMiss = errors.New("availability cache miss")

// AvailabilityCache caches per-date slot listings in Redis.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewAvailabilityCache creates a cache backed by the given Redis settings.
// If logger is nil, a default logger is used.
func NewAvailabilityCache(cfg config.RedisConfig, logger *slog.Logger) *AvailabilityCache {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &AvailabilityCache{
		client: client,
		ttl:    time.Duration(cfg.AvailabilityTTL) * time.Second,
		logger: logger.With(slog.String("component", "availability_cache")),
	}
}

// Ping tests the Redis connection.
func (c *AvailabilityCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (c *AvailabilityCache) Close() error {
	return c.client.Close()
}

// Get returns the cached slot listing for the date, or ErrMiss.
func (c *AvailabilityCache) Get(ctx context.Context, date time.Time) ([]domain.TimeSlot, error) {
	raw, err := c.client.Get(ctx, c.key(date)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to read availability cache: %w", err)
	}

	var slots []domain.TimeSlot
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		// A corrupt entry behaves like a miss; the caller refills it.
		c.logger.Warn("dropping corrupt availability cache entry",
			slog.String("date", date.Format("2006-01-02")),
			slog.String("error", err.Error()))
		return nil, ErrMiss
	}
	return slots, nil
}

// Set stores the slot listing for the date with the configured TTL.
func (c *AvailabilityCache) Set(ctx context.Context, date time.Time, slots []domain.TimeSlot) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}
	if err := c.client.Set(ctx, c.key(date), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write availability cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached listing for the date. Called after every slot
// commit and release so availability reflects the new balance immediately.
func (c *AvailabilityCache) Invalidate(ctx context.Context, date time.Time) error {
	if err := c.client.Del(ctx, c.key(date)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate availability cache: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) key(date time.Time) string {
	return "availability:" + date.Format("2006-01-02")
}

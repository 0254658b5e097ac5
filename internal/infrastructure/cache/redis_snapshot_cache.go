package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const snapshotKeyPrefix = "billing:snapshot:"

// RedisSnapshotCache caches validated customer service configuration in
// Redis so batch runs across instances share one snapshot load. Cache
// failures degrade to misses; the database remains the source of truth.
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSnapshotCache connects to Redis and returns a snapshot cache.
func NewRedisSnapshotCache(cfg config.RedisConfig, ttl time.Duration, logger *zap.Logger) (*RedisSnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSnapshotCacheWithClient(client, ttl, logger), nil
}

// NewRedisSnapshotCacheWithClient creates a cache with an existing Redis
// client. Useful for testing or when sharing a client across components.
func NewRedisSnapshotCacheWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSnapshotCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSnapshotCache{client: client, ttl: ttl, logger: logger}
}

func snapshotKey(customerID uuid.UUID) string {
	return snapshotKeyPrefix + customerID.String()
}

// Get fetches a cached snapshot. Any Redis or decode failure is a miss.
func (c *RedisSnapshotCache) Get(ctx context.Context, customerID uuid.UUID) ([]*billing.CustomerService, bool) {
	raw, err := c.client.Get(ctx, snapshotKey(customerID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("snapshot cache read failed",
				zap.String("customer_id", customerID.String()), zap.Error(err))
		}
		return nil, false
	}

	var services []*billing.CustomerService
	if err := json.Unmarshal(raw, &services); err != nil {
		c.logger.Warn("snapshot cache entry corrupt, dropping",
			zap.String("customer_id", customerID.String()), zap.Error(err))
		c.client.Del(ctx, snapshotKey(customerID))
		return nil, false
	}
	return services, true
}

// Set stores a snapshot with the configured TTL. Failures are logged and
// otherwise ignored.
func (c *RedisSnapshotCache) Set(ctx context.Context, customerID uuid.UUID, services []*billing.CustomerService) {
	raw, err := json.Marshal(services)
	if err != nil {
		c.logger.Warn("snapshot cache encode failed",
			zap.String("customer_id", customerID.String()), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, snapshotKey(customerID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("snapshot cache write failed",
			zap.String("customer_id", customerID.String()), zap.Error(err))
	}
}

// Invalidate drops a customer's cached snapshot, called when service
// configuration changes.
func (c *RedisSnapshotCache) Invalidate(ctx context.Context, customerID uuid.UUID) {
	if err := c.client.Del(ctx, snapshotKey(customerID)).Err(); err != nil {
		c.logger.Warn("snapshot cache invalidation failed",
			zap.String("customer_id", customerID.String()), zap.Error(err))
	}
}

// Close closes the underlying Redis client.
func (c *RedisSnapshotCache) Close() error {
	return c.client.Close()
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisReportCacheConfig configures the validation-report cache.
type RedisReportCacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// RedisReportCache caches serialized validation reports keyed by catalog
// id, so repeat lookups of an unchanged catalog skip a full validation
// run.
type RedisReportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisReportCache connects to redis and returns the cache.
func NewRedisReportCache(config *RedisReportCacheConfig, logger *zap.Logger) *RedisReportCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := config.TTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &RedisReportCache{
		client: redis.NewClient(&redis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		}),
		ttl:    ttl,
		logger: logger,
	}
}

func reportKey(catalogID string) string {
	return "servicegraph:report:" + catalogID
}

// Put stores a report value under the catalog id.
func (c *RedisReportCache) Put(ctx context.Context, catalogID string, report interface{}) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := c.client.Set(ctx, reportKey(catalogID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching report for %s: %w", catalogID, err)
	}
	c.logger.Debug("report cached", zap.String("catalog_id", catalogID))
	return nil
}

// Get loads a cached report into out. The second return is false on a
// cache miss.
func (c *RedisReportCache) Get(ctx context.Context, catalogID string, out interface{}) (bool, error) {
	data, err := c.client.Get(ctx, reportKey(catalogID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading cached report for %s: %w", catalogID, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decoding cached report for %s: %w", catalogID, err)
	}
	return true, nil
}

// Invalidate drops the cached report for a catalog.
func (c *RedisReportCache) Invalidate(ctx context.Context, catalogID string) error {
	return c.client.Del(ctx, reportKey(catalogID)).Err()
}

// Close releases the client.
func (c *RedisReportCache) Close() error {
	return c.client.Close()
}

package forecast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"salesforecast-backend/internal/config"
	"salesforecast-backend/internal/scenario"

	"github.com/redis/go-redis/v9"
)

// Cache stores finished forecasts. Get reports a miss as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]Point, bool, error)
	Set(ctx context.Context, key string, points []Point, ttl time.Duration) error
}

// NoopCache is used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]Point, bool, error) { return nil, false, nil }

func (NoopCache) Set(context.Context, string, []Point, time.Duration) error { return nil }

type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg config.RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &RedisCache{rdb: rdb}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]Point, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var points []Point
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, false, err
	}
	for i := range points {
		points[i].Date, _ = time.Parse(dateLayout, points[i].DS)
	}
	return points, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, points []Point, ttl time.Duration) error {
	data, err := json.Marshal(points)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// cacheKey identifies a forecast by everything that can change its output.
// The dataset version changes on every upload, so stale entries are never read.
// mode names the engine's training setup (see Engine.Mode).
func cacheKey(userID uint, datasetVersion, mode, product, city string, days int, params scenario.Params) string {
	payload, _ := json.Marshal(struct {
		Mode    string    `json:"m"`
		Product string    `json:"p"`
		City    string    `json:"c"`
		Days    int       `json:"d"`
		Row     []float64 `json:"r"`
	}{mode, product, city, days, scenario.Encode(params).Values()})

	sum := sha256.Sum256(payload)
	return fmt.Sprintf("forecast:v1:%d:%s:%s", userID, datasetVersion, hex.EncodeToString(sum[:16]))
}

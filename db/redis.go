// api/db/redis.go
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logger "github.com/veritas-grc/veritas/api/logging"
)

var RedisClient *redis.Client

func InitRedis() error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  viper.GetDuration("redis.dialTimeout"),
		ReadTimeout:  viper.GetDuration("redis.readTimeout"),
		WriteTimeout: viper.GetDuration("redis.writeTimeout"),
		PoolSize:     viper.GetInt("redis.poolSize"),
		PoolTimeout:  viper.GetDuration("redis.poolTimeout"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis")
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
}

// CacheStats stores a serialized stats aggregate for a given window. The
// payload is any JSON-marshalable value so the db package does not depend
// on the audit domain types.
func CacheStats(ctx context.Context, windowDays int, stats interface{}) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	key := fmt.Sprintf("audit:stats:%d", windowDays)
	ttl := viper.GetDuration("stats.cacheTTL")
	if err := RedisClient.Set(ctx, key, statsJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache stats: %w", err)
	}

	logger.Debug("Stats cached successfully", zap.Int("windowDays", windowDays))
	return nil
}

// GetCachedStats unmarshals a cached stats aggregate into dest. Returns
// false on a cache miss.
func GetCachedStats(ctx context.Context, windowDays int, dest interface{}) (bool, error) {
	key := fmt.Sprintf("audit:stats:%d", windowDays)
	statsJSON, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		logger.Debug("Stats not found in cache", zap.Int("windowDays", windowDays))
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to get stats from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(statsJSON), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal stats: %w", err)
	}

	logger.Debug("Stats retrieved from cache", zap.Int("windowDays", windowDays))
	return true, nil
}

// InvalidateStats drops every cached stats window; called after each append
// so windows never serve stale aggregates for longer than one round trip.
func InvalidateStats(ctx context.Context) error {
	iter := RedisClient.Scan(ctx, 0, "audit:stats:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := RedisClient.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to invalidate cached stats: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached stats keys: %w", err)
	}
	return nil
}

func RateLimit(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	pipe := RedisClient.Pipeline()
	now := time.Now().UnixNano()
	key = fmt.Sprintf("ratelimit:%s", key)

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-(per.Nanoseconds())))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, per)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to execute rate limit commands: %w", err)
	}

	count := cmds[2].(*redis.IntCmd).Val()
	allowed := count <= int64(limit)
	logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Int("limit", limit),
		zap.Bool("allowed", allowed))
	return allowed, nil
}

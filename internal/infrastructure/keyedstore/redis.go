package keyedstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/config"
	"github.com/pagebound/payment-service/internal/domain/repository"
)

// redisStore implements repository.KeyedStore on a redis connection.
// Every operation maps to one redis command, so atomicity comes from the
// server and holds across service replicas.
type redisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore connects to redis and returns the keyed store
func NewRedisStore(cfg *config.RedisConfig, logger *zap.Logger) (repository.KeyedStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", cfg.Addr))

	return &redisStore{
		client: client,
		logger: logger,
	}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrKeyNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *redisStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	created, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return created, nil
}

func (s *redisStore) GetDel(ctx context.Context, key string) (string, error) {
	val, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrKeyNotFound
		}
		return "", fmt.Errorf("redis getdel: %w", err)
	}
	return val, nil
}

func (s *redisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 && ttl > 0 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			// The counter lives forever in the worst case; log and move on
			s.logger.Warn("Failed to set counter TTL",
				zap.String("key", key),
				zap.Error(err))
		}
	}
	return count, nil
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *redisStore) AddDeadline(ctx context.Context, index, member string, due time.Time) error {
	err := s.client.ZAdd(ctx, index, &redis.Z{
		Score:  float64(due.Unix()),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}
	return nil
}

func (s *redisStore) RemoveDeadline(ctx context.Context, index, member string) (bool, error) {
	removed, err := s.client.ZRem(ctx, index, member).Result()
	if err != nil {
		return false, fmt.Errorf("redis zrem: %w", err)
	}
	return removed > 0, nil
}

func (s *redisStore) DueMembers(ctx context.Context, index string, now time.Time) ([]string, error) {
	members, err := s.client.ZRangeByScore(ctx, index, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore: %w", err)
	}
	return members, nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisValuePrefix = "entity:"
	redisIndexKey    = "entity-index"
	redisScanBatch   = 256
)

// RedisEntityStore implements EntityStore on Redis.
// Records live under "entity:<key>"; a sorted set with equal scores indexes
// the keys lexicographically for range scans.
type RedisEntityStore struct {
	client *redis.Client
	logger *zap.Logger
}

// RedisOptions holds the connection settings for RedisEntityStore
type RedisOptions struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// NewRedisEntityStore creates a Redis entity store. The connection is not
// checked here; use ConnectWithRetry with Ping.
func NewRedisEntityStore(opts RedisOptions, logger *zap.Logger) *RedisEntityStore {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	return &RedisEntityStore{
		client: client,
		logger: logger,
	}
}

// NewRedisEntityStoreFromClient wraps an existing client
func NewRedisEntityStoreFromClient(client *redis.Client, logger *zap.Logger) *RedisEntityStore {
	return &RedisEntityStore{client: client, logger: logger}
}

// Get retrieves the record for key
func (s *RedisEntityStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	data, err := s.client.Get(ctx, redisValuePrefix+string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return data, nil
}

// Put stores the record and indexes the key in one transaction
func (s *RedisEntityStore) Put(ctx context.Context, key, record []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisValuePrefix+string(key), record, 0)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: 0, Member: string(key)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put entity: %w", err)
	}
	return nil
}

// Range walks the lexicographic index in batches and fetches records with MGET
func (s *RedisEntityStore) Range(ctx context.Context, start, end []byte, fn func(key, record []byte) bool) error {
	lexMin := "[" + string(start)
	lexMax := "+"
	if end != nil {
		lexMax = "(" + string(end)
	}

	for {
		keys, err := s.client.ZRangeByLex(ctx, redisIndexKey, &redis.ZRangeBy{
			Min:   lexMin,
			Max:   lexMax,
			Count: redisScanBatch,
		}).Result()
		if err != nil {
			return fmt.Errorf("failed to scan entity index: %w", err)
		}
		if len(keys) == 0 {
			return nil
		}

		valueKeys := make([]string, len(keys))
		for i, k := range keys {
			valueKeys[i] = redisValuePrefix + k
		}
		values, err := s.client.MGet(ctx, valueKeys...).Result()
		if err != nil {
			return fmt.Errorf("failed to fetch entities: %w", err)
		}

		for i, v := range values {
			record, ok := v.(string)
			if !ok {
				s.logger.Debug("Indexed entity has no value", zap.String("key", keys[i]))
				continue
			}
			if !fn([]byte(keys[i]), []byte(record)) {
				return nil
			}
		}

		if len(keys) < redisScanBatch {
			return nil
		}
		lexMin = "(" + keys[len(keys)-1]
	}
}

// Ping checks the Redis connection
func (s *RedisEntityStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisEntityStore) Close() error {
	return s.client.Close()
}

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
)

// RedisConfig holds Redis connection settings for the store backend.
type RedisConfig struct {
	Address      string        `json:"address"`
	Password     string        `json:"password"`
	Database     int           `json:"database"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	KeyPrefix    string        `json:"key_prefix"`
}

// RedisStore implements Store on a Redis backend. All calls pass through a
// circuit breaker so a dead backend trips fast instead of timing out on
// every decision.
type RedisStore struct {
	client    *redis.Client
	breaker   *gobreaker.CircuitBreaker
	keyPrefix string
	logger    *slog.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(config *RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.Database,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-store",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Cache misses are normal operation, not backend failures.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &RedisStore{
		client:    client,
		breaker:   breaker,
		keyPrefix: config.KeyPrefix,
		logger:    logger.With("component", "redis-store"),
	}, nil
}

func (rs *RedisStore) key(key string) string {
	if rs.keyPrefix == "" {
		return key
	}
	return rs.keyPrefix + ":" + key
}

// Get retrieves a value, returning ErrNotFound for missing or expired keys.
func (rs *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := rs.breaker.Execute(func() (interface{}, error) {
		data, err := rs.client.Get(ctx, rs.key(key)).Bytes()
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return data, err
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Set stores a value with the given TTL.
func (rs *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := rs.breaker.Execute(func() (interface{}, error) {
		return nil, rs.client.Set(ctx, rs.key(key), value, ttl).Err()
	})
	return err
}

// Delete removes a key. Deleting a missing key is not an error.
func (rs *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := rs.breaker.Execute(func() (interface{}, error) {
		return nil, rs.client.Del(ctx, rs.key(key)).Err()
	})
	return err
}

// Exists reports whether a key is present and unexpired.
func (rs *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	result, err := rs.breaker.Execute(func() (interface{}, error) {
		n, err := rs.client.Exists(ctx, rs.key(key)).Result()
		return n > 0, err
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// Close releases the underlying Redis connection pool.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

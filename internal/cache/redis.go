package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrCacheDown = errors.New("cache unavailable")
)

// Cache is the JSON key/value store the service layer reads through.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetWithTags(ctx context.Context, key string, value interface{}, expiration time.Duration, tags []string) error
	Delete(ctx context.Context, keys ...string) error
	InvalidateByTag(ctx context.Context, tag string) error
	Version(ctx context.Context, versionKey string) (int64, error)
	BumpVersion(ctx context.Context, versionKey string, expiration time.Duration) error
	SetIfVersion(ctx context.Context, key string, value interface{}, expiration time.Duration, versionKey string, version int64) (bool, error)
	Health(ctx context.Context) error
}

type RedisCache struct {
	client  *redis.Client
	prefix  string
	breaker *CircuitBreaker
	metrics *CacheMetrics
}

type CacheConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// KeyPrefix namespaces every key so several deployments can share a DB.
	KeyPrefix string
	Breaker   *CircuitBreakerConfig
}

func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "taskapi:",
	}
}

func NewRedisCache(config *CacheConfig) *RedisCache {
	if config == nil {
		config = DefaultCacheConfig()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	return &RedisCache{
		client:  rdb,
		prefix:  config.KeyPrefix,
		breaker: NewCircuitBreaker(config.Breaker),
		metrics: NewCacheMetrics(),
	}
}

// Client exposes the underlying connection for components, such as the job
// queue, that share the Redis deployment.
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

func (r *RedisCache) Metrics() *CacheMetrics {
	return r.metrics
}

func (r *RedisCache) Breaker() *CircuitBreaker {
	return r.breaker
}

func (r *RedisCache) key(k string) string {
	return r.prefix + k
}

func (r *RedisCache) tagKey(tag string) string {
	return r.prefix + "tag:" + tag
}

// do runs fn through the circuit breaker. A cache miss does not count as a
// failure, and an open breaker surfaces as ErrCacheDown.
func (r *RedisCache) do(fn func() error) error {
	var miss bool
	err := r.breaker.Execute(func() error {
		err := fn()
		if errors.Is(err, redis.Nil) {
			miss = true
			return nil
		}
		return err
	})
	switch {
	case errors.Is(err, ErrCircuitBreakerOpen):
		r.metrics.RecordError()
		return ErrCacheDown
	case err != nil:
		r.metrics.RecordError()
		return err
	case miss:
		return redis.Nil
	}
	return nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	err = r.do(func() error {
		return r.client.Set(ctx, r.key(key), data, expiration).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	r.metrics.RecordSet()
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	var data []byte
	err := r.do(func() error {
		var err error
		data, err = r.client.Get(ctx, r.key(key)).Bytes()
		return err
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.metrics.RecordMiss()
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		r.metrics.RecordError()
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	r.metrics.RecordHit()
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}

	err := r.do(func() error {
		return r.client.Del(ctx, full...).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	r.metrics.RecordDelete()
	return nil
}

// DeletePattern removes every key matching pattern, walking the keyspace with
// SCAN so large databases are not blocked.
func (r *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	return r.do(func() error {
		iter := r.client.Scan(ctx, 0, r.key(pattern), 100).Iterator()
		batch := make([]string, 0, 100)
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == cap(batch) {
				if err := r.client.Del(ctx, batch...).Err(); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan keys for pattern %s: %w", pattern, err)
		}
		if len(batch) > 0 {
			return r.client.Del(ctx, batch...).Err()
		}
		return nil
	})
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := r.do(func() error {
		var err error
		n, err = r.client.Exists(ctx, r.key(key)).Result()
		return err
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetWithTags stores value and records key under each tag so the group can be
// dropped later with InvalidateByTag.
func (r *RedisCache) SetWithTags(ctx context.Context, key string, value interface{}, expiration time.Duration, tags []string) error {
	if err := r.Set(ctx, key, value, expiration); err != nil {
		return err
	}

	return r.do(func() error {
		pipe := r.client.Pipeline()
		for _, tag := range tags {
			tagKey := r.tagKey(tag)
			pipe.SAdd(ctx, tagKey, r.key(key))
			pipe.Expire(ctx, tagKey, expiration)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
}

func (r *RedisCache) InvalidateByTag(ctx context.Context, tag string) error {
	tagKey := r.tagKey(tag)

	err := r.do(func() error {
		keys, err := r.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			return fmt.Errorf("failed to get tag members: %w", err)
		}
		return r.client.Del(ctx, append(keys, tagKey)...).Err()
	})
	if err != nil {
		return err
	}
	r.metrics.RecordDelete()
	return nil
}

// Version returns the counter stored at versionKey, or 0 when it is unset.
func (r *RedisCache) Version(ctx context.Context, versionKey string) (int64, error) {
	var version int64
	err := r.do(func() error {
		var err error
		version, err = r.client.Get(ctx, r.key(versionKey)).Int64()
		return err
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to read version: %w", err)
	}
	return version, nil
}

// BumpVersion increments the counter at versionKey. A zero expiration keeps
// the counter forever.
func (r *RedisCache) BumpVersion(ctx context.Context, versionKey string, expiration time.Duration) error {
	err := r.do(func() error {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Incr(ctx, r.key(versionKey))
			if expiration > 0 {
				pipe.Expire(ctx, r.key(versionKey), expiration)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to bump version: %w", err)
	}
	return nil
}

// SetIfVersion stores value only while versionKey still holds version. The
// check and the write run under WATCH, so a BumpVersion landing in between
// makes the call report false without writing.
func (r *RedisCache) SetIfVersion(ctx context.Context, key string, value interface{}, expiration time.Duration, versionKey string, version int64) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value: %w", err)
	}

	var stored bool
	err = r.do(func() error {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, r.key(versionKey)).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if current != version {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, r.key(key), data, expiration)
				return nil
			})
			if err == nil {
				stored = true
			}
			return err
		}, r.key(versionKey))
		if errors.Is(err, redis.TxFailedErr) {
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to set cache: %w", err)
	}

	if stored {
		r.metrics.RecordSet()
	}
	return stored, nil
}

func (r *RedisCache) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Stats() map[string]interface{} {
	poolStats := r.client.PoolStats()
	metrics := r.metrics.GetStats()

	return map[string]interface{}{
		"hits":          metrics.Hits,
		"misses":        metrics.Misses,
		"errors":        metrics.Errors,
		"hit_rate":      r.metrics.HitRate(),
		"breaker":       r.breaker.GetStats(),
		"pool_hits":     poolStats.Hits,
		"pool_misses":   poolStats.Misses,
		"pool_timeouts": poolStats.Timeouts,
		"pool_total":    poolStats.TotalConns,
		"pool_idle":     poolStats.IdleConns,
		"pool_stale":    poolStats.StaleConns,
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

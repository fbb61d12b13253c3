package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestDefaultCacheConfig(t *testing.T) {
	config := DefaultCacheConfig()

	if config.Addr != "localhost:6379" {
		t.Errorf("Expected Addr to be localhost:6379, got %s", config.Addr)
	}
	if config.PoolSize != 10 {
		t.Errorf("Expected PoolSize to be 10, got %d", config.PoolSize)
	}
	if config.MinIdleConns != 5 {
		t.Errorf("Expected MinIdleConns to be 5, got %d", config.MinIdleConns)
	}
	if config.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries to be 3, got %d", config.MaxRetries)
	}
	if config.DialTimeout != 5*time.Second {
		t.Errorf("Expected DialTimeout to be 5s, got %v", config.DialTimeout)
	}
	if config.KeyPrefix != "taskapi:" {
		t.Errorf("Expected KeyPrefix to be taskapi:, got %s", config.KeyPrefix)
	}
}

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	cache := NewRedisCache(&CacheConfig{
		Addr:         mr.Addr(),
		PoolSize:     10,
		MaxRetries:   -1,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		KeyPrefix:    "t:",
		Breaker: &CircuitBreakerConfig{
			MaxFailures:      2,
			Timeout:          time.Minute,
			HalfOpenMaxCalls: 1,
		},
	})
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestNewRedisCache_WithNilConfig(t *testing.T) {
	cache := NewRedisCache(nil)
	defer cache.Close()

	if cache.client == nil {
		t.Error("Expected Redis client to be initialized")
	}
	if cache.prefix != "taskapi:" {
		t.Errorf("Expected default prefix, got %q", cache.prefix)
	}
	if cache.breaker == nil || cache.metrics == nil {
		t.Error("Expected breaker and metrics to be initialized")
	}
}

func TestRedisCache_SetAndGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	type testData struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	original := testData{Name: "test", Value: 42}
	if err := cache.Set(ctx, "task:1", original, time.Minute); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	if !mr.Exists("t:task:1") {
		t.Error("Expected key to be stored under the configured prefix")
	}

	var retrieved testData
	if err := cache.Get(ctx, "task:1", &retrieved); err != nil {
		t.Fatalf("Failed to get from cache: %v", err)
	}
	if retrieved != original {
		t.Errorf("Expected %+v, got %+v", original, retrieved)
	}

	mr.FastForward(2 * time.Minute)
	if err := cache.Get(ctx, "task:1", &retrieved); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss after expiry, got %v", err)
	}
}

func TestRedisCache_Get_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	var result string
	if err := cache.Get(context.Background(), "non-existent-key", &result); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}

	stats := cache.Metrics().GetStats()
	if stats.Misses != 1 || stats.Errors != 0 {
		t.Errorf("Expected one miss and no errors, got %+v", stats)
	}
	if cache.Breaker().GetState() != CircuitBreakerClosed {
		t.Error("Misses must not trip the breaker")
	}
}

func TestRedisCache_Set_InvalidData(t *testing.T) {
	cache, _ := setupTestRedis(t)

	if err := cache.Set(context.Background(), "bad", make(chan int), time.Minute); err == nil {
		t.Error("Expected error when setting unmarshalable data")
	}
}

func TestRedisCache_Get_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)

	mr.Set("t:invalid", "invalid-json")

	var result map[string]interface{}
	if err := cache.Get(context.Background(), "invalid", &result); err == nil {
		t.Error("Expected error when getting invalid JSON")
	}
}

func TestRedisCache_Delete(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b"} {
		if err := cache.Set(ctx, key, "data", time.Minute); err != nil {
			t.Fatalf("Failed to set cache: %v", err)
		}
	}

	if err := cache.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("Failed to delete from cache: %v", err)
	}

	var retrieved string
	for _, key := range []string{"a", "b"} {
		if err := cache.Get(ctx, key, &retrieved); err != ErrCacheMiss {
			t.Errorf("Expected ErrCacheMiss after delete for %s, got %v", key, err)
		}
	}

	if err := cache.Delete(ctx); err != nil {
		t.Errorf("Expected no-op delete to succeed, got %v", err)
	}
}

func TestRedisCache_DeletePattern(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	for _, key := range []string{"task:1", "task:2", "list:1"} {
		if err := cache.Set(ctx, key, "data", time.Minute); err != nil {
			t.Fatalf("Failed to set cache key %s: %v", key, err)
		}
	}
	mr.Set("other:task:3", "untouched")

	if err := cache.DeletePattern(ctx, "task:*"); err != nil {
		t.Fatalf("Failed to delete pattern: %v", err)
	}

	if mr.Exists("t:task:1") || mr.Exists("t:task:2") {
		t.Error("Expected matching keys to be deleted")
	}
	if !mr.Exists("t:list:1") {
		t.Error("Expected non-matching key to survive")
	}
	if !mr.Exists("other:task:3") {
		t.Error("Expected keys outside the prefix to survive")
	}
}

func TestRedisCache_Exists(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	exists, err := cache.Exists(ctx, "k")
	if err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}
	if exists {
		t.Error("Expected key to not exist")
	}

	if err := cache.Set(ctx, "k", "data", time.Minute); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	exists, err = cache.Exists(ctx, "k")
	if err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}
	if !exists {
		t.Error("Expected key to exist")
	}
}

func TestRedisCache_TagInvalidation(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	for _, key := range []string{"list:a", "list:b"} {
		if err := cache.SetWithTags(ctx, key, "page", time.Minute, []string{"lists"}); err != nil {
			t.Fatalf("Failed to set tagged key %s: %v", key, err)
		}
	}
	if err := cache.Set(ctx, "task:1", "task", time.Minute); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	members, err := mr.Members("t:tag:lists")
	if err != nil || len(members) != 2 {
		t.Fatalf("Expected 2 members under tag, got %v (%v)", members, err)
	}

	if err := cache.InvalidateByTag(ctx, "lists"); err != nil {
		t.Fatalf("Failed to invalidate by tag: %v", err)
	}

	var result string
	for _, key := range []string{"list:a", "list:b"} {
		if err := cache.Get(ctx, key, &result); err != ErrCacheMiss {
			t.Errorf("Expected key %s to be invalidated, got: %v", key, err)
		}
	}
	if mr.Exists("t:tag:lists") {
		t.Error("Expected tag set to be removed")
	}
	if err := cache.Get(ctx, "task:1", &result); err != nil {
		t.Errorf("Expected untagged key to survive, got %v", err)
	}

	if err := cache.InvalidateByTag(ctx, "unknown"); err != nil {
		t.Errorf("Expected invalidating an empty tag to succeed, got %v", err)
	}
}

func TestRedisCache_SetIfVersion(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	version, err := cache.Version(ctx, "task_version:1")
	if err != nil || version != 0 {
		t.Fatalf("Expected unset version to read as 0, got %d (%v)", version, err)
	}

	stored, err := cache.SetIfVersion(ctx, "task:1", "v0", time.Minute, "task_version:1", version)
	if err != nil || !stored {
		t.Fatalf("Expected write at current version, stored=%v err=%v", stored, err)
	}

	if err := cache.BumpVersion(ctx, "task_version:1", time.Minute); err != nil {
		t.Fatalf("BumpVersion failed: %v", err)
	}
	if ttl := mr.TTL("t:task_version:1"); ttl != time.Minute {
		t.Errorf("Expected version counter to expire in 1m, got %v", ttl)
	}

	stored, err = cache.SetIfVersion(ctx, "task:1", "stale", time.Minute, "task_version:1", version)
	if err != nil {
		t.Fatalf("SetIfVersion failed: %v", err)
	}
	if stored {
		t.Error("Expected write with an outdated version to be dropped")
	}

	var result string
	if err := cache.Get(ctx, "task:1", &result); err != nil || result != "v0" {
		t.Errorf("Expected earlier value to survive, got %q (%v)", result, err)
	}

	version, err = cache.Version(ctx, "task_version:1")
	if err != nil || version != 1 {
		t.Fatalf("Expected version 1 after bump, got %d (%v)", version, err)
	}
}

func TestRedisCache_BreakerOpensWhenRedisIsDown(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	mr.Close()

	var result string
	for i := 0; i < 2; i++ {
		if err := cache.Get(ctx, "k", &result); err == nil || errors.Is(err, ErrCacheMiss) {
			t.Fatalf("Expected connection error, got %v", err)
		}
	}

	if cache.Breaker().GetState() != CircuitBreakerOpen {
		t.Fatalf("Expected breaker to open, got %v", cache.Breaker().GetState())
	}

	if err := cache.Get(ctx, "k", &result); !errors.Is(err, ErrCacheDown) {
		t.Errorf("Expected ErrCacheDown while breaker is open, got %v", err)
	}
	if cache.Metrics().GetStats().Errors < 3 {
		t.Errorf("Expected errors to be recorded, got %+v", cache.Metrics().GetStats())
	}
}

func TestRedisCache_Health(t *testing.T) {
	cache, mr := setupTestRedis(t)

	if err := cache.Health(context.Background()); err != nil {
		t.Errorf("Expected healthy cache, got error: %v", err)
	}

	mr.Close()

	if err := cache.Health(context.Background()); err == nil {
		t.Error("Expected unhealthy cache after closing Redis")
	}
}

func TestRedisCache_Stats(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	_ = cache.Set(ctx, "k", "v", time.Minute)
	var v string
	_ = cache.Get(ctx, "k", &v)
	_ = cache.Get(ctx, "missing", &v)

	stats := cache.Stats()
	if stats["hits"].(int64) != 1 || stats["misses"].(int64) != 1 {
		t.Errorf("Unexpected hit/miss counts: %v", stats)
	}
	if stats["hit_rate"].(float64) != 50.0 {
		t.Errorf("Expected hit rate 50, got %v", stats["hit_rate"])
	}
	if _, ok := stats["breaker"]; !ok {
		t.Error("Expected breaker stats")
	}
}

func BenchmarkRedisCache_Get(b *testing.B) {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		b.Fatal(err)
	}
	defer mr.Close()

	cache := NewRedisCache(&CacheConfig{Addr: mr.Addr()})
	defer cache.Close()
	ctx := context.Background()

	data := map[string]string{"key": "value"}
	if err := cache.Set(ctx, "benchmark:key", data, time.Minute); err != nil {
		b.Fatalf("Failed to set cache: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var result map[string]string
		if err := cache.Get(ctx, "benchmark:key", &result); err != nil {
			b.Fatalf("Failed to get cache: %v", err)
		}
	}
}

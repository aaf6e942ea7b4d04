package cache

import (
	"context"
	"time"
)

const healthKeyPrefix = "health"

// ProbeFunc 执行一次健康探测
type ProbeFunc func(ctx context.Context) bool

// HealthCache 在TTL内复用健康检查结果
// 缓存读写失败时直接探测，不影响调用方
type HealthCache struct {
	cache Cache
	ttl   time.Duration
}

// NewHealthCache 创建健康检查结果缓存，ttl<=0时不缓存
func NewHealthCache(c Cache, ttl time.Duration) *HealthCache {
	return &HealthCache{cache: c, ttl: ttl}
}

// Check 返回target的健康状态，cached表示结果来自缓存
func (h *HealthCache) Check(ctx context.Context, target string, probe ProbeFunc) (healthy bool, cached bool) {
	if h == nil || h.cache == nil || h.ttl <= 0 {
		return probe(ctx), false
	}

	key := GenerateCacheKey(healthKeyPrefix, target)
	if value, found, err := h.cache.Get(key); err == nil && found {
		return value == "1", true
	}

	healthy = probe(ctx)
	// 取消导致的失败不代表远程服务状态
	if ctx.Err() != nil {
		return healthy, false
	}

	value := "0"
	if healthy {
		value = "1"
	}
	_ = h.cache.Set(key, value, h.ttl)
	return healthy, false
}

// Invalidate 删除target的缓存结果
func (h *HealthCache) Invalidate(target string) error {
	if h == nil || h.cache == nil {
		return nil
	}
	return h.cache.Delete(GenerateCacheKey(healthKeyPrefix, target))
}

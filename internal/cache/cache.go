// 包 cache：中继响应的 Redis 缓存；键按凭据摘要隔离，不同调用方互不可见
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"survey-map/internal/logger"
	"survey-map/internal/metrics"
)

const keyPrefix = "surveymap:"

// 文档注释：响应缓存
// 约束：nil 接收者与未配置客户端均视为禁用，所有方法安全返回；Redis 故障只记录日志，不影响主流程。
type Cache struct {
	rc  *redis.Client
	ttl time.Duration
}

func New(rc *redis.Client, ttl time.Duration) *Cache {
	if rc == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{rc: rc, ttl: ttl}
}

// Key：凭据取 sha256 摘要，明文凭据不进入 Redis
func Key(token, resource string) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:8]) + ":" + resource
}

// Get：命中时解码到 out 并返回 true
func (c *Cache) Get(ctx context.Context, key string, out any) bool {
	if c == nil {
		return false
	}
	s, err := c.rc.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Warn("cache_get_error", "key", key, "err", err)
		}
		metrics.RedisMissesTotal.Inc()
		return false
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		logger.L().Warn("cache_decode_error", "key", key, "err", err)
		metrics.RedisMissesTotal.Inc()
		return false
	}
	metrics.RedisHitsTotal.Inc()
	return true
}

func (c *Cache) Set(ctx context.Context, key string, v any) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		logger.L().Warn("cache_encode_error", "key", key, "err", err)
		return
	}
	if err := c.rc.Set(ctx, key, b, c.ttl).Err(); err != nil {
		logger.L().Warn("cache_set_error", "key", key, "err", err)
	}
}

// Drop：删除某凭据下的全部缓存（登出或凭据失效时）
func (c *Cache) Drop(ctx context.Context, token string) {
	if c == nil {
		return
	}
	pattern := Key(token, "*")
	iter := c.rc.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.L().Warn("cache_scan_error", "err", err)
		return
	}
	if len(keys) > 0 {
		if err := c.rc.Del(ctx, keys...).Err(); err != nil {
			logger.L().Warn("cache_del_error", "err", err)
		}
	}
	logger.L().Debug("cache_dropped", "keys", len(keys))
}

package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"timecapsule/backend/internal/config"
)

// Cache 基于 Redis 的令牌黑名单与限流计数实现
type Cache struct {
	client *goredis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(cfg *config.RedisConfig) (*Cache, error) {
	client, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &Cache{
		client: client.Client(),
		ctx:    context.Background(),
	}, nil
}

// ========== 令牌黑名单 ==========

// AddToBlacklist 把 jti 加入黑名单，TTL 对齐令牌剩余有效期
func (c *Cache) AddToBlacklist(jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := fmt.Sprintf("token:blacklist:%s", jti)
	return c.client.Set(c.ctx, key, "1", ttl).Err()
}

// IsBlacklisted 判断 jti 是否在黑名单中
func (c *Cache) IsBlacklisted(jti string) (bool, error) {
	key := fmt.Sprintf("token:blacklist:%s", jti)
	_, err := c.client.Get(c.ctx, key).Result()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ========== 限流计数 ==========

// IncrementRateLimit 在窗口内自增计数并返回当前值
//
// 首次自增时设置过期时间，窗口随首个请求滑动。
func (c *Cache) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	rateKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := c.client.Incr(c.ctx, rateKey).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.client.Expire(c.ctx, rateKey, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// GetRateLimit 读取当前窗口计数
func (c *Cache) GetRateLimit(key string) (int64, error) {
	rateKey := fmt.Sprintf("ratelimit:%s", key)
	count, err := c.client.Get(c.ctx, rateKey).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Health 探测 Redis 可用性
func (c *Cache) Health() error {
	ctx, cancel := context.WithTimeout(c.ctx, 2*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close 关闭底层连接
func (c *Cache) Close() error {
	return c.client.Close()
}

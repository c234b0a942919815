package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"timecapsule/backend/internal/config"
)

// limiterTTL 客户端令牌桶的闲置淘汰时间
const limiterTTL = 10 * time.Minute

// clientLimiter 单个客户端的令牌桶及其最近活跃时间
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 基于令牌桶的单机限流中间件
//
// 每个客户端 IP 一个令牌桶，长时间不活跃的客户端随请求触发的
// 清扫被淘汰，不需要后台协程。
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
	swept   time.Time
}

// NewRateLimiter 创建限流中间件
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		swept:   time.Now(),
	}
}

// Limit 按客户端 IP 限流
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.limiterFor(c.ClientIP())
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweepLocked(now)

	if client, ok := rl.clients[key]; ok {
		client.lastSeen = now
		return client.limiter
	}

	limiter := rate.NewLimiter(rl.rps, rl.burst)
	rl.clients[key] = &clientLimiter{limiter: limiter, lastSeen: now}
	return limiter
}

// sweepLocked 淘汰闲置超过 TTL 的客户端，最多每个 TTL 周期扫一遍。
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.swept) < limiterTTL {
		return
	}
	for key, client := range rl.clients {
		if now.Sub(client.lastSeen) > limiterTTL {
			delete(rl.clients, key)
		}
	}
	rl.swept = now
}

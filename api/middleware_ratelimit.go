package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterConfig 速率限制配置
type RateLimiterConfig struct {
	// 基于 IP 的限流
	IPRateLimit  rate.Limit // 每秒允许的请求数
	IPBurstLimit int        // 突发请求数

	// 清理间隔（清理过期的限流器）
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig 默认配置
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		IPRateLimit:     10,               // 每秒 10 个请求
		IPBurstLimit:    20,               // 允许突发 20 个
		CleanupInterval: 10 * time.Minute, // 每 10 分钟清理一次
	}
}

// visitor 存储每个访问者的限流器和最后访问时间
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 速率限制器
type RateLimiter struct {
	config   RateLimiterConfig
	visitors map[string]*visitor
	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter 创建新的速率限制器
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		visitors: make(map[string]*visitor),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupVisitors()

	return rl
}

// getVisitor 获取或创建访问者的限流器
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(rl.config.IPRateLimit, rl.config.IPBurstLimit)
		rl.visitors[key] = &visitor{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupVisitors 定期清理过期的访问者
func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if time.Since(v.lastSeen) > rl.config.CleanupInterval*3 {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop 停止清理协程
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware 返回按客户端 IP 限流的 Gin 中间件
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		limiter := rl.getVisitor("ip:" + ctx.ClientIP())

		if !limiter.Allow() {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded, please slow down",
			})
			return
		}

		ctx.Next()
	}
}

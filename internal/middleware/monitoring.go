package middleware

import (
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timecapsule/backend/internal/monitoring"
)

// MonitoringMiddleware 监控中间件
type MonitoringMiddleware struct {
	metrics *monitoring.Metrics
	logger  *zap.Logger
	started time.Time
}

// NewMonitoringMiddleware 创建监控中间件
func NewMonitoringMiddleware(metrics *monitoring.Metrics, logger *zap.Logger) *MonitoringMiddleware {
	return &MonitoringMiddleware{
		metrics: metrics,
		logger:  logger,
		started: time.Now(),
	}
}

// HTTPMetrics HTTP 指标中间件
func (mm *MonitoringMiddleware) HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestSize := c.Request.ContentLength
		if requestSize < 0 {
			requestSize = 0
		}

		c.Next()

		duration := time.Since(start)
		statusCode := strconv.Itoa(c.Writer.Status())
		responseSize := int64(c.Writer.Size())

		mm.metrics.RecordHTTPRequest(
			c.Request.Method,
			c.FullPath(),
			statusCode,
			duration,
			requestSize,
			responseSize,
		)

		if c.Writer.Status() >= 400 {
			mm.metrics.RecordError("http_error", "http")
		}
	}
}

// PanicRecovery Panic 恢复中间件
func (mm *MonitoringMiddleware) PanicRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				mm.metrics.RecordPanic()

				mm.logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("ip", c.ClientIP()),
				)

				c.JSON(500, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}

// BusinessMetrics 业务指标中间件
func (mm *MonitoringMiddleware) BusinessMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// 只统计成功的写操作
		if c.Writer.Status() >= 400 {
			return
		}

		switch c.FullPath() {
		case "/v1/capsules":
			if c.Request.Method == "POST" {
				mm.metrics.RecordCapsuleCreated()
			}
		case "/v1/capsules/:id":
			switch c.Request.Method {
			case "PUT":
				mm.metrics.RecordCapsuleEdited()
			case "DELETE":
				mm.metrics.RecordCapsuleDeleted()
			}
		case "/v1/auth/register":
			if c.Request.Method == "POST" {
				mm.metrics.RecordUserRegistered()
			}
		case "/v1/auth/login":
			if c.Request.Method == "POST" {
				mm.metrics.RecordUserLoggedIn()
			}
		}
	}
}

// RateLimitMetrics 限流指标中间件
func (mm *MonitoringMiddleware) RateLimitMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() == 429 {
			mm.metrics.RecordRateLimitBlock("http", c.ClientIP())
		}
	}
}

// SystemMetrics 系统指标中间件
func (mm *MonitoringMiddleware) SystemMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		mm.updateSystemMetrics()
	}
}

// updateSystemMetrics 更新系统指标
func (mm *MonitoringMiddleware) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.metrics.UpdateMemoryUsage(int64(m.Alloc))

	mm.metrics.UpdateSystemUptime(time.Since(mm.started))
}

package health

import (
	"net/http"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"timecapsule/backend/internal/storage"
)

// goroutineLimit 超过该协程数时存活探针报警
const goroutineLimit = 500

// Checker 聚合胶囊服务的存活与就绪探针
//
// 存活只看进程自身，就绪逐项探测主存储、限流存储与图片目录，
// 任何一项失败都会把实例摘出流量。
type Checker struct {
	handler healthcheck.Handler
	log     *zap.Logger
}

// NewChecker 创建健康检查器并挂好各项探针。
func NewChecker(store storage.Store, images storage.ImageStore, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Checker{
		handler: healthcheck.NewHandler(),
		log:     log,
	}

	c.handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(goroutineLimit))

	c.handler.AddReadinessCheck("capsule-store", store.Health)

	// Redis 探针只在混合存储确实带限流仓库时挂上
	if limits, ok := store.(storage.RateLimitRepository); ok {
		c.handler.AddReadinessCheck("rate-limit-store", func() error {
			_, err := limits.GetRateLimit("health:check")
			return err
		})
	}

	if checkable, ok := images.(interface{ Health() error }); ok {
		c.handler.AddReadinessCheck("image-store", checkable.Health)
	}

	return c
}

// LiveHandler 返回存活探针端点。
func (c *Checker) LiveHandler() http.HandlerFunc {
	return c.handler.LiveEndpoint
}

// ReadyHandler 返回就绪探针端点。
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return c.handler.ReadyEndpoint
}

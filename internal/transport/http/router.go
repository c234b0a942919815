package httptransport

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timecapsule/backend/internal/auth"
	"timecapsule/backend/internal/config"
	"timecapsule/backend/internal/health"
	"timecapsule/backend/internal/middleware"
	"timecapsule/backend/internal/monitoring"
	"timecapsule/backend/internal/service"
	"timecapsule/backend/internal/storage"
)

// RouterDeps 路由依赖集合
type RouterDeps struct {
	Config      *config.Config
	Capsules    *service.CapsuleService
	Auth        *auth.Service
	Store       storage.Store
	Images      storage.ImageStore
	Metrics     *monitoring.Metrics
	RateLimiter *middleware.RateLimiter
	Logger      *zap.Logger
}

// NewRouter 组装全部路由和中间件
//
// 中间件顺序：恢复 → 日志 → 安全头 → 体积限制 → CORS →
// 监控 → 限流 → 认证。认证统一挂可选中间件，必须登录的
// 端点由处理器包装再做判定。
func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(middleware.RecoveryHandler(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(requestBodyLimit(deps.Config)))
	router.Use(corsMiddleware(deps.Config))

	if deps.Metrics != nil {
		mon := middleware.NewMonitoringMiddleware(deps.Metrics, log)
		router.Use(mon.HTTPMetrics())
		router.Use(mon.BusinessMetrics())
		router.Use(mon.RateLimitMetrics())
		router.Use(mon.SystemMetrics())
	}
	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.Limit())
	}

	jwtAuth := middleware.NewJWTAuth(deps.Auth, log)
	handler := NewHandler(deps.Capsules, log)
	authHandler := NewAuthHandler(deps.Auth, log)

	// 健康检查与指标不做认证和限流语义上的区分，直接挂根路径
	if deps.Store != nil {
		checker := health.NewChecker(deps.Store, deps.Images, log)
		router.GET("/health", gin.WrapF(checker.LiveHandler()))
		router.GET("/health/live", gin.WrapF(checker.LiveHandler()))
		router.GET("/health/ready", gin.WrapF(checker.ReadyHandler()))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	v1 := router.Group("/v1")
	v1.Use(jwtAuth.OptionalAuth())
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.DELETE("/logout", authHandler.Logout)
			authGroup.GET("/me", authHandler.Me)
		}

		capsules := v1.Group("/capsules")
		{
			capsules.POST("", handler.CreateCapsule())
			capsules.GET("/public", handler.ListPublicCapsules())
			capsules.GET("/user/:id", handler.ListUserCapsules())
			capsules.GET("/:id", handler.GetCapsule())
			capsules.PUT("/:id", handler.EditCapsule())
			capsules.DELETE("/:id", handler.DeleteCapsule())
			capsules.GET("/:id/images/:imageId", handler.GetCapsuleImage())
		}
	}

	return router
}

// corsMiddleware 按配置构建 CORS 中间件
//
// 允许所有来源时必须关闭凭证，否则浏览器会拒绝响应。
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	origins := []string{"*"}
	if cfg != nil && len(cfg.CORS.AllowedOrigins) > 0 {
		origins = cfg.CORS.AllowedOrigins
	}

	allowAll := len(origins) == 1 && origins[0] == "*"
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !allowAll,
		MaxAge:           12 * time.Hour,
	})
}

// requestBodyLimit 请求体上限
//
// 取图片数量与单图上限的乘积再留一些表单开销的余量。
func requestBodyLimit(cfg *config.Config) int64 {
	if cfg == nil {
		return 64 << 20
	}
	limit := int64(cfg.Capsule.MaxImages)*cfg.Capsule.MaxImageSize + cfg.Capsule.MaxContentBytes + (1 << 20)
	if limit <= 0 {
		return 64 << 20
	}
	return limit
}

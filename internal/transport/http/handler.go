package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timecapsule/backend/internal/domain"
	"timecapsule/backend/internal/middleware"
	"timecapsule/backend/internal/service"
)

// authMode 描述端点对登录态的要求。
type authMode int

const (
	// authNone 不读取登录态之外的任何认证信息
	authNone authMode = iota
	// authOptional 有凭证则携带身份，无凭证按匿名处理
	authOptional
	// authRequired 必须携带有效凭证
	authRequired
)

// endpointOptions 声明端点的校验与认证需求，构造后不可变。
//
// 处理顺序固定为：路径参数校验 → 请求体/查询参数校验 → 认证 →
// 业务执行。参数或请求体不合法时直接 400，不会走到认证检查，
// 因此匿名请求携带坏参数得到的是 400 而不是 401。
type endpointOptions struct {
	// Params 列出必须为 UUID 的路径参数名
	Params []string
	// Values 绑定并校验请求体或查询参数，产物经 contextRequest 传递
	Values func(c *gin.Context) error
	// Auth 登录态要求
	Auth authMode
}

// endpointFunc 是通过全部前置检查后的业务处理函数。
type endpointFunc func(c *gin.Context, actor domain.Actor)

// contextRequest 存放 Values 阶段绑定好的请求对象。
const contextRequest = "request"

// boundRequest 取出 Values 阶段放入的绑定产物。
func boundRequest(c *gin.Context) interface{} {
	v, _ := c.Get(contextRequest)
	return v
}

// Handler 聚合胶囊相关的 HTTP 处理器。
type Handler struct {
	capsules *service.CapsuleService
	log      *zap.Logger
}

// NewHandler 创建胶囊处理器。
func NewHandler(capsules *service.CapsuleService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{capsules: capsules, log: log}
}

// endpoint 把声明式的端点选项编译为 gin 处理函数。
func (h *Handler) endpoint(opts endpointOptions, fn endpointFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range opts.Params {
			if details := validateUUIDParam(c.Param(name), name); details != nil {
				ValidationFailed(c, details)
				return
			}
		}

		if opts.Values != nil {
			if err := opts.Values(c); err != nil {
				RespondError(c, h.log, err)
				return
			}
		}

		actor := actorFrom(c)
		if opts.Auth == authRequired && !actor.Authenticated {
			Unauthorized(c, MsgAuthRequired)
			return
		}

		fn(c, actor)
	}
}

// actorFrom 从 gin 上下文还原请求主体。
func actorFrom(c *gin.Context) domain.Actor {
	authenticated, _ := c.Get(middleware.ContextAuthenticated)
	if ok, _ := authenticated.(bool); !ok {
		return domain.Anonymous()
	}
	userID, _ := c.Get(middleware.ContextUserID)
	id, _ := userID.(string)
	return domain.Actor{UserID: id, Authenticated: true}
}

package httptransport

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"timecapsule/backend/internal/domain"
)

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgInvalidJSON      = "JSON格式错误"
	MsgRequestBodyEmpty = "请求体不能为空"

	// 认证相关
	MsgAuthRequired       = "需要登录认证"
	MsgInvalidCredentials = "用户名或密码错误"
	MsgTokenExpired       = "登录已过期，请重新登录"
	MsgTokenInvalid       = "无效的访问令牌"
	MsgAccountInactive    = "账户已被禁用"

	// 胶囊相关
	MsgCapsuleNotFound = "胶囊不存在"
	MsgImageNotFound   = "图片不存在"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)

// RespondError 把领域错误翻译为 HTTP 响应
//
// 对错误种类做穷尽匹配；未分类的错误生成追踪标识并记入日志，
// 对外只暴露通用 500 消息。每个请求恰好写出一次响应。
func RespondError(c *gin.Context, log *zap.Logger, err error) {
	derr, ok := domain.AsError(err)
	if !ok {
		derr = domain.NewUnexpectedError(err)
	}

	switch derr.Kind {
	case domain.ErrValidation:
		ValidationFailed(c, derr.Fields)

	case domain.ErrAuth:
		Error(c, derr.Status, derr.Message)

	case domain.ErrNotFound:
		NotFound(c, derr.Message)

	case domain.ErrConflictedState:
		Locked(c, derr.Message)

	default:
		identifier := uuid.NewString()
		if log != nil {
			log.Error("unexpected error",
				zap.String("identifier", identifier),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Error(derr.Err),
			)
		}
		InternalError(c, MsgInternalError)
	}
}

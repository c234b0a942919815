package httptransport

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timecapsule/backend/internal/auth"
	"timecapsule/backend/internal/auth/jwt"
	"timecapsule/backend/internal/domain"
)

// AuthHandler 认证相关的 HTTP 处理逻辑
type AuthHandler struct {
	auth *auth.Service
	log  *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.Service, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		auth: authService,
		log:  log,
	}
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Username  string `json:"username" validate:"omitempty,min=3,max=100"`
	FirstName string `json:"firstName" validate:"omitempty,max=100"`
	LastName  string `json:"lastName" validate:"omitempty,max=100"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// authResponse 注册和登录的响应载荷
type authResponse struct {
	User   *domain.User   `json:"user"`
	Tokens *jwt.TokenPair `json:"tokens"`
}

// Register 用户注册
//
//	POST /v1/auth/register
//
// 注册成功后立即签发令牌对，前端无需再走一次登录。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}
	if details := validateStruct(&req); details != nil {
		ValidationFailed(c, details)
		return
	}

	user, err := h.auth.Register(auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	tokens, err := h.auth.IssueTokens(user)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	Created(c, authResponse{User: user, Tokens: tokens})
}

// Login 用户登录
//
//	POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}
	if details := validateStruct(&req); details != nil {
		ValidationFailed(c, details)
		return
	}

	user, tokens, err := h.auth.Login(auth.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	Success(c, authResponse{User: user, Tokens: tokens})
}

// Refresh 刷新令牌
//
//	POST /v1/auth/refresh
//
// 刷新令牌只能使用一次：旧令牌在换发后立即吊销。
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}
	if details := validateStruct(&req); details != nil {
		ValidationFailed(c, details)
		return
	}

	tokens, err := h.auth.Refresh(req.RefreshToken)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	Success(c, tokens)
}

// Logout 退出登录
//
//	DELETE /v1/auth/logout
//
// 吊销当前访问令牌；无效令牌静默忽略，响应始终成功。
func (h *AuthHandler) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	if err := h.auth.Logout(token); err != nil {
		RespondError(c, h.log, err)
		return
	}
	Success(c, nil)
}

// Me 查看当前登录用户
//
//	GET /v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Authenticated {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	user, err := h.auth.GetUserByID(actor.UserID)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	Success(c, user)
}

// respondAuthError 把认证服务的错误翻译为 HTTP 响应
func (h *AuthHandler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidEmail):
		ValidationFailed(c, map[string]string{"email": "must be a valid email address"})
	case errors.Is(err, auth.ErrInvalidPassword):
		ValidationFailed(c, map[string]string{"password": "密码长度必须在8到72个字符之间"})
	case errors.Is(err, auth.ErrEmailExists):
		ValidationFailed(c, map[string]string{"email": "邮箱已被注册"})
	case errors.Is(err, auth.ErrUsernameExists):
		ValidationFailed(c, map[string]string{"username": "用户名已被占用"})
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserNotFound):
		Unauthorized(c, MsgInvalidCredentials)
	case errors.Is(err, auth.ErrUserInactive):
		Forbidden(c, MsgAccountInactive)
	case errors.Is(err, auth.ErrTokenRevoked):
		Unauthorized(c, MsgTokenInvalid)
	case errors.Is(err, jwt.ErrExpiredToken):
		Unauthorized(c, MsgTokenExpired)
	case errors.Is(err, jwt.ErrInvalidToken), errors.Is(err, jwt.ErrWrongTokenType):
		Unauthorized(c, MsgTokenInvalid)
	default:
		RespondError(c, h.log, err)
	}
}

// bearerToken 提取 Authorization 头中的 Bearer 令牌
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		if cookie, err := c.Cookie("access_token"); err == nil {
			return cookie
		}
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

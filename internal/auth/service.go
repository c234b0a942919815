package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"timecapsule/backend/internal/auth/jwt"
	"timecapsule/backend/internal/domain"
	"timecapsule/backend/internal/storage"
)

var (
	// ErrInvalidEmail 无效的邮箱格式
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrInvalidPassword 无效的密码
	ErrInvalidPassword = errors.New("invalid password")
	// ErrEmailExists 邮箱已存在
	ErrEmailExists = errors.New("email already exists")
	// ErrUsernameExists 用户名已存在
	ErrUsernameExists = errors.New("username already exists")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive 用户已被禁用
	ErrUserInactive = errors.New("user is inactive")
	// ErrTokenRevoked 令牌已被吊销
	ErrTokenRevoked = errors.New("token revoked")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Service 认证服务
//
// 签发与校验走 JWT 管理器，吊销状态落在黑名单存储。
type Service struct {
	userRepo  storage.UserRepository
	blacklist storage.TokenBlacklistRepository
	tokens    *jwt.Manager
}

// NewService 创建认证服务
func NewService(userRepo storage.UserRepository, blacklist storage.TokenBlacklistRepository, tokens *jwt.Manager) *Service {
	return &Service{
		userRepo:  userRepo,
		blacklist: blacklist,
		tokens:    tokens,
	}
}

// RegisterInput 注册输入
type RegisterInput struct {
	Email     string
	Password  string
	Username  string
	FirstName string
	LastName  string
}

// LoginInput 登录输入
type LoginInput struct {
	Identifier string
	Password   string
}

// Register 用户注册
func (s *Service) Register(input RegisterInput) (*domain.User, error) {
	// 验证邮箱格式
	if !ValidateEmail(input.Email) {
		return nil, ErrInvalidEmail
	}

	// 验证密码强度
	if err := ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	// 检查邮箱是否已存在
	if user, err := s.userRepo.GetUserByEmail(strings.ToLower(input.Email)); err == nil && user != nil {
		return nil, ErrEmailExists
	}

	// 检查用户名是否已存在
	if user, err := s.userRepo.GetUserByUsername(strings.ToLower(input.Username)); err == nil && user != nil {
		return nil, ErrUsernameExists
	}

	// 哈希密码
	passwordHash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(input.Email),
		Username:     input.Username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login 用户登录，成功后签发令牌对
func (s *Service) Login(input LoginInput) (*domain.User, *jwt.TokenPair, error) {
	identifier := strings.ToLower(input.Identifier)

	// 优先按邮箱查找
	user, err := s.userRepo.GetUserByEmail(identifier)
	if err != nil {
		// 如果按邮箱查找失败，尝试按用户名查找
		user, err = s.userRepo.GetUserByUsername(identifier)
		if err != nil {
			return nil, nil, ErrInvalidCredentials
		}
	}

	// 检查用户是否激活
	if !user.IsActive {
		return nil, nil, ErrUserInactive
	}

	// 验证密码
	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	// 更新最后登录时间
	_ = s.userRepo.UpdateLastLogin(user.ID)

	return user, pair, nil
}

// IssueTokens 为指定用户直接签发令牌对（注册后自动登录）
func (s *Service) IssueTokens(user *domain.User) (*jwt.TokenPair, error) {
	return s.tokens.GenerateTokenPair(user.ID, user.Email)
}

// Refresh 用刷新令牌轮换出新令牌对
//
// 旧刷新令牌在签发新对的同时加入黑名单，令牌只能用一次。
func (s *Service) Refresh(refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	revoked, err := s.blacklist.IsBlacklisted(claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check blacklist: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := s.userRepo.GetUserByID(claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	pair, err := s.tokens.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	// 旧刷新令牌作废
	if err := s.blacklist.AddToBlacklist(claims.ID, jwt.RemainingTTL(claims, time.Now())); err != nil {
		return nil, fmt.Errorf("failed to revoke old token: %w", err)
	}

	return pair, nil
}

// Logout 吊销一个令牌（访问或刷新均可）
func (s *Service) Logout(tokenString string) error {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		// 已过期或无效的令牌无需吊销
		return nil
	}
	return s.blacklist.AddToBlacklist(claims.ID, jwt.RemainingTTL(claims, time.Now()))
}

// Authenticate 验证访问令牌并返回声明，已吊销的令牌视为无效
func (s *Service) Authenticate(tokenString string) (*jwt.Claims, error) {
	claims, err := s.tokens.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}

	revoked, err := s.blacklist.IsBlacklisted(claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check blacklist: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// GetUserByID 根据 ID 获取用户
func (s *Service) GetUserByID(userID string) (*domain.User, error) {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword 修改密码
func (s *Service) ChangePassword(userID, oldPassword, newPassword string) error {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return ErrUserNotFound
	}

	// 验证旧密码
	if !CheckPassword(oldPassword, user.PasswordHash) {
		return errors.New("invalid old password")
	}

	// 验证新密码强度
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	// 哈希新密码
	newHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = newHash
	return s.userRepo.UpdateUser(user)
}

// ValidateEmail 验证邮箱格式
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword 验证密码强度
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: must be at least 8 characters", ErrInvalidPassword)
	}
	if len(password) > 72 {
		return fmt.Errorf("%w: must be at most 72 characters", ErrInvalidPassword)
	}
	return nil
}

// HashPassword 哈希密码
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 检查密码是否匹配
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

package storage

import (
	"errors"
	"time"

	"timecapsule/backend/internal/domain"
)

var (
	// ErrCapsuleNotFound 胶囊未找到错误
	ErrCapsuleNotFound = errors.New("capsule not found")
	// ErrUserNotFound 用户未找到错误
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists 邮箱已被注册错误
	ErrEmailExists = errors.New("email already exists")
	// ErrUsernameExists 用户名已被占用错误
	ErrUsernameExists = errors.New("username already exists")
)

// CapsuleRepository 定义胶囊数据存取操作
//
// 实现方必须保证单条记录写入的原子性；本层之上不做多文档事务。
// ListCapsules 在读取时刻 now 上求值派生状态并完成过滤、排序与分页。
type CapsuleRepository interface {
	SaveCapsule(capsule *domain.Capsule) error
	GetCapsule(id string) (*domain.Capsule, error)
	ListCapsules(query domain.ListQuery, now time.Time) ([]domain.Capsule, error)
	DeleteCapsule(id string) error
}

// UserRepository 定义用户数据存取操作
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
}

// TokenBlacklistRepository 定义令牌黑名单操作（登出与刷新轮换）
type TokenBlacklistRepository interface {
	AddToBlacklist(jti string, ttl time.Duration) error
	IsBlacklisted(jti string) (bool, error)
}

// RateLimitRepository 定义限流计数操作
type RateLimitRepository interface {
	IncrementRateLimit(key string, window time.Duration) (int64, error)
	GetRateLimit(key string) (int64, error)
}

// Store 聚合存储接口
type Store interface {
	CapsuleRepository
	UserRepository
	TokenBlacklistRepository

	// Health 探测底层存储可用性
	Health() error
	// Close 释放底层连接
	Close() error
}

// ImageStore 定义图片二进制内容的存取操作
//
// 元数据在 CapsuleRepository 中随胶囊保存，这里只管字节。
type ImageStore interface {
	SaveImage(capsuleID, imageID string, data []byte) (string, error)
	GetImage(capsuleID, imageID string) ([]byte, error)
	RemoveCapsuleImages(capsuleID string) error
}

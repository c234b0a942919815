package hybrid

import (
	"fmt"
	"time"

	"timecapsule/backend/internal/config"
	"timecapsule/backend/internal/domain"
	"timecapsule/backend/internal/storage/postgres"
	"timecapsule/backend/internal/storage/redis"
)

// Store 混合存储实现，结合关系数据库与 Redis
//
// 胶囊与用户数据落在 PostgreSQL/MySQL，令牌黑名单与限流计数
// 走 Redis，各取所长。
type Store struct {
	db    *postgres.Store
	redis *redis.Cache
}

// NewStore 创建混合存储实例 (PostgreSQL)
func NewStore(dsn string, redisCfg *config.RedisConfig) (*Store, error) {
	return NewStoreWithType("postgres", dsn, redisCfg)
}

// NewStoreWithType 创建混合存储实例（指定数据库类型）
func NewStoreWithType(dbType, dsn string, redisCfg *config.RedisConfig) (*Store, error) {
	var dbStore *postgres.Store
	var err error

	switch dbType {
	case "mysql":
		dbStore, err = postgres.NewMySQLStore(dsn)
	case "postgres", "postgresql":
		dbStore, err = postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: mysql, postgres)", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisCache, err := redis.NewCache(redisCfg)
	if err != nil {
		dbStore.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	return &Store{
		db:    dbStore,
		redis: redisCache,
	}, nil
}

// ========== Capsule Repository ==========

// SaveCapsule 保存胶囊（新建或整体覆盖）
func (s *Store) SaveCapsule(capsule *domain.Capsule) error {
	return s.db.SaveCapsule(capsule)
}

// GetCapsule 根据 ID 获取胶囊
func (s *Store) GetCapsule(id string) (*domain.Capsule, error) {
	return s.db.GetCapsule(id)
}

// ListCapsules 过滤、排序并分页胶囊列表
func (s *Store) ListCapsules(query domain.ListQuery, now time.Time) ([]domain.Capsule, error) {
	return s.db.ListCapsules(query, now)
}

// DeleteCapsule 删除指定胶囊及其成员与图片元数据
func (s *Store) DeleteCapsule(id string) error {
	return s.db.DeleteCapsule(id)
}

// ========== User Repository ==========

// CreateUser 创建用户
func (s *Store) CreateUser(user *domain.User) error {
	return s.db.CreateUser(user)
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	return s.db.GetUserByID(id)
}

// GetUserByEmail 根据邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	return s.db.GetUserByEmail(email)
}

// GetUserByUsername 根据用户名获取用户
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	return s.db.GetUserByUsername(username)
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	return s.db.UpdateUser(user)
}

// UpdateLastLogin 更新最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	return s.db.UpdateLastLogin(userID)
}

// ========== Token Blacklist ==========

// AddToBlacklist 把 jti 加入 Redis 黑名单
func (s *Store) AddToBlacklist(jti string, ttl time.Duration) error {
	return s.redis.AddToBlacklist(jti, ttl)
}

// IsBlacklisted 判断 jti 是否已被吊销
func (s *Store) IsBlacklisted(jti string) (bool, error) {
	return s.redis.IsBlacklisted(jti)
}

// ========== Rate Limit ==========

// IncrementRateLimit 在窗口内自增限流计数
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	return s.redis.IncrementRateLimit(key, window)
}

// GetRateLimit 读取当前限流计数
func (s *Store) GetRateLimit(key string) (int64, error) {
	return s.redis.GetRateLimit(key)
}

// Health 探测数据库与 Redis 可用性
func (s *Store) Health() error {
	if err := s.db.Health(); err != nil {
		return fmt.Errorf("database unhealthy: %w", err)
	}
	if err := s.redis.Health(); err != nil {
		return fmt.Errorf("redis unhealthy: %w", err)
	}
	return nil
}

// Close 释放底层连接
func (s *Store) Close() error {
	dbErr := s.db.Close()
	redisErr := s.redis.Close()
	if dbErr != nil {
		return dbErr
	}
	return redisErr
}

package memory

import (
	"sync"
	"time"

	"timecapsule/backend/internal/domain"
	"timecapsule/backend/internal/storage"
)

// Store 使用内存保存胶囊与用户数据，主要用于开发验证与测试
type Store struct {
	mu         sync.RWMutex
	capsules   map[string]*domain.Capsule
	users      map[string]*domain.User
	byEmail    map[string]string // email -> userID
	byUsername map[string]string // username -> userID

	// 令牌黑名单（登出与刷新轮换后的 jti）
	blacklist map[string]time.Time

	// 限流计数
	rateLimits map[string]*rateLimitEntry
}

// rateLimitEntry 限流计数条目
type rateLimitEntry struct {
	count     int64
	expiresAt time.Time
}

// NewStore 创建一个内存存储实例
func NewStore() *Store {
	return &Store{
		capsules:   make(map[string]*domain.Capsule),
		users:      make(map[string]*domain.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
		blacklist:  make(map[string]time.Time),
		rateLimits: make(map[string]*rateLimitEntry),
	}
}

// ========== 胶囊存储 ==========

// SaveCapsule 保存或覆盖一条胶囊记录（持锁期间完成，单记录写入原子）
func (s *Store) SaveCapsule(capsule *domain.Capsule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := cloneCapsule(capsule)
	s.capsules[capsule.ID] = clone
	return nil
}

// GetCapsule 按 ID 查询胶囊，返回副本
func (s *Store) GetCapsule(id string) (*domain.Capsule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	capsule, ok := s.capsules[id]
	if !ok {
		return nil, storage.ErrCapsuleNotFound
	}
	return cloneCapsule(capsule), nil
}

// ListCapsules 按过滤器匹配，排序后分页返回
//
// 派生状态在 now 时刻求值，同一页内不同条目处于不同状态是预期行为。
func (s *Store) ListCapsules(query domain.ListQuery, now time.Time) ([]domain.Capsule, error) {
	s.mu.RLock()
	matched := make([]domain.Capsule, 0)
	for _, capsule := range s.capsules {
		if query.Filter.Matches(capsule, now) {
			matched = append(matched, *cloneCapsule(capsule))
		}
	}
	s.mu.RUnlock()

	query = query.Normalize()
	domain.SortCapsules(matched, now)
	return domain.Paginate(matched, query.Skip, query.Take), nil
}

// DeleteCapsule 删除胶囊记录
func (s *Store) DeleteCapsule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.capsules[id]; !ok {
		return storage.ErrCapsuleNotFound
	}
	delete(s.capsules, id)
	return nil
}

// ========== 用户存储 ==========

// CreateUser 创建用户，邮箱与用户名唯一
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return storage.ErrEmailExists
	}
	if user.Username != "" {
		if _, ok := s.byUsername[user.Username]; ok {
			return storage.ErrUsernameExists
		}
	}

	clone := *user
	s.users[user.ID] = &clone
	s.byEmail[user.Email] = user.ID
	if user.Username != "" {
		s.byUsername[user.Username] = user.ID
	}
	return nil
}

// GetUserByID 按 ID 查询用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

// GetUserByEmail 按邮箱查询用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	clone := *s.users[id]
	return &clone, nil
}

// GetUserByUsername 按用户名查询用户
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	clone := *s.users[id]
	return &clone, nil
}

// UpdateUser 更新用户记录
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.users[user.ID]
	if !ok {
		return storage.ErrUserNotFound
	}

	if old.Email != user.Email {
		delete(s.byEmail, old.Email)
		s.byEmail[user.Email] = user.ID
	}
	if old.Username != user.Username {
		delete(s.byUsername, old.Username)
		if user.Username != "" {
			s.byUsername[user.Username] = user.ID
		}
	}

	clone := *user
	s.users[user.ID] = &clone
	return nil
}

// UpdateLastLogin 更新最近登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	now := time.Now()
	user.LastLoginAt = &now
	return nil
}

// ========== 令牌黑名单 ==========

// AddToBlacklist 把 jti 加入黑名单直到过期
func (s *Store) AddToBlacklist(jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blacklist[jti] = time.Now().Add(ttl)
	return nil
}

// IsBlacklisted 判断 jti 是否在黑名单中，顺带清理过期条目
func (s *Store) IsBlacklisted(jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.blacklist[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		delete(s.blacklist, jti)
		return false, nil
	}
	return true, nil
}

// ========== 限流计数 ==========

// IncrementRateLimit 在窗口内自增计数并返回当前值
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		s.rateLimits[key] = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		return 1, nil
	}
	entry.count++
	return entry.count, nil
}

// GetRateLimit 读取当前窗口计数
func (s *Store) GetRateLimit(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rateLimits[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return 0, nil
	}
	return entry.count, nil
}

// Health 内存存储总是可用
func (s *Store) Health() error {
	return nil
}

// Close 内存存储无需释放资源
func (s *Store) Close() error {
	return nil
}

// cloneCapsule 深拷贝胶囊，避免调用方与存储共享可变切片
func cloneCapsule(c *domain.Capsule) *domain.Capsule {
	clone := *c
	clone.Senders = append([]string(nil), c.Senders...)
	clone.Receivers = append([]string(nil), c.Receivers...)
	clone.Images = append([]domain.CapsuleImage(nil), c.Images...)
	if c.OpenDate != nil {
		openDate := *c.OpenDate
		clone.OpenDate = &openDate
	}
	if c.SealedAt != nil {
		sealedAt := *c.SealedAt
		clone.SealedAt = &sealedAt
	}
	return &clone
}

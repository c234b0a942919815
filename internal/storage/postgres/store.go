package postgres

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"timecapsule/backend/internal/domain"
	"timecapsule/backend/internal/storage"
)

const (
	roleSender   = "sender"
	roleReceiver = "receiver"
)

// capsuleRow 胶囊主表
type capsuleRow struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)"`
	Title         string     `gorm:"type:varchar(255);not null"`
	Content       string     `gorm:"type:text"`
	Visibility    string     `gorm:"type:varchar(10);index"`
	OpenDate      *time.Time `gorm:"index"`
	SealedAt      *time.Time
	ShowCountdown bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (capsuleRow) TableName() string { return "capsules" }

// capsuleMemberRow 寄送者/接收者成员表
type capsuleMemberRow struct {
	CapsuleID string `gorm:"primaryKey;type:varchar(36);index"`
	UserID    string `gorm:"primaryKey;type:varchar(36);index"`
	Role      string `gorm:"primaryKey;type:varchar(10)"`
	Position  int
}

func (capsuleMemberRow) TableName() string { return "capsule_members" }

// capsuleImageRow 图片元数据表
type capsuleImageRow struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	CapsuleID   string `gorm:"type:varchar(36);index"`
	Name        string `gorm:"type:varchar(255)"`
	ContentType string `gorm:"type:varchar(100)"`
	Size        int64
	StoragePath string `gorm:"type:varchar(512)"`
	Position    int
}

func (capsuleImageRow) TableName() string { return "capsule_images" }

// Store 关系型数据库存储实现（PostgreSQL / MySQL）
type Store struct {
	db *gorm.DB
	// PostgreSQL 下的列表查询快路径；MySQL 下为 nil，回退到内存组合
	client *Client
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string) (*Store, error) {
	store, err := newStoreWithDialector(postgres.Open(dsn))
	if err != nil {
		return nil, err
	}

	client, err := NewClient(dsn, 25, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pgx pool: %w", err)
	}
	store.client = client
	return store, nil
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string) (*Store, error) {
	return newStoreWithDialector(mysql.Open(dsn))
}

func newStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate 自动迁移数据库表
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&capsuleRow{},
		&capsuleMemberRow{},
		&capsuleImageRow{},
		&domain.User{},
	)
}

// ========== 胶囊存储 ==========

// SaveCapsule 在单个事务内保存胶囊及其成员与图片元数据
func (s *Store) SaveCapsule(capsule *domain.Capsule) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		row := capsuleRow{
			ID:            capsule.ID,
			Title:         capsule.Title,
			Content:       capsule.Content,
			Visibility:    string(capsule.Visibility),
			OpenDate:      capsule.OpenDate,
			SealedAt:      capsule.SealedAt,
			ShowCountdown: capsule.ShowCountdown,
			CreatedAt:     capsule.CreatedAt,
			UpdatedAt:     capsule.UpdatedAt,
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}

		// 成员与图片整组替换
		if err := tx.Where("capsule_id = ?", capsule.ID).Delete(&capsuleMemberRow{}).Error; err != nil {
			return err
		}
		members := make([]capsuleMemberRow, 0, len(capsule.Senders)+len(capsule.Receivers))
		for i, userID := range capsule.Senders {
			members = append(members, capsuleMemberRow{CapsuleID: capsule.ID, UserID: userID, Role: roleSender, Position: i})
		}
		for i, userID := range capsule.Receivers {
			members = append(members, capsuleMemberRow{CapsuleID: capsule.ID, UserID: userID, Role: roleReceiver, Position: i})
		}
		if len(members) > 0 {
			if err := tx.Create(&members).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("capsule_id = ?", capsule.ID).Delete(&capsuleImageRow{}).Error; err != nil {
			return err
		}
		images := make([]capsuleImageRow, 0, len(capsule.Images))
		for i, img := range capsule.Images {
			images = append(images, capsuleImageRow{
				ID:          img.ID,
				CapsuleID:   capsule.ID,
				Name:        img.Name,
				ContentType: img.ContentType,
				Size:        img.Size,
				StoragePath: img.StoragePath,
				Position:    i,
			})
		}
		if len(images) > 0 {
			if err := tx.Create(&images).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetCapsule 按 ID 查询胶囊
func (s *Store) GetCapsule(id string) (*domain.Capsule, error) {
	var row capsuleRow
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrCapsuleNotFound
		}
		return nil, err
	}

	capsule := rowToCapsule(&row)

	var members []capsuleMemberRow
	if err := s.db.Where("capsule_id = ?", id).Order("position").Find(&members).Error; err != nil {
		return nil, err
	}
	for _, m := range members {
		switch m.Role {
		case roleSender:
			capsule.Senders = append(capsule.Senders, m.UserID)
		case roleReceiver:
			capsule.Receivers = append(capsule.Receivers, m.UserID)
		}
	}

	var images []capsuleImageRow
	if err := s.db.Where("capsule_id = ?", id).Order("position").Find(&images).Error; err != nil {
		return nil, err
	}
	for _, img := range images {
		capsule.Images = append(capsule.Images, imageRowToDomain(&img))
	}

	return capsule, nil
}

// ListCapsules 过滤、排序并分页返回胶囊列表
//
// PostgreSQL 实例走 pgx 原生 SQL；否则取回候选集后用领域比较器
// 在内存中完成排序与分页（语义一致，只是执行位置不同）。
func (s *Store) ListCapsules(query domain.ListQuery, now time.Time) ([]domain.Capsule, error) {
	query = query.Normalize()
	if s.client != nil {
		return s.listCapsulesPgx(query, now)
	}
	return s.listCapsulesGorm(query, now)
}

func (s *Store) listCapsulesGorm(query domain.ListQuery, now time.Time) ([]domain.Capsule, error) {
	where, args := buildFilterSQL(query.Filter, now)

	var rows []capsuleRow
	if err := s.db.Where(where, args...).Find(&rows).Error; err != nil {
		return nil, err
	}

	capsules := make([]domain.Capsule, 0, len(rows))
	for i := range rows {
		capsule, err := s.GetCapsule(rows[i].ID)
		if err != nil {
			return nil, err
		}
		capsules = append(capsules, *capsule)
	}

	domain.SortCapsules(capsules, now)
	return domain.Paginate(capsules, query.Skip, query.Take), nil
}

// DeleteCapsule 删除胶囊及其成员与图片元数据
func (s *Store) DeleteCapsule(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&capsuleRow{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrCapsuleNotFound
		}
		if err := tx.Where("capsule_id = ?", id).Delete(&capsuleMemberRow{}).Error; err != nil {
			return err
		}
		return tx.Where("capsule_id = ?", id).Delete(&capsuleImageRow{}).Error
	})
}

// buildFilterSQL 把过滤器子句翻译为 SQL 条件（子句间 OR，字段间 AND）
func buildFilterSQL(filter domain.CapsuleFilter, now time.Time) (string, []interface{}) {
	if len(filter.Clauses) == 0 {
		return "1 = 0", nil
	}

	clauses := make([]string, 0, len(filter.Clauses))
	args := make([]interface{}, 0)

	for _, fc := range filter.Clauses {
		conds := make([]string, 0, 4)

		if fc.SenderID != "" {
			conds = append(conds, "EXISTS (SELECT 1 FROM capsule_members m WHERE m.capsule_id = capsules.id AND m.role = 'sender' AND m.user_id = ?)")
			args = append(args, fc.SenderID)
		}
		if fc.ReceiverID != "" {
			conds = append(conds, "EXISTS (SELECT 1 FROM capsule_members m WHERE m.capsule_id = capsules.id AND m.role = 'receiver' AND m.user_id = ?)")
			args = append(args, fc.ReceiverID)
		}
		switch fc.State {
		case domain.StateUnsealed:
			conds = append(conds, "capsules.open_date IS NULL")
		case domain.StateSealed:
			conds = append(conds, "capsules.open_date > ?")
			args = append(args, now)
		case domain.StateOpened:
			conds = append(conds, "capsules.open_date IS NOT NULL AND capsules.open_date <= ?")
			args = append(args, now)
		}
		if fc.Visibility != "" {
			conds = append(conds, "capsules.visibility = ?")
			args = append(args, string(fc.Visibility))
		}
		if fc.ShowCountdown != nil {
			conds = append(conds, "capsules.show_countdown = ?")
			args = append(args, *fc.ShowCountdown)
		}

		if len(conds) == 0 {
			conds = append(conds, "1 = 1")
		}
		clauses = append(clauses, "("+strings.Join(conds, " AND ")+")")
	}

	return strings.Join(clauses, " OR "), args
}

// ========== 用户存储 ==========

// CreateUser 创建用户，邮箱与用户名唯一
func (s *Store) CreateUser(user *domain.User) error {
	var count int64
	if err := s.db.Model(&domain.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return storage.ErrEmailExists
	}
	if user.Username != "" {
		if err := s.db.Model(&domain.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return storage.ErrUsernameExists
		}
	}
	return s.db.Create(user).Error
}

// GetUserByID 按 ID 查询用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	return s.getUser("id = ?", id)
}

// GetUserByEmail 按邮箱查询用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	return s.getUser("email = ?", email)
}

// GetUserByUsername 按用户名查询用户
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	return s.getUser("username = ?", username)
}

func (s *Store) getUser(cond string, value string) (*domain.User, error) {
	var user domain.User
	if err := s.db.First(&user, cond, value).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser 更新用户记录
func (s *Store) UpdateUser(user *domain.User) error {
	result := s.db.Save(user)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin 更新最近登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	now := time.Now().UTC()
	result := s.db.Model(&domain.User{}).Where("id = ?", userID).Update("last_login_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// Health 探测数据库可用性
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Ping(); err != nil {
		return err
	}
	if s.client != nil {
		return s.client.Health()
	}
	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func rowToCapsule(row *capsuleRow) *domain.Capsule {
	return &domain.Capsule{
		ID:            row.ID,
		Title:         row.Title,
		Content:       row.Content,
		Visibility:    domain.Visibility(row.Visibility),
		OpenDate:      row.OpenDate,
		SealedAt:      row.SealedAt,
		ShowCountdown: row.ShowCountdown,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func imageRowToDomain(row *capsuleImageRow) domain.CapsuleImage {
	return domain.CapsuleImage{
		ID:          row.ID,
		CapsuleID:   row.CapsuleID,
		Name:        row.Name,
		ContentType: row.ContentType,
		Size:        row.Size,
		StoragePath: row.StoragePath,
		Position:    row.Position,
	}
}

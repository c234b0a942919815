package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timecapsule/backend/internal/config"
	"timecapsule/backend/internal/domain"
	"timecapsule/backend/internal/pool"
	"timecapsule/backend/internal/security"
	"timecapsule/backend/internal/storage"
)

// CapsuleService 封装胶囊相关业务操作。
//
// 状态永远在调用时刻派生，服务自身不保存任何状态缓存。
type CapsuleService struct {
	repo      storage.CapsuleRepository
	images    storage.ImageStore
	cfg       *config.Config
	log       *zap.Logger
	pool      *pool.WorkerPool
	validator *security.ImageValidator
	now       func() time.Time
}

// NewCapsuleService 创建胶囊业务服务。
func NewCapsuleService(repo storage.CapsuleRepository, images storage.ImageStore, cfg *config.Config, log *zap.Logger, workers *pool.WorkerPool) *CapsuleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CapsuleService{
		repo:      repo,
		images:    images,
		cfg:       cfg,
		log:       log,
		pool:      workers,
		validator: security.NewImageValidator(),
		now:       time.Now,
	}
}

// SetClock 注入时钟，仅测试使用。
func (s *CapsuleService) SetClock(now func() time.Time) {
	s.now = now
}

// ImageUpload 上传的单张图片。
type ImageUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

// CreateCapsuleInput 定义创建胶囊所需的输入。
type CreateCapsuleInput struct {
	Title         string
	Content       string
	Visibility    domain.Visibility
	OpenDate      *time.Time // nil 表示保持草稿，过去的时间也接受（立即开启）
	ShowCountdown bool
	Collaborators []string
	Receivers     []string
	Images        []ImageUpload
}

// EditCapsuleInput 定义编辑胶囊的输入，nil 字段表示不修改。
type EditCapsuleInput struct {
	Title         *string
	Content       *string
	Visibility    *domain.Visibility
	OpenDate      *time.Time
	ShowCountdown *bool
	Collaborators []string
	Receivers     []string
	Images        []ImageUpload
}

// Create 创建新胶囊。
//
// 创建者始终进入寄送者集合；带开启日期的创建即封存，SealedAt
// 在这次写入时定格。
func (s *CapsuleService) Create(actor domain.Actor, input CreateCapsuleInput) (*domain.CapsuleView, error) {
	if !actor.Authenticated {
		return nil, domain.NewAuthError(401, "authentication required")
	}

	if err := s.validateImages(input.Images); err != nil {
		return nil, err
	}
	if err := s.validateContent(input.Content); err != nil {
		return nil, err
	}
	if input.Visibility == "" {
		// 缺省可见性为私密
		input.Visibility = domain.VisibilityPrivate
	}
	if input.Visibility != domain.VisibilityPublic && input.Visibility != domain.VisibilityPrivate {
		return nil, domain.NewValidationError(map[string]string{
			"visibility": "visibility must be public or private",
		})
	}

	now := s.now()
	capsule := &domain.Capsule{
		ID:            uuid.NewString(),
		Title:         input.Title,
		Content:       input.Content,
		Visibility:    input.Visibility,
		OpenDate:      input.OpenDate,
		ShowCountdown: input.ShowCountdown,
		Senders:       domain.NormalizeSenders(actor.UserID, input.Collaborators),
		Receivers:     input.Receivers,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	capsule.Seal(now)

	if err := s.storeImages(capsule, input.Images); err != nil {
		return nil, err
	}

	if err := s.repo.SaveCapsule(capsule); err != nil {
		// 入库失败时回收已落盘的图片
		s.cleanupImagesAsync(capsule.ID)
		return nil, domain.NewUnexpectedError(fmt.Errorf("failed to save capsule: %w", err))
	}

	view := domain.Project(capsule, capsule.StateAt(now))
	return &view, nil
}

// Edit 编辑未封存的胶囊。
//
// 仅寄送者可编辑；已封存或已开启一律 423，任何字段都不落库。
// nil 字段保持原值；本次写入首次携带开启日期时完成封存。
func (s *CapsuleService) Edit(id string, actor domain.Actor, input EditCapsuleInput) (*domain.CapsuleView, error) {
	capsule, err := s.load(id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	state := capsule.StateAt(now)
	if err := domain.AuthorizeEdit(capsule, state, actor); err != nil {
		return nil, err
	}

	if err := s.validateImages(input.Images); err != nil {
		return nil, err
	}

	if input.Title != nil {
		capsule.Title = *input.Title
	}
	if input.Content != nil {
		if err := s.validateContent(*input.Content); err != nil {
			return nil, err
		}
		capsule.Content = *input.Content
	}
	if input.Visibility != nil {
		if *input.Visibility != domain.VisibilityPublic && *input.Visibility != domain.VisibilityPrivate {
			return nil, domain.NewValidationError(map[string]string{
				"visibility": "visibility must be public or private",
			})
		}
		capsule.Visibility = *input.Visibility
	}
	if input.ShowCountdown != nil {
		capsule.ShowCountdown = *input.ShowCountdown
	}
	if input.Collaborators != nil {
		capsule.Senders = domain.NormalizeSenders(actor.UserID, input.Collaborators)
	}
	if input.Receivers != nil {
		capsule.Receivers = input.Receivers
	}
	if input.OpenDate != nil {
		capsule.OpenDate = input.OpenDate
	}

	capsule.Seal(now)
	capsule.UpdatedAt = now

	if err := s.storeImages(capsule, input.Images); err != nil {
		return nil, err
	}

	if err := s.repo.SaveCapsule(capsule); err != nil {
		return nil, domain.NewUnexpectedError(fmt.Errorf("failed to save capsule: %w", err))
	}

	view := domain.Project(capsule, capsule.StateAt(now))
	return &view, nil
}

// Delete 删除胶囊，仅寄送者可操作，任何状态均可。
//
// 图片目录的清理异步进行，删除请求不等待磁盘回收。
func (s *CapsuleService) Delete(id string, actor domain.Actor) error {
	capsule, err := s.load(id)
	if err != nil {
		return err
	}

	if err := domain.AuthorizeDelete(capsule, actor); err != nil {
		return err
	}

	if err := s.repo.DeleteCapsule(id); err != nil {
		return domain.NewUnexpectedError(fmt.Errorf("failed to delete capsule: %w", err))
	}

	s.cleanupImagesAsync(id)
	return nil
}

// Get 读取单个胶囊，按派生状态裁剪响应字段。
func (s *CapsuleService) Get(id string, actor domain.Actor) (*domain.CapsuleView, error) {
	capsule, err := s.load(id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	state := capsule.StateAt(now)
	if err := domain.AuthorizeRead(capsule, state, actor); err != nil {
		return nil, err
	}

	view := domain.Project(capsule, state)
	return &view, nil
}

// GetImage 读取单张图片的元数据与字节内容。
//
// sealed 状态对所有人（含寄送者）拒绝内容载荷。
func (s *CapsuleService) GetImage(capsuleID, imageID string, actor domain.Actor) (*domain.CapsuleImage, []byte, error) {
	capsule, err := s.load(capsuleID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	state := capsule.StateAt(now)
	if err := domain.AuthorizeReadContent(capsule, state, actor); err != nil {
		return nil, nil, err
	}

	var meta *domain.CapsuleImage
	for i := range capsule.Images {
		if capsule.Images[i].ID == imageID {
			meta = &capsule.Images[i]
			break
		}
	}
	if meta == nil {
		return nil, nil, domain.NewNotFoundError("image not found")
	}

	data, err := s.images.GetImage(capsuleID, imageID)
	if err != nil {
		return nil, nil, domain.NewUnexpectedError(fmt.Errorf("failed to read image: %w", err))
	}

	return meta, data, nil
}

// ListUser 列出当前用户的胶囊。
//
// mode 取值 draft/sent/received，空值为三者的并集；
// 每一项按自身派生状态投影。
func (s *CapsuleService) ListUser(actor domain.Actor, mode string, skip, take int) ([]domain.CapsuleView, error) {
	if !actor.Authenticated {
		return nil, domain.NewAuthError(401, "authentication required")
	}

	filter, ok := domain.UserCapsuleFilter(actor.UserID, mode)
	if !ok {
		return nil, domain.NewValidationError(map[string]string{
			"type": "type must be one of draft, sent, received",
		})
	}

	return s.list(filter, skip, take)
}

// ListPublic 列出公开胶囊。
//
// mode 取值 sealed/opened，空值为两者并集；sealed 列表只含
// 展示倒计时的公开胶囊。
func (s *CapsuleService) ListPublic(mode string, skip, take int) ([]domain.CapsuleView, error) {
	filter, ok := domain.PublicCapsuleFilter(mode)
	if !ok {
		return nil, domain.NewValidationError(map[string]string{
			"type": "type must be one of sealed, opened",
		})
	}

	return s.list(filter, skip, take)
}

func (s *CapsuleService) list(filter domain.CapsuleFilter, skip, take int) ([]domain.CapsuleView, error) {
	now := s.now()
	query := domain.ListQuery{
		Filter: filter,
		Skip:   skip,
		Take:   take,
	}.Normalize()

	capsules, err := s.repo.ListCapsules(query, now)
	if err != nil {
		return nil, domain.NewUnexpectedError(fmt.Errorf("failed to list capsules: %w", err))
	}

	views := make([]domain.CapsuleView, 0, len(capsules))
	for i := range capsules {
		views = append(views, domain.Project(&capsules[i], capsules[i].StateAt(now)))
	}
	return views, nil
}

// load 读取胶囊并把存储层未找到映射为领域错误。
func (s *CapsuleService) load(id string) (*domain.Capsule, error) {
	capsule, err := s.repo.GetCapsule(id)
	if err != nil {
		if errors.Is(err, storage.ErrCapsuleNotFound) {
			return nil, domain.NewNotFoundError("capsule not found")
		}
		return nil, domain.NewUnexpectedError(fmt.Errorf("failed to load capsule: %w", err))
	}
	return capsule, nil
}

// validateContent 校验正文字节数上限。
func (s *CapsuleService) validateContent(content string) error {
	max := s.cfg.Capsule.MaxContentBytes
	if max > 0 && int64(len(content)) > max {
		return domain.NewValidationError(map[string]string{
			"content": fmt.Sprintf("content exceeds maximum size of %d bytes", max),
		})
	}
	return nil
}

// validateImages 校验图片数量与大小限制。
func (s *CapsuleService) validateImages(images []ImageUpload) error {
	if len(images) == 0 {
		return nil
	}
	if len(images) > s.cfg.Capsule.MaxImages {
		return domain.NewValidationError(map[string]string{
			"images": fmt.Sprintf("at most %d images per capsule", s.cfg.Capsule.MaxImages),
		})
	}
	for _, img := range images {
		if int64(len(img.Data)) > s.cfg.Capsule.MaxImageSize {
			return domain.NewValidationError(map[string]string{
				"images": fmt.Sprintf("image %s exceeds maximum size of %d bytes", img.Name, s.cfg.Capsule.MaxImageSize),
			})
		}
		if err := s.validator.Validate(img.Name, img.ContentType, img.Data); err != nil {
			return domain.NewValidationError(map[string]string{"images": err.Error()})
		}
	}
	return nil
}

// storeImages 落盘上传的图片并把元数据追加到胶囊。
func (s *CapsuleService) storeImages(capsule *domain.Capsule, images []ImageUpload) error {
	for _, img := range images {
		imageID := uuid.NewString()
		path, err := s.images.SaveImage(capsule.ID, imageID, img.Data)
		if err != nil {
			return domain.NewUnexpectedError(fmt.Errorf("failed to store image: %w", err))
		}

		capsule.Images = append(capsule.Images, domain.CapsuleImage{
			ID:          imageID,
			CapsuleID:   capsule.ID,
			Name:        img.Name,
			ContentType: img.ContentType,
			Size:        int64(len(img.Data)),
			StoragePath: path,
			Position:    len(capsule.Images),
		})
	}
	return nil
}

// cleanupImagesAsync 在协程池中回收胶囊的图片目录。
func (s *CapsuleService) cleanupImagesAsync(capsuleID string) {
	task := pool.Task{
		Name: "remove-capsule-images",
		Run: func() {
			if err := s.images.RemoveCapsuleImages(capsuleID); err != nil {
				s.log.Warn("failed to remove capsule images",
					zap.String("capsule_id", capsuleID),
					zap.Error(err),
				)
			}
		},
	}

	if s.pool == nil || !s.pool.TrySubmit(task) {
		// 池不可用或已满时退化为同步清理
		task.Run()
	}
}

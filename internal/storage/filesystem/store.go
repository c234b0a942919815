package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store 文件系统图片存储实现
//
// 目录布局: {basePath}/{capsuleID}/{imageID}，只保存字节，
// 元数据随胶囊记录落在主存储。
type Store struct {
	basePath string
}

// NewStore 创建文件系统存储实例
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path is required")
	}

	normalized := filepath.Clean(basePath)
	if err := os.MkdirAll(normalized, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{basePath: normalized}, nil
}

// SaveImage 保存图片字节，返回相对存储路径
func (s *Store) SaveImage(capsuleID, imageID string, data []byte) (string, error) {
	if err := validateSegment(capsuleID); err != nil {
		return "", err
	}
	if err := validateSegment(imageID); err != nil {
		return "", err
	}

	capsuleDir := filepath.Join(s.basePath, capsuleID)
	if err := os.MkdirAll(capsuleDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create capsule directory: %w", err)
	}

	imageFile := filepath.Join(capsuleDir, imageID)
	if err := os.WriteFile(imageFile, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	relPath, err := filepath.Rel(s.basePath, imageFile)
	if err != nil {
		return imageFile, nil
	}
	return relPath, nil
}

// GetImage 读取图片字节
func (s *Store) GetImage(capsuleID, imageID string) ([]byte, error) {
	if err := validateSegment(capsuleID); err != nil {
		return nil, err
	}
	if err := validateSegment(imageID); err != nil {
		return nil, err
	}

	imageFile := filepath.Join(s.basePath, capsuleID, imageID)
	data, err := os.ReadFile(imageFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image not found")
		}
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// RemoveCapsuleImages 删除某胶囊的全部图片目录
func (s *Store) RemoveCapsuleImages(capsuleID string) error {
	if err := validateSegment(capsuleID); err != nil {
		return err
	}

	capsuleDir := filepath.Join(s.basePath, capsuleID)
	if err := os.RemoveAll(capsuleDir); err != nil {
		return fmt.Errorf("failed to remove capsule images: %w", err)
	}
	return nil
}

// Health 探测存储根目录是否仍然可用
func (s *Store) Health() error {
	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("image storage unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("image storage path is not a directory")
	}
	return nil
}

// validateSegment 拒绝可能逃出存储根目录的路径片段
func validateSegment(segment string) error {
	if segment == "" {
		return fmt.Errorf("path segment is empty")
	}
	if strings.ContainsAny(segment, `/\`) || strings.Contains(segment, "..") {
		return fmt.Errorf("invalid path segment: %q", segment)
	}
	return nil
}

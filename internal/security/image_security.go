package security

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// ImageValidator 图片上传安全检查器
//
// 三重校验：扩展名黑名单、声明类型白名单、内容嗅探。
// 声明类型与嗅探结果不一致时以嗅探结果为准拒绝。
type ImageValidator struct {
	allowedTypes        map[string]bool
	dangerousExtensions map[string]bool
}

// NewImageValidator 创建图片安全检查器
func NewImageValidator() *ImageValidator {
	return &ImageValidator{
		allowedTypes: map[string]bool{
			"image/jpeg": true,
			"image/png":  true,
			"image/gif":  true,
			"image/webp": true,
		},
		dangerousExtensions: map[string]bool{
			".exe": true,
			".bat": true,
			".cmd": true,
			".scr": true,
			".com": true,
			".vbs": true,
			".js":  true,
			".jar": true,
			".php": true,
			".svg": true, // SVG 可携带脚本
		},
	}
}

// Validate 检查单张上传图片，返回拒绝原因
//
// 返回 nil 表示通过。
func (v *ImageValidator) Validate(filename, declaredType string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("image %s is empty", filename)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if v.dangerousExtensions[ext] {
		return fmt.Errorf("file extension %s is not allowed", ext)
	}

	// octet-stream 等价于未声明，交给内容嗅探判定
	declared := normalizeMediaType(declaredType)
	if declared != "" && declared != "application/octet-stream" && !v.allowedTypes[declared] {
		return fmt.Errorf("content type %s is not an allowed image type", declaredType)
	}

	sniffed := normalizeMediaType(http.DetectContentType(data))
	if !v.allowedTypes[sniffed] {
		return fmt.Errorf("file content does not look like a supported image")
	}
	return nil
}

// normalizeMediaType 去掉参数部分，只留媒体类型本体
func normalizeMediaType(mediaType string) string {
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

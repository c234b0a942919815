package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind 业务错误类别，传输层按类别做穷尽匹配
type ErrorKind int

const (
	// ErrValidation 请求参数校验失败（400，按字段报告）
	ErrValidation ErrorKind = iota
	// ErrAuth 认证或授权失败（401/403）
	ErrAuth
	// ErrNotFound 胶囊不存在（404）
	ErrNotFound
	// ErrConflictedState 生命周期状态不允许该操作（423）
	ErrConflictedState
	// ErrUnexpected 未分类的内部错误（500，记录日志后对外隐藏细节）
	ErrUnexpected
)

// Error 分类业务错误
//
// 携带 HTTP 状态码与对调用方安全的消息；未分类错误包装原始错误，
// 细节只进日志，不出现在响应中。
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Fields  map[string]string // 校验错误的字段级明细
	Err     error             // 被包装的原始错误
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 支持 errors.Is / errors.As 链式匹配
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError 创建字段级校验错误
func NewValidationError(fields map[string]string) *Error {
	return &Error{
		Kind:    ErrValidation,
		Status:  http.StatusBadRequest,
		Message: "validation failed",
		Fields:  fields,
	}
}

// NewAuthError 创建认证/授权错误，status 为 401 或 403
func NewAuthError(status int, message string) *Error {
	return &Error{
		Kind:    ErrAuth,
		Status:  status,
		Message: message,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) *Error {
	return &Error{
		Kind:    ErrNotFound,
		Status:  http.StatusNotFound,
		Message: message,
	}
}

// NewConflictedStateError 创建生命周期状态冲突错误（423 Locked）
func NewConflictedStateError(message string) *Error {
	return &Error{
		Kind:    ErrConflictedState,
		Status:  http.StatusLocked,
		Message: message,
	}
}

// NewUnexpectedError 包装未分类错误
func NewUnexpectedError(err error) *Error {
	return &Error{
		Kind:    ErrUnexpected,
		Status:  http.StatusInternalServerError,
		Message: "something went wrong",
		Err:     err,
	}
}

// AsError 尝试把任意 error 解析为分类错误
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

package errors

import (
	"errors"
	"fmt"
)

// AppError 应用错误类型
// 用于统一管理业务错误，包含错误码和错误消息
type AppError struct {
	Code    int    // 错误码
	Message string // 用户可见的错误消息
	Err     error  // 原始错误（可选，用于调试）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError 创建新错误
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装原始错误
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is 判断是否为指定错误
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode 获取错误码，如果不是 AppError 返回默认错误码
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError
}

// GetMessage 获取错误消息
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "服务器内部错误"
}

// IsValidation 参数/载荷校验类错误
func IsValidation(err error) bool {
	return inRange(err, 11000, 11999)
}

// IsAuthorization 权限类错误（非成员操作会话/投票）
func IsAuthorization(err error) bool {
	return inRange(err, 12000, 12999)
}

// IsNotFound 引用的消息/投票不存在
func IsNotFound(err error) bool {
	return inRange(err, 13000, 13999)
}

func inRange(err error, lo, hi int) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code >= lo && appErr.Code <= hi
}

// ============== 错误码定义 ==============

const (
	CodeSuccess = 0

	// 校验相关 11000-11999
	CodeInvalidParams       = 11001
	CodeKindMismatch        = 11002
	CodeInvalidOption       = 11003
	CodeVoteClosed          = 11004
	CodeUnsupportedTalkType = 11005

	// 权限相关 12000-12999
	CodeNotMember = 12001

	// 资源相关 13000-13999
	CodeRecordNotFound = 13001
	CodeVoteNotFound   = 13002
	CodeTalkNotFound   = 13003

	// 系统错误 50000-50999
	CodeServerError         = 50001
	CodeDBError             = 50002
	CodeTooManyReqest       = 50003
	CodeWriteFailure        = 50004
	CodeConcurrencyConflict = 50005
)

// ============== 预定义错误 ==============

// 校验相关
var (
	ErrInvalidParams       = NewError(CodeInvalidParams, "参数校验失败")
	ErrKindMismatch        = NewError(CodeKindMismatch, "消息类型与内容不匹配")
	ErrInvalidOption       = NewError(CodeInvalidOption, "投票选项不存在")
	ErrVoteClosed          = NewError(CodeVoteClosed, "投票已结束")
	ErrUnsupportedTalkType = NewError(CodeUnsupportedTalkType, "不支持的会话类型")
)

// 权限相关
var (
	ErrNotMember = NewError(CodeNotMember, "非好友或群成员")
)

// 资源相关
var (
	ErrRecordNotFound = NewError(CodeRecordNotFound, "消息记录不存在")
	ErrVoteNotFound   = NewError(CodeVoteNotFound, "投票不存在")
	ErrTalkNotFound   = NewError(CodeTalkNotFound, "会话不存在")
)

// 系统相关
var (
	ErrServerError         = NewError(CodeServerError, "服务器内部错误")
	ErrDBError             = NewError(CodeDBError, "数据库错误")
	ErrTooManyRequest      = NewError(CodeTooManyReqest, "请求过于频繁，请稍后再试")
	ErrWriteFailure        = NewError(CodeWriteFailure, "消息写入失败")
	ErrConcurrencyConflict = NewError(CodeConcurrencyConflict, "并发冲突，请稍后重试")
)

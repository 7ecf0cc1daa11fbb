// Package errorx 定义带业务错误码的错误类型
// HTTP 响应与 WebSocket error 事件都从这里取错误码
package errorx

import (
	"errors"
	"fmt"
)

// CodeError 带业务错误码的自定义错误
// 支持 %w 包装底层错误，可被 errors.Is/errors.As 识别
type CodeError struct {
	Code  int    // 业务错误码
	Msg   string // 错误消息
	cause error  // 被包装的底层错误
}

// Error 存在底层错误时返回 "消息: 底层错误"，否则仅返回消息
func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

// Unwrap 支持 errors.Is/errors.As 向下追溯
func (e *CodeError) Unwrap() error {
	return e.cause
}

// Is 错误码相同即视为同一类错误
// 使 errors.Is(err, ErrForbidden) 对任意包装层级都成立
func (e *CodeError) Is(target error) bool {
	var t *CodeError
	if !errors.As(target, &t) {
		return false
	}
	return t.cause == nil && t.Code == e.Code
}

// New 创建一个新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

// Newf 创建一个带格式化消息的 CodeError
func Newf(code int, format string, args ...any) *CodeError {
	return &CodeError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误
// 用法: errorx.Wrap(err, CodeDBError, "保存消息")
func Wrap(err error, code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg, cause: err}
}

// Wrapf 包装底层错误，支持格式化消息
func Wrapf(err error, code int, format string, args ...any) *CodeError {
	return &CodeError{Code: code, Msg: fmt.Sprintf(format, args...), cause: err}
}

// GetCode 提取业务错误码，非 CodeError 返回 CodeServerBusy
func GetCode(err error) int {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}
	return CodeServerBusy
}

// GetMsg 提取对外展示的错误消息，不暴露底层错误细节
func GetMsg(err error) string {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Msg
	}
	return ErrServerBusy.Msg
}

// 业务状态码
const (
	CodeSuccess      = 1000 // 成功
	CodeInvalidParam = 1001 // 请求参数错误 / 校验失败
	CodeServerBusy   = 1005 // 服务繁忙
	CodeUnauthorized = 1006 // 未认证
	CodeForbidden    = 1007 // 无权限（非会话参与者 / 非课程成员）
	CodeNotFound     = 1008 // 资源不存在
	CodeDBError      = 1010 // 持久化失败
	CodeCacheError   = 1011 // 缓存错误
	CodeBrokerError  = 1012 // 消息总线错误
)

// 预定义错误实例，可直接返回，也可用于 errors.Is 比较
var (
	ErrInvalidParam = New(CodeInvalidParam, "请求参数错误")
	ErrServerBusy   = New(CodeServerBusy, "服务繁忙")
	ErrUnauthorized = New(CodeUnauthorized, "未认证")
	ErrForbidden    = New(CodeForbidden, "无权访问")
	ErrNotFound     = New(CodeNotFound, "资源不存在")
)

// IsNotFound 检查错误是否为"未找到"
func IsNotFound(err error) bool {
	return GetCode(err) == CodeNotFound
}

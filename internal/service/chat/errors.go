package chat

import (
	"errors"

	"course_chat_server/pkg/errorx"
)

// 聊天核心的错误分类，均映射到 errorx 业务码
var (
	ErrUnauthenticated = errorx.New(errorx.CodeUnauthorized, "连接未认证")
	ErrNotAuthorized   = errorx.New(errorx.CodeForbidden, "不是该会话或课程群的成员")
	ErrValidation      = errorx.New(errorx.CodeInvalidParam, "参数校验失败")
	ErrPersistence     = errorx.New(errorx.CodeDBError, "消息保存失败")
	ErrNotJoined       = errorx.New(errorx.CodeForbidden, "尚未加入该会话或课程群")
	ErrUnknownEvent    = errorx.New(errorx.CodeInvalidParam, "未知事件")
)

// ErrorKind 对外暴露的错误类别名
type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "Unauthenticated"
	KindNotAuthorized   ErrorKind = "NotAuthorized"
	KindValidation      ErrorKind = "ValidationError"
	KindNotFound        ErrorKind = "NotFound"
	KindPersistence     ErrorKind = "PersistenceFailure"
	KindInternal        ErrorKind = "Internal"
)

// Kind 按业务码归类错误
func Kind(err error) ErrorKind {
	switch errorx.GetCode(err) {
	case errorx.CodeUnauthorized:
		return KindUnauthenticated
	case errorx.CodeForbidden:
		return KindNotAuthorized
	case errorx.CodeInvalidParam:
		return KindValidation
	case errorx.CodeNotFound:
		return KindNotFound
	case errorx.CodeDBError:
		return KindPersistence
	default:
		return KindInternal
	}
}

func validationf(format string, args ...any) error {
	return errorx.Newf(errorx.CodeInvalidParam, format, args...)
}

// persistenceError 存储层错误统一归为持久化失败，保留 NotFound
func persistenceError(err error, msg string) error {
	if errorx.IsNotFound(err) {
		return err
	}
	var ce *errorx.CodeError
	if errors.As(err, &ce) && ce.Code == errorx.CodeDBError {
		return err
	}
	return errorx.Wrap(err, errorx.CodeDBError, msg)
}

// Package identity 身份网关：把访问令牌解析成聊天主体
// 令牌由账号服务签发，这里只做校验
package identity

import (
	"net/http"
	"strings"

	"course_chat_server/internal/model"
	"course_chat_server/pkg/errorx"
	"course_chat_server/pkg/util/jwt"

	"go.uber.org/zap"
)

var ErrUnauthenticated = errorx.New(errorx.CodeUnauthorized, "令牌缺失、无效或已过期")

// Authenticator 校验访问令牌
type Authenticator struct{}

func NewAuthenticator() *Authenticator {
	return &Authenticator{}
}

// Authenticate 校验令牌并返回主体，任何失败都归为 Unauthenticated
func (a *Authenticator) Authenticate(token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, ErrUnauthenticated
	}
	claims, err := jwt.ParseToken(token)
	if err != nil {
		zap.L().Debug("token rejected", zap.Error(err))
		return model.Principal{}, errorx.Wrap(err, errorx.CodeUnauthorized, ErrUnauthenticated.Msg)
	}
	if claims.Subject != jwt.SubjectAccess {
		return model.Principal{}, ErrUnauthenticated
	}
	p := model.Principal{UserID: claims.UserID, Role: model.Role(claims.Role), Name: claims.Name}
	if p.UserID == "" || !p.Role.Valid() {
		return model.Principal{}, ErrUnauthenticated
	}
	return p, nil
}

// TokenFromRequest 依次从 Authorization 头、token 查询参数、Sec-WebSocket-Protocol 中取令牌
// 浏览器的 WebSocket API 不能设置请求头，因此后两种用于 /wss
func TokenFromRequest(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	// Sec-WebSocket-Protocol: bearer, <token>
	if proto := r.Header.Get("Sec-WebSocket-Protocol"); proto != "" {
		parts := strings.Split(proto, ",")
		if len(parts) >= 2 && strings.EqualFold(strings.TrimSpace(parts[0]), "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

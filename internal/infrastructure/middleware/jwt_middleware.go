package middleware

import (
	"net/http"

	"course_chat_server/internal/model"
	"course_chat_server/internal/service/identity"
	"course_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// ContextPrincipal 认证通过后主体在 gin.Context 中的键
const ContextPrincipal = "principal"

// TokenAuthenticator 由 identity.Authenticator 实现
type TokenAuthenticator interface {
	Authenticate(token string) (model.Principal, error)
}

// JWTAuth JWT 认证中间件
// 验证 Access Token 并将主体存入上下文
func JWTAuth(auth TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := identity.TokenFromRequest(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  "请先登录",
			})
			return
		}
		p, err := auth.Authenticate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  "Token 已过期或无效，请重新登录",
			})
			return
		}
		c.Set(ContextPrincipal, p)
		c.Next()
	}
}

// PrincipalFrom 取出 JWTAuth 写入的主体
func PrincipalFrom(c *gin.Context) (model.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return model.Principal{}, false
	}
	p, ok := v.(model.Principal)
	return p, ok && p.UserID != ""
}

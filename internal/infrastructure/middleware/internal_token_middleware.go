package middleware

import (
	"crypto/subtle"
	"net/http"

	"course_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// InternalTokenHeader 课程服务回调时携带的共享令牌请求头
const InternalTokenHeader = "X-Internal-Token"

// InternalToken 保护 /internal 路由；未配置令牌时拒绝所有请求
func InternalToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(InternalTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": errorx.CodeForbidden,
				"msg":  errorx.ErrForbidden.Msg,
			})
			return
		}
		c.Next()
	}
}

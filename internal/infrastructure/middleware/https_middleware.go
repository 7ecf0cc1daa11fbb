package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// TlsHandler 将 HTTP 请求重定向到 HTTPS，由 mainConfig.forceTLS 开启
// 在 Nginx 终结 TLS 的部署下保持关闭
func TlsHandler(host string, port int) gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		SSLRedirect: true,
		SSLHost:     host + ":" + strconv.Itoa(port),
		// 反向代理转发的原始协议
		SSLProxyHeaders: map[string]string{"X-Forwarded-Proto": "https"},
	})

	return func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			// 已写出重定向响应，不能用 Fatal
			zap.L().Debug("tls redirect", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.Abort()
			return
		}
		c.Next()
	}
}

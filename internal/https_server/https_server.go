// Package https_server 提供 HTTP/HTTPS 服务器的初始化和配置
// 负责创建 Gin 引擎实例并配置中间件和路由
package https_server

import (
	"course_chat_server/internal/config"
	"course_chat_server/internal/handler"
	"course_chat_server/internal/infrastructure/logger"
	"course_chat_server/internal/infrastructure/middleware"
	"course_chat_server/internal/router"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Init 创建 Gin 引擎
// 配置顺序：
//  1. 日志和恢复中间件
//  2. CORS 跨域规则
//  3. 可选的 HTTPS 重定向
//  4. 业务路由
func Init(conf *config.Config, handlers *handler.Handlers, auth middleware.TokenAuthenticator) *gin.Engine {
	if conf.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // 生产环境应指定具体域名
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.InternalTokenHeader}
	engine.Use(cors.New(corsConfig))

	// 由 Nginx 处理 SSL 时保持 forceTLS=false
	if conf.ForceTLS {
		engine.Use(middleware.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port))
	}

	rt := router.NewRouter(handlers, auth, conf.InternalToken)
	rt.RegisterRoutes(engine)
	return engine
}

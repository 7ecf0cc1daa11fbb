// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"course_chat_server/internal/handler"
	"course_chat_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// Router 持有 Handler 聚合与两类鉴权中间件
type Router struct {
	handlers *handler.Handlers
	auth     middleware.TokenAuthenticator
	internal string
}

// NewRouter internalToken 为课程服务回调 /internal 的共享令牌
func NewRouter(handlers *handler.Handlers, auth middleware.TokenAuthenticator, internalToken string) *Router {
	return &Router{handlers: handlers, auth: auth, internal: internalToken}
}

// RegisterRoutes 注册所有路由
// /wss 在握手时自行校验令牌；/internal 使用共享令牌；其余路由需要 Bearer 访问令牌
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	rt.RegisterWebSocketRoutes(&r.RouterGroup)
	rt.RegisterInternalRoutes(r.Group("/internal", middleware.InternalToken(rt.internal)))

	authed := r.Group("/", middleware.JWTAuth(rt.auth))
	rt.RegisterConversationRoutes(authed)
	rt.RegisterRoomRoutes(authed)
	rt.RegisterMessageRoutes(authed)
}

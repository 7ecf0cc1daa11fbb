// Package router 提供 HTTP 路由注册
// 本文件定义 WebSocket 路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterWebSocketRoutes 客户端通过此路由建立 WebSocket 连接
// 请求示例: ws://host:port/wss?token=<access token>
func (rt *Router) RegisterWebSocketRoutes(rg *gin.RouterGroup) {
	rg.GET("/wss", rt.handlers.Ws.Connect)
}

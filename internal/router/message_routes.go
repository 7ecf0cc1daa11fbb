package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterMessageRoutes 消息路由（需要认证）
func (rt *Router) RegisterMessageRoutes(rg *gin.RouterGroup) {
	rg.GET("/message/history", rt.handlers.Message.History)
}

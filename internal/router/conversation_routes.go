package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterConversationRoutes 私聊路由（需要认证）
func (rt *Router) RegisterConversationRoutes(rg *gin.RouterGroup) {
	conversationGroup := rg.Group("/conversation")
	{
		conversationGroup.GET("/list", rt.handlers.Conversation.List)  // 私聊列表（含未读数）
		conversationGroup.POST("/open", rt.handlers.Conversation.Open) // 获取或创建私聊
	}
}

// Package handler 提供 HTTP 请求处理器
// 本文件处理私聊相关的 API 请求
package handler

import (
	"course_chat_server/internal/dto/request"
	"course_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 私聊请求处理器
type ConversationHandler struct {
	conversationSvc service.ConversationService
}

func NewConversationHandler(conversationSvc service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationSvc: conversationSvc}
}

// List 当前用户的私聊列表
// GET /conversation/list
// 响应: []model.Conversation（含 unreadCount）
func (h *ConversationHandler) List(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	data, err := h.conversationSvc.List(c.Request.Context(), p)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Open 获取或创建私聊
// POST /conversation/open
// 请求体: request.OpenConversationRequest
// 响应: model.Conversation
func (h *ConversationHandler) Open(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	var req request.OpenConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	conv, err := h.conversationSvc.Open(c.Request.Context(), p, req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, conv)
}

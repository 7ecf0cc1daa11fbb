package handler

import (
	"course_chat_server/internal/dto/request"
	"course_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// MessageHandler 消息请求处理器
type MessageHandler struct {
	messageSvc service.MessageService
}

func NewMessageHandler(messageSvc service.MessageService) *MessageHandler {
	return &MessageHandler{messageSvc: messageSvc}
}

// History 历史消息分页
// GET /message/history?parent_id=xxx&parent_kind=conversation&before=xxx&limit=50
// 响应: model.HistoryPage，消息按时间升序；翻页时把第一条的 id 作为下一次的 before
func (h *MessageHandler) History(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	var req request.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	page, err := h.messageSvc.History(c.Request.Context(), p, req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, page)
}

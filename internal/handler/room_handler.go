package handler

import (
	"course_chat_server/internal/dto/request"
	"course_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// RoomHandler 课程群请求处理器
type RoomHandler struct {
	roomSvc service.RoomService
}

func NewRoomHandler(roomSvc service.RoomService) *RoomHandler {
	return &RoomHandler{roomSvc: roomSvc}
}

// List GET /room/list
func (h *RoomHandler) List(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	data, err := h.roomSvc.List(c.Request.Context(), p)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Roster GET /room/roster?room_id=xxx
func (h *RoomHandler) Roster(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	var req request.RosterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.roomSvc.Roster(c.Request.Context(), p, req.RoomID)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

package handler

import (
	"course_chat_server/internal/dto/request"
	"course_chat_server/internal/service"
	"course_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// InternalHandler 课程服务回调接口，由 InternalToken 中间件保护
type InternalHandler struct {
	roomSvc service.RoomService
}

func NewInternalHandler(roomSvc service.RoomService) *InternalHandler {
	return &InternalHandler{roomSvc: roomSvc}
}

// EnsureRoom 课程创建或更新后同步课程群
// PUT /internal/course/:courseId/room
func (h *InternalHandler) EnsureRoom(c *gin.Context) {
	courseID := c.Param("courseId")
	if courseID == "" {
		HandleError(c, errorx.ErrInvalidParam)
		return
	}
	var req request.EnsureRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	room, err := h.roomSvc.Ensure(c.Request.Context(), courseID, req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, room)
}

// Enroll 学生报名后加入课程群
// POST /internal/course/:courseId/enrollment
func (h *InternalHandler) Enroll(c *gin.Context) {
	courseID := c.Param("courseId")
	if courseID == "" {
		HandleError(c, errorx.ErrInvalidParam)
		return
	}
	var req request.EnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.roomSvc.Enroll(c.Request.Context(), courseID, req); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}

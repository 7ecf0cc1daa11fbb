package handler

import (
	"net/http"

	"course_chat_server/internal/gateway/websocket"
	"course_chat_server/internal/service/identity"
	"course_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WsHandler WebSocket 接入
type WsHandler struct {
	hub        websocket.Hub
	auth       websocket.Authenticator
	sendBuffer int
}

func NewWsHandler(hub websocket.Hub, auth websocket.Authenticator, sendBuffer int) *WsHandler {
	return &WsHandler{hub: hub, auth: auth, sendBuffer: sendBuffer}
}

// Connect 升级为 WebSocket 连接
// GET /wss?token=xxx
// 令牌在升级前校验，失败时返回 401 且不创建任何连接状态
func (h *WsHandler) Connect(c *gin.Context) {
	p, err := h.auth.Authenticate(identity.TokenFromRequest(c.Request))
	if err != nil {
		zap.L().Debug("ws handshake rejected", zap.String("remote", c.ClientIP()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code": errorx.CodeUnauthorized,
			"msg":  errorx.GetMsg(err),
		})
		return
	}
	if err := websocket.ServeWS(c.Writer, c.Request, h.hub, p, h.sendBuffer); err != nil {
		zap.L().Warn("ws session ended with error", zap.String("user_id", p.UserID), zap.Error(err))
	}
}

// Package handler 提供 HTTP 请求处理器
// 本文件定义 Handler 聚合结构和构造函数，通过构造函数注入 Service 依赖
package handler

import (
	"course_chat_server/internal/gateway/websocket"
	"course_chat_server/internal/service"
)

// Handlers 聚合所有 Handler 实例，Router 层通过此结构访问各个 Handler
type Handlers struct {
	Conversation *ConversationHandler
	Room         *RoomHandler
	Message      *MessageHandler
	Internal     *InternalHandler
	Ws           *WsHandler
}

// NewHandlers 创建并注入所有 Handler 实例
func NewHandlers(svc *service.Services, hub websocket.Hub, auth websocket.Authenticator, sendBuffer int) *Handlers {
	return &Handlers{
		Conversation: NewConversationHandler(svc.Conversation),
		Room:         NewRoomHandler(svc.Room),
		Message:      NewMessageHandler(svc.Message),
		Internal:     NewInternalHandler(svc.Room),
		Ws:           NewWsHandler(hub, auth, sendBuffer),
	}
}

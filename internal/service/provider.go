// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"course_chat_server/internal/service/chat"
	"course_chat_server/internal/service/conversation"
	"course_chat_server/internal/service/message"
	"course_chat_server/internal/service/room"
)

// Store 三种存储实现（mysql / mongo / memory）共同满足的持久化接口
type Store interface {
	chat.Store
	conversation.Store
	room.Store
}

// Services 聚合所有 Service 实例
type Services struct {
	Conversation ConversationService
	Room         RoomService
	Message      MessageService
}

// NewServices 创建并注入所有 Service 实例
// access 复用聊天核心的鉴权规则，HTTP 查询与实时事件对成员资格的判断保持一致
func NewServices(store Store, unread *chat.UnreadAggregator, access *chat.Server) *Services {
	return &Services{
		Conversation: conversation.NewConversationService(store, unread),
		Room:         room.NewRoomService(store, unread, access),
		Message:      message.NewMessageService(store, access),
	}
}

// Package service 定义业务层接口
// 本文件定义 HTTP 查询接口使用的 Service 接口，供 Handler 层调用
// 实时事件由 chat.Server 处理，不经过这里
package service

import (
	"context"

	"course_chat_server/internal/dto/request"
	"course_chat_server/internal/model"
)

// ConversationService 学生与讲师的一对一私聊
type ConversationService interface {
	// List 主体参与的全部私聊，附带主体的未读数
	List(ctx context.Context, p model.Principal) ([]model.Conversation, error)
	// Open 获取或创建 (学生, 讲师, 课程) 对应的唯一私聊
	Open(ctx context.Context, p model.Principal, req request.OpenConversationRequest) (*model.Conversation, error)
}

// RoomService 课程群
type RoomService interface {
	// List 主体作为讲师或学生所在的课程群，附带未读数
	List(ctx context.Context, p model.Principal) ([]model.Room, error)
	// Roster 成员名单，讲师在前；仅成员可查
	Roster(ctx context.Context, p model.Principal, roomID string) ([]model.Participant, error)
	// Ensure 课程服务同步课程群
	Ensure(ctx context.Context, courseID string, req request.EnsureRoomRequest) (*model.Room, error)
	// Enroll 课程服务同步报名学生
	Enroll(ctx context.Context, courseID string, req request.EnrollmentRequest) error
}

// MessageService 历史消息查询
type MessageService interface {
	History(ctx context.Context, p model.Principal, req request.HistoryRequest) (model.HistoryPage, error)
}

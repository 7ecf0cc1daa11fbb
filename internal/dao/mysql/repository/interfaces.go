// Package repository 基于 GORM 的 Repository 实现
// 接口在此文件定义，具体实现在各自的文件中
package repository

import (
	"context"
	"time"

	"course_chat_server/internal/model"

	"gorm.io/gorm"
)

// ConversationRepository 私聊会话数据访问接口
type ConversationRepository interface {
	// FindByID 按 ID 查找
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	// FindByTriple 按 (学生, 讲师, 课程) 查找
	FindByTriple(ctx context.Context, studentID, instructorID, courseID string) (*model.Conversation, error)
	// FindByParticipant 查找用户参与的全部会话
	FindByParticipant(ctx context.Context, userID string) ([]model.Conversation, error)
	// CreateIgnoreConflict 插入会话，唯一索引冲突时不报错
	CreateIgnoreConflict(ctx context.Context, conv *model.Conversation) error
	// UpdateLastMessage 更新最后一条消息预览
	UpdateLastMessage(ctx context.Context, id, preview string, at time.Time) error
}

// RoomRepository 课程群数据访问接口
type RoomRepository interface {
	FindByID(ctx context.Context, id string) (*model.Room, error)
	FindByCourseID(ctx context.Context, courseID string) (*model.Room, error)
	// FindByUser 查找用户作为讲师或学生所在的课程群
	FindByUser(ctx context.Context, userID string) ([]model.Room, error)
	// Upsert 按 course_id 插入或更新标题、封面、讲师
	Upsert(ctx context.Context, room *model.Room) error
	UpdateLastMessage(ctx context.Context, id, preview string, at time.Time) error
}

// RoomMemberRepository 课程群成员数据访问接口
type RoomMemberRepository interface {
	FindByRoomID(ctx context.Context, roomID string) ([]model.RoomMember, error)
	Exists(ctx context.Context, roomID, userID string) (bool, error)
	// Upsert 按 (room_id, user_id) 插入或更新昵称
	Upsert(ctx context.Context, member *model.RoomMember) error
}

// MessageRepository 消息数据访问接口
type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	// FindPage 返回 ID < before（0 表示不限）的最新 limit 条，按 ID 倒序
	FindPage(ctx context.Context, parentID string, before int64, limit int) ([]model.Message, error)
	// UpdateStatus 更新状态，只允许前进（sent -> delivered -> read）
	UpdateStatus(ctx context.Context, parentID string, ids []int64, status model.MessageStatus) error
	// MarkReadBy 将 parentID 中非 readerID 发送的消息标记为已读
	MarkReadBy(ctx context.Context, parentID, readerID string) error
}

// Repositories 聚合所有 Repository 实例
type Repositories struct {
	db           *gorm.DB
	Conversation ConversationRepository
	Room         RoomRepository
	RoomMember   RoomMemberRepository
	Message      MessageRepository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		Conversation: NewConversationRepository(db),
		Room:         NewRoomRepository(db),
		RoomMember:   NewRoomMemberRepository(db),
		Message:      NewMessageRepository(db),
	}
}

// Transaction 在数据库事务中执行 fn，fn 返回错误时整体回滚
func (r *Repositories) Transaction(ctx context.Context, fn func(txRepos *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

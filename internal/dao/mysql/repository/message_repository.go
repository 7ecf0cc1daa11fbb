package repository

import (
	"context"

	"course_chat_server/internal/model"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 创建消息
func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return wrapDBErrorf(err, "创建消息 parent=%s", msg.ParentID)
	}
	return nil
}

// FindPage 走 (parent_id, id) 联合索引
func (r *messageRepository) FindPage(ctx context.Context, parentID string, before int64, limit int) ([]model.Message, error) {
	q := r.db.WithContext(ctx).Where("parent_id = ?", parentID)
	if before > 0 {
		q = q.Where("id < ?", before)
	}
	var messages []model.Message
	if err := q.Order("id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 parent=%s before=%d", parentID, before)
	}
	return messages, nil
}

func (r *messageRepository) UpdateStatus(ctx context.Context, parentID string, ids []int64, status model.MessageStatus) error {
	if len(ids) == 0 {
		return nil
	}
	q := r.db.WithContext(ctx).Model(&model.Message{}).Where("parent_id = ? AND id IN ?", parentID, ids)
	if status == model.StatusDelivered {
		q = q.Where("status = ?", model.StatusSent)
	}
	if err := q.Update("status", status).Error; err != nil {
		return wrapDBErrorf(err, "更新消息状态 parent=%s", parentID)
	}
	return nil
}

func (r *messageRepository) MarkReadBy(ctx context.Context, parentID, readerID string) error {
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("parent_id = ? AND parent_kind = ? AND sender_id <> ? AND status <> ?", parentID, model.KindConversation, readerID, model.StatusRead).
		Update("status", model.StatusRead).Error
	if err != nil {
		return wrapDBErrorf(err, "标记已读 parent=%s reader=%s", parentID, readerID)
	}
	return nil
}

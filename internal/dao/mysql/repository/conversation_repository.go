package repository

import (
	"context"
	"time"

	"course_chat_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建会话 Repository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 id=%s", id)
	}
	return &conv, nil
}

func (r *conversationRepository) FindByTriple(ctx context.Context, studentID, instructorID, courseID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND instructor_id = ? AND course_id = ?", studentID, instructorID, courseID).
		First(&conv).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询会话 student=%s instructor=%s course=%s", studentID, instructorID, courseID)
	}
	return &conv, nil
}

// FindByParticipant 最近有消息的在前，从未发言的按创建时间
func (r *conversationRepository) FindByParticipant(ctx context.Context, userID string) ([]model.Conversation, error) {
	var list []model.Conversation
	err := r.db.WithContext(ctx).
		Where("student_id = ? OR instructor_id = ?", userID, userID).
		Order("COALESCE(last_message_at, created_at) DESC").
		Find(&list).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询会话列表 user=%s", userID)
	}
	return list, nil
}

// CreateIgnoreConflict 并发创建同一三元组时，只有一条能写入，其余静默忽略
func (r *conversationRepository) CreateIgnoreConflict(ctx context.Context, conv *model.Conversation) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(conv).Error
	if err != nil && !isDuplicateKey(err) {
		return wrapDBError(err, "创建会话")
	}
	return nil
}

func (r *conversationRepository) UpdateLastMessage(ctx context.Context, id, preview string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Conversation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_message":    preview,
		"last_message_at": at,
		"updated_at":      at,
	})
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "更新会话预览 id=%s", id)
	}
	if res.RowsAffected == 0 {
		return wrapDBErrorf(gorm.ErrRecordNotFound, "更新会话预览 id=%s", id)
	}
	return nil
}
